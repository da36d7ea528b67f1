package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExpectedFulfillmentTime(t *testing.T) {
	cfg := &DealerSLAView{
		DealerId:       "dealer-1",
		SLAName:        "standard",
		ExpectedHours:  2,
		DispatchWindow: DispatchWindow{Start: 9, End: 18},
	}

	// 2024-03-18 is a Monday.
	subtests := []struct {
		name     string
		placedAt time.Time
		expected time.Time
	}{
		{
			name:     "within-window",
			placedAt: time.Date(2024, 3, 18, 8, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 3, 18, 10, 0, 0, 0, time.UTC),
		},
		{
			name:     "before-window-snaps-to-start",
			placedAt: time.Date(2024, 3, 18, 22, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 3, 19, 9, 0, 0, 0, time.UTC),
		},
		{
			name:     "after-window-snaps-to-next-day-start",
			placedAt: time.Date(2024, 3, 18, 17, 30, 0, 0, time.UTC),
			expected: time.Date(2024, 3, 19, 9, 0, 0, 0, time.UTC),
		},
		{
			name:     "exactly-at-window-start",
			placedAt: time.Date(2024, 3, 18, 7, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC),
		},
		{
			name:     "within-closing-hour",
			placedAt: time.Date(2024, 3, 18, 16, 30, 0, 0, time.UTC),
			expected: time.Date(2024, 3, 18, 18, 30, 0, 0, time.UTC),
		},
		{
			name:     "early-morning-snaps-to-same-day-start",
			placedAt: time.Date(2024, 3, 18, 1, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, st := range subtests {
		t.Run(st.name, func(t *testing.T) {
			require.Equal(t, st.expected, ExpectedFulfillmentTime(st.placedAt, cfg, time.UTC))
		})
	}
}

func TestExpectedFulfillmentTime_Location(t *testing.T) {
	ist := time.FixedZone("IST", 19800)
	cfg := &DealerSLAView{
		ExpectedHours:  2,
		DispatchWindow: DispatchWindow{Start: 9, End: 18},
	}

	// 16:30 UTC is 22:00 IST, so the raw deadline 00:00 IST snaps to the
	// window start of the same IST calendar day.
	placedAt := time.Date(2024, 3, 18, 16, 30, 0, 0, time.UTC)
	expected := time.Date(2024, 3, 19, 9, 0, 0, 0, ist)

	require.True(t, expected.Equal(ExpectedFulfillmentTime(placedAt, cfg, ist)))
}

func TestExpectedFulfillmentTime_Pure(t *testing.T) {
	cfg := &DealerSLAView{
		ExpectedHours:  4,
		DispatchWindow: DispatchWindow{Start: 8, End: 20},
	}
	placedAt := time.Date(2024, 3, 18, 22, 15, 0, 0, time.UTC)

	first := ExpectedFulfillmentTime(placedAt, cfg, time.UTC)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, ExpectedFulfillmentTime(placedAt, cfg, time.UTC))
	}
}

func TestDispatchWindowValidate(t *testing.T) {
	require.NoError(t, DispatchWindow{Start: 9, End: 18}.Validate())
	require.NoError(t, DispatchWindow{Start: 0, End: 23}.Validate())
	require.Error(t, DispatchWindow{Start: 18, End: 9}.Validate())
	require.Error(t, DispatchWindow{Start: 9, End: 9}.Validate())
	require.Error(t, DispatchWindow{Start: -1, End: 9}.Validate())
	require.Error(t, DispatchWindow{Start: 9, End: 24}.Validate())
}
