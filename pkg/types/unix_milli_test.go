package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUnixMilli_MarshalJSON(t *testing.T) {
	subtests := []struct {
		name   string
		input  UnixMilli
		output string
	}{
		{"zero", UnixMilli{}, `null`},
		{"epoch", UnixMilli(time.Unix(0, 0)), `0`},
		{"nonzero", UnixMilli(time.Unix(1234567890, 62500000)), `1234567890062`},
	}

	for _, st := range subtests {
		t.Run(st.name, func(t *testing.T) {
			actual, err := st.input.MarshalJSON()

			require.NoError(t, err)
			require.Equal(t, st.output, string(actual))
		})
	}
}

func TestUnixMilli_UnmarshalJSON(t *testing.T) {
	subtests := []struct {
		name   string
		input  string
		output UnixMilli
	}{
		{"null", "null", UnixMilli{}},
		{"epoch", "0", UnixMilli(time.Unix(0, 0))},
		{"nonzero", "1234567890062", UnixMilli(time.Unix(1234567890, 62000000))},
	}

	for _, st := range subtests {
		t.Run(st.name, func(t *testing.T) {
			var actual UnixMilli
			err := actual.UnmarshalJSON([]byte(st.input))

			require.NoError(t, err)
			require.Equal(t, st.output, actual)
		})
	}
}

func TestUnixMilli_Scan(t *testing.T) {
	subtests := []struct {
		name   string
		input  interface{}
		output UnixMilli
	}{
		{"null", nil, UnixMilli{}},
		{"int64", int64(1234567890062), UnixMilli(time.Unix(1234567890, 62000000))},
		{"bytes", []byte("1234567890062"), UnixMilli(time.Unix(1234567890, 62000000))},
	}

	for _, st := range subtests {
		t.Run(st.name, func(t *testing.T) {
			var actual UnixMilli
			err := actual.Scan(st.input)

			require.NoError(t, err)
			require.Equal(t, st.output, actual)
		})
	}
}

func TestUnixMilli_Value(t *testing.T) {
	t.Run("zero", func(t *testing.T) {
		v, err := UnixMilli{}.Value()

		require.NoError(t, err)
		require.Nil(t, v)
	})

	t.Run("nonzero", func(t *testing.T) {
		v, err := UnixMilli(time.Unix(1234567890, 0)).Value()

		require.NoError(t, err)
		require.Equal(t, int64(1234567890000), v)
	})
}
