package sla

import (
	"time"
)

// ExpectedFulfillmentTime computes the deadline by which an order placed at
// placedAt must be fulfilled under the given dealer SLA: the tier's expected
// hours are added and the result is rolled forward into the dealer's dispatch
// window. A raw deadline before the window start snaps to the window start of
// the same calendar day, one after the window end snaps to the window start
// of the next calendar day.
//
// The function is pure: identical inputs always produce the identical
// deadline. The location is the engine's configured timezone, never the
// ambient process timezone.
func ExpectedFulfillmentTime(placedAt time.Time, cfg *DealerSLAView, loc *time.Location) time.Time {
	raw := placedAt.In(loc).Add(time.Duration(cfg.ExpectedHours) * time.Hour)

	switch hour := raw.Hour(); {
	case hour < cfg.DispatchWindow.Start:
		return atHour(raw, cfg.DispatchWindow.Start, loc)
	case hour > cfg.DispatchWindow.End:
		return atHour(raw.AddDate(0, 0, 1), cfg.DispatchWindow.Start, loc)
	}

	return raw
}

// atHour returns t's calendar day at the given full hour.
func atHour(t time.Time, hour int, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, loc)
}
