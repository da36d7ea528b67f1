package sla

import (
	"encoding"
	"fmt"

	"github.com/pkg/errors"
)

// DayTime is a fixed time of day in the engine's configured timezone,
// e.g. "08:00" for the daily summary.
type DayTime struct {
	Hour   int
	Minute int
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
// Parses "15:04" clock strings.
func (d *DayTime) UnmarshalText(text []byte) error {
	var hour, minute int
	if _, err := fmt.Sscanf(string(text), "%d:%d", &hour, &minute); err != nil {
		return errors.Wrapf(err, "can't parse %q as time of day", text)
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return errors.Errorf("bad time of day %q", text)
	}

	d.Hour, d.Minute = hour, minute

	return nil
}

// MarshalText implements the encoding.TextMarshaler interface.
func (d DayTime) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d DayTime) String() string {
	return fmt.Sprintf("%02d:%02d", d.Hour, d.Minute)
}

// Assert interface compliance.
var (
	_ encoding.TextUnmarshaler = (*DayTime)(nil)
	_ encoding.TextMarshaler   = DayTime{}
)
