package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// UnixMilli is a nullable millisecond UNIX timestamp in databases and JSON.
// The zero value marshals to SQL and JSON null.
type UnixMilli time.Time

// Time returns the time.Time conversion of UnixMilli.
func (t UnixMilli) Time() time.Time {
	return time.Time(t)
}

// MarshalJSON implements the json.Marshaler interface.
// Marshals to milliseconds. Supports JSON null.
func (t UnixMilli) MarshalJSON() ([]byte, error) {
	if time.Time(t).IsZero() {
		return []byte("null"), nil
	}

	return []byte(strconv.FormatInt(time.Time(t).UnixMilli(), 10)), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (t *UnixMilli) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		return nil
	}

	ms, err := strconv.ParseFloat(string(text), 64)
	if err != nil {
		return errors.Wrapf(err, "can't parse %q into float64", text)
	}

	*t = UnixMilli(time.UnixMilli(int64(ms)))
	return nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
// Unmarshals from milliseconds. Supports JSON null.
func (t *UnixMilli) UnmarshalJSON(data []byte) error {
	if string(data) == "null" || len(data) == 0 {
		return nil
	}

	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return errors.Wrapf(err, "can't parse %q into float64", data)
	}

	*t = UnixMilli(time.UnixMilli(int64(ms)))
	return nil
}

// Scan implements the sql.Scanner interface.
// Scans from milliseconds. Supports SQL NULL.
func (t *UnixMilli) Scan(src interface{}) error {
	if src == nil {
		return nil
	}

	switch v := src.(type) {
	case int64:
		*t = UnixMilli(time.UnixMilli(v))
	case []byte:
		ms, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return errors.Wrapf(err, "can't parse %q into int64", v)
		}
		*t = UnixMilli(time.UnixMilli(ms))
	default:
		return errors.Errorf("bad (u)int64/[]byte type assertion from %#v", src)
	}

	return nil
}

// Value implements the driver.Valuer interface.
// Returns milliseconds. Supports SQL NULL.
func (t UnixMilli) Value() (driver.Value, error) {
	if t.Time().IsZero() {
		return nil, nil
	}

	return t.Time().UnixMilli(), nil
}

// Assert interface compliance.
var (
	_ json.Marshaler           = (*UnixMilli)(nil)
	_ encoding.TextUnmarshaler = (*UnixMilli)(nil)
	_ json.Unmarshaler         = (*UnixMilli)(nil)
	_ sql.Scanner              = (*UnixMilli)(nil)
	_ driver.Valuer            = (*UnixMilli)(nil)
)
