// Package nwb models the NWB 2.x objects produced by the merge and
// serializes them to HDF5. It is deliberately not a general NWB
// library: only the types this migration writes are represented.
package nwb

import (
	"errors"
	"fmt"
	"time"
)

// Version is the NWB schema version tagged on output files.
const Version = "2.6.0"

// Common errors
var (
	ErrUnknownSex = errors.New("unexpected value for subject sex")
	ErrDuplicate  = errors.New("name already in use")
)

// NormalizeSex translates a free-text sex value from a legacy file into
// the single-letter code the NWB 2 schema expects. Unrecognized values
// are an error; silently guessing a code would corrupt the output.
func NormalizeSex(sex string) (string, error) {
	switch sex {
	case "male":
		return "M", nil
	case "female":
		return "F", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSex, sex)
	}
}

// timestampLayout is the ISO 8601 form pynwb writes: microsecond
// precision with a numeric UTC offset, never "Z".
const timestampLayout = "2006-01-02T15:04:05.000000-07:00"

// FormatTimestamp renders a timestamp for storage in an NWB 2 file.
func FormatTimestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// ParseTimestamp parses a timestamp previously stored in an NWB 2 file.
// Fractional seconds are optional and of any precision.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}