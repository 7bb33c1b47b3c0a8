package timeutil

import (
	"time"
)

// Zone is the business time zone used for timestamps and calendar dates.
var Zone = time.UTC

// SetZone switches the business time zone, e.g. "Asia/Kolkata".
func SetZone(name string) error {
	if name == "" {
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return err
	}
	Zone = loc
	return nil
}

// Now returns the current time in the business zone
func Now() time.Time {
	return time.Now().In(Zone)
}

// ParseDate parses a YYYY-MM-DD calendar date in the business zone
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, Zone)
}

// Format formats a time in the business zone using the given layout
func Format(t time.Time, layout string) string {
	return t.In(Zone).Format(layout)
}

// Common layouts
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
	DisplayLayout  = "02 Jan 2006, 03:04 PM"
)
