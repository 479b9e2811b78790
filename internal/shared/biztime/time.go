// Package biztime centralizes time handling. All storage and transport
// use UTC; a display timezone is only applied when rendering to users.
package biztime

import (
	"fmt"
	"sync"
	"time"
)

// DefaultTimezone is the display timezone used when none is configured.
const DefaultTimezone = "UTC"

var (
	displayLoc  *time.Location
	displayOnce sync.Once
	initErr     error
)

// Init sets the display timezone. Safe to call once at startup; an
// empty tz selects the default.
func Init(tz string) error {
	displayOnce.Do(func() {
		if tz == "" {
			tz = DefaultTimezone
		}
		displayLoc, initErr = time.LoadLocation(tz)
	})
	return initErr
}

// Location returns the display timezone, initializing the default when
// Init was never called.
func Location() *time.Location {
	if displayLoc == nil {
		if err := Init(""); err != nil {
			panic(fmt.Sprintf("biztime: failed to initialize default timezone: %v", err))
		}
	}
	return displayLoc
}

// NowUTC returns the current time in UTC.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// DaysAgoUTC returns the UTC instant n days before now. Used for
// "within the last n days" query windows.
func DaysAgoUTC(n int) time.Time {
	return NowUTC().AddDate(0, 0, -n)
}

// StartOfDayUTC returns 00:00:00 of t's day in the display timezone,
// converted back to UTC for querying.
func StartOfDayUTC(t time.Time) time.Time {
	local := t.In(Location())
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Location())
	return start.UTC()
}

// FormatForDisplay formats a UTC time in the display timezone.
func FormatForDisplay(t time.Time, layout string) string {
	return t.In(Location()).Format(layout)
}
