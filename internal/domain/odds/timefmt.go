package odds

import (
	"sync"
	"time"
)

var (
	easternOnce sync.Once
	eastern     *time.Location
)

// Eastern returns the US Eastern time zone, or a fixed UTC-5 zone when the
// tz database is unavailable.
func Eastern() *time.Location {
	easternOnce.Do(func() {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.FixedZone("ET", -5*60*60)
		}
		eastern = loc
	})
	return eastern
}

// FormatGameTime renders a kick-off time as "Jan 02, 03:04 PM ET" in loc.
// A zero time renders as "Time TBD".
func FormatGameTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "Time TBD"
	}
	if loc == nil {
		loc = Eastern()
	}
	return t.In(loc).Format("Jan 02, 03:04 PM") + " ET"
}
