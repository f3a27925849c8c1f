// Package dates converts between the Jalali calendar shown to users and
// the Gregorian dates the availability lookup expects.
package dates

import (
	"fmt"
	"time"

	ptime "github.com/yaa110/go-persian-calendar"
)

// UpcomingDays is how many calendar days the date keyboard offers.
const UpcomingDays = 5

// ToDisplay renders a timestamp as a Jalali date string (YYYY/MM/DD),
// evaluated in Iran local time.
func ToDisplay(t time.Time) string {
	pt := ptime.New(t.In(ptime.Iran()))
	return fmt.Sprintf("%04d/%02d/%02d", pt.Year(), int(pt.Month()), pt.Day())
}

// ToGregorian converts a Jalali display date (YYYY/MM/DD) to the ISO
// Gregorian form (YYYY-MM-DD) used on the wire.
func ToGregorian(display string) (string, error) {
	var y, m, d int
	if _, err := fmt.Sscanf(display, "%d/%d/%d", &y, &m, &d); err != nil {
		return "", fmt.Errorf("parse jalali date %q: %w", display, err)
	}
	if m < 1 || m > 12 || d < 1 || d > 31 || y < 1 {
		return "", fmt.Errorf("parse jalali date %q: out of range", display)
	}
	// Noon keeps the conversion clear of DST boundaries.
	pt := ptime.Date(y, ptime.Month(m), d, 12, 0, 0, 0, ptime.Iran())
	return pt.Time().Format("2006-01-02"), nil
}

// Upcoming returns count consecutive Jalali display dates starting at the
// anchor timestamp's day.
func Upcoming(anchor time.Time, count int) []string {
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, ToDisplay(anchor.AddDate(0, 0, i)))
	}
	return out
}
