package dates

import (
	"testing"
	"time"

	ptime "github.com/yaa110/go-persian-calendar"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	anchors := []time.Time{
		time.Date(2024, 3, 19, 8, 0, 0, 0, time.UTC),  // eve of Nowruz
		time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC),  // Jalali new year
		time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC),
		time.Now(),
	}
	for _, ts := range anchors {
		display := ToDisplay(ts)
		iso, err := ToGregorian(display)
		if err != nil {
			t.Fatalf("ToGregorian(%q) error: %v", display, err)
		}
		want := ts.In(ptime.Iran()).Format("2006-01-02")
		if iso != want {
			t.Fatalf("round trip of %v: got %s, want %s", ts, iso, want)
		}
	}
}

func TestToGregorianInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "tomorrow", "1403/13/01", "1403/00/10"} {
		if _, err := ToGregorian(raw); err == nil {
			t.Fatalf("ToGregorian(%q): expected error", raw)
		}
	}
}

func TestUpcoming(t *testing.T) {
	t.Parallel()
	anchor := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)

	days := Upcoming(anchor, UpcomingDays)
	if len(days) != UpcomingDays {
		t.Fatalf("len = %d, want %d", len(days), UpcomingDays)
	}
	if days[0] != ToDisplay(anchor) {
		t.Fatalf("first day %q does not match anchor %q", days[0], ToDisplay(anchor))
	}

	// Strictly increasing calendar days.
	for i := 1; i < len(days); i++ {
		prev, err := ToGregorian(days[i-1])
		if err != nil {
			t.Fatalf("ToGregorian(%q): %v", days[i-1], err)
		}
		cur, err := ToGregorian(days[i])
		if err != nil {
			t.Fatalf("ToGregorian(%q): %v", days[i], err)
		}
		if cur <= prev {
			t.Fatalf("days not increasing: %s then %s", prev, cur)
		}
	}
}
