// Package report renders availability results into the alert message.
package report

import (
	"fmt"
	"strings"

	"busalert/internal/availability"
)

// MaxLength is the hard cap on a dispatched message. Truncation is a
// plain cutoff, not field-aware.
const MaxLength = 4096

const separator = "\n ---------------- ---------------- ----------------  ---------------- \n"

// Prices arrive in rial; the report shows toman.
const rialPerToman = 10

// Available filters trips to those with bookable seats.
func Available(trips []availability.Trip) []availability.Trip {
	out := make([]availability.Trip, 0, len(trips))
	for _, t := range trips {
		if t.AvailableSeats > 0 {
			out = append(out, t)
		}
	}
	return out
}

// Format builds the full alert: header plus one block per trip, joined by
// the separator line and truncated to MaxLength.
func Format(origin, destination, displayDate string, trips []availability.Trip) string {
	header := fmt.Sprintf("لیست اتوبوس های %s به %s در تاریخ %s:\n\n", origin, destination, displayDate)

	blocks := make([]string, 0, len(trips))
	for _, t := range trips {
		blocks = append(blocks, formatTrip(t))
	}

	return truncate(header+strings.Join(blocks, separator), MaxLength)
}

func formatTrip(t availability.Trip) string {
	return fmt.Sprintf(`⏰ساعت حرکت: %s
🪑صندلی موجود: %d
💰قیمت: %s تومان
🚌نام تعاونی: %s
🥇نوع اتوبوس: %s
📍پایانه مبدا: %s
🧭پایانه مقصد: %s`,
		t.DepartureTime,
		t.AvailableSeats,
		groupDigits(t.Price/rialPerToman),
		t.CompanyName,
		t.BusType,
		t.OriginTerminal,
		t.DestinationTerminal,
	)
}

// groupDigits renders n with thousands separators (1234567 -> "1,234,567").
func groupDigits(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func truncate(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
