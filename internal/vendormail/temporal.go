package vendormail

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultHour is used when a booking carries a date but no usable time.
const DefaultHour = 9

var (
	dateRe  = regexp.MustCompile(`\b(\d{1,2})[-/](\d{1,2})[-/](\d{4})\b`)
	clockRe = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})(?:[ \t]*([ap])\.?m\.?)?`)
)

// Schedule is a normalized booking time. Fallback is set when the date could
// not be read and At is the ingestion time instead.
type Schedule struct {
	At            time.Time
	Fallback      bool
	TimeDefaulted bool
}

// Normalizer reads M-D-YYYY dates and H:MM [AM|PM] times as wall-clock time
// in Location and returns the instant in UTC.
type Normalizer struct {
	Location *time.Location
	Now      func() time.Time
}

func (n Normalizer) Normalize(date, clock string) Schedule {
	loc := n.Location
	if loc == nil {
		loc = time.UTC
	}

	year, month, day, ok := parseDate(date)
	if !ok {
		return Schedule{At: n.now().UTC(), Fallback: true}
	}

	hour, minute, ok := parseClock(clock)
	s := Schedule{TimeDefaulted: !ok}
	if !ok {
		hour, minute = DefaultHour, 0
	}
	s.At = time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc).UTC()
	return s
}

func (n Normalizer) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

func parseDate(s string) (year, month, day int, ok bool) {
	m := dateRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, 0, false
	}
	month, _ = strconv.Atoi(m[1])
	day, _ = strconv.Atoi(m[2])
	year, _ = strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 {
		return 0, 0, 0, false
	}
	// time.Date normalizes 02-30 into March; reject instead.
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Month() != time.Month(month) || t.Day() != day {
		return 0, 0, 0, false
	}
	return year, month, day, true
}

func parseClock(s string) (hour, minute int, ok bool) {
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	switch strings.ToLower(m[3]) {
	case "p":
		if hour != 12 {
			hour += 12
		}
	case "a":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}
