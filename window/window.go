// Package window provides the wall-clock primitives shared by recurring
// temporal grants and time_range policies: HH:MM time ranges, weekday sets
// and time zone resolution.
package window

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// TimeRange is a local wall-clock interval. Start is inclusive and End is
// exclusive, so adjacent ranges never both match the same instant. A range
// whose End is before its Start wraps past midnight ("22:00"-"02:00").
type TimeRange struct {
	Start string `json:"start" bson:"start"`
	End   string `json:"end" bson:"end"`
}

// ParseClock parses "HH:MM" into minutes since midnight. "24:00" is accepted
// and means end of day.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, fmt.Errorf("window: invalid clock %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("window: invalid hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("window: invalid minute in %q: %w", s, err)
	}
	if m < 0 || m > 59 || h < 0 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("window: clock %q out of range", s)
	}
	return h*60 + m, nil
}

// Validate checks that both ends parse and the range is non-empty.
func (r TimeRange) Validate() error {
	start, err := ParseClock(r.Start)
	if err != nil {
		return err
	}
	end, err := ParseClock(r.End)
	if err != nil {
		return err
	}
	if start == end {
		return fmt.Errorf("window: empty range %s-%s", r.Start, r.End)
	}
	if start == minutesPerDay {
		return fmt.Errorf("window: range cannot start at 24:00")
	}
	return nil
}

// Contains reports whether the wall-clock time of local falls inside the
// range. local must already be in the relevant time zone. Invalid ranges
// contain nothing.
func (r TimeRange) Contains(local time.Time) bool {
	_, ok := r.StartDay(local)
	return ok
}

// StartDay reports whether the range contains local and, if so, the weekday
// on which that occurrence of the range began. For a range that wraps past
// midnight, the part after midnight belongs to the previous day: 01:00 on
// Tuesday inside "22:00"-"02:00" started on Monday.
func (r TimeRange) StartDay(local time.Time) (time.Weekday, bool) {
	start, err := ParseClock(r.Start)
	if err != nil {
		return 0, false
	}
	end, err := ParseClock(r.End)
	if err != nil || start == end {
		return 0, false
	}
	sod := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())
	lo := time.Duration(start) * time.Minute
	hi := time.Duration(end) * time.Minute
	day := local.Weekday()
	switch {
	case start < end:
		return day, sod >= lo && sod < hi
	case sod >= lo:
		return day, true
	case sod < hi:
		return (day + 6) % 7, true
	}
	return 0, false
}

// AnyContains reports whether any range contains local.
func AnyContains(ranges []TimeRange, local time.Time) bool {
	for _, r := range ranges {
		if r.Contains(local) {
			return true
		}
	}
	return false
}

// Active reports whether local falls inside an occurrence of any range that
// began on one of days. Empty days match every day.
func Active(days []time.Weekday, ranges []TimeRange, local time.Time) bool {
	for _, r := range ranges {
		day, ok := r.StartDay(local)
		if ok && (len(days) == 0 || HasDay(days, day)) {
			return true
		}
	}
	return false
}

// ValidateRanges validates every range in order.
func ValidateRanges(ranges []TimeRange) error {
	for i, r := range ranges {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("time range %d: %w", i, err)
		}
	}
	return nil
}

// HasDay reports whether day is in days.
func HasDay(days []time.Weekday, day time.Weekday) bool {
	return slices.Contains(days, day)
}

// ValidateDays rejects weekday values outside Sunday..Saturday.
func ValidateDays(days []time.Weekday) error {
	for _, d := range days {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("window: invalid weekday %d", d)
		}
	}
	return nil
}

// Location resolves an IANA zone name. The empty name means UTC.
func Location(name string) (*time.Location, error) {
	if name == "" || name == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("window: load time zone %q: %w", name, err)
	}
	return loc, nil
}
