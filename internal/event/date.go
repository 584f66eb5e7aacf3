package event

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DateFormatError is returned when a raw date string matches none of the
// recognized shapes. The parser fails rather than guessing.
type DateFormatError struct {
	Raw string
}

func (e *DateFormatError) Error() string {
	return fmt.Sprintf("unrecognized date format: %q", e.Raw)
}

// DateSet is an ordered, deduplicated set of calendar days (UTC midnights).
// The days of one event need not be contiguous ("January 15 and 17").
// A valid DateSet is never empty.
type DateSet []time.Time

var (
	isoRangeRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\s+to\s+(\d{4}-\d{2}-\d{2})$`)
	weekdayRe  = regexp.MustCompile(`^(Monday|Tuesday|Wednesday|Thursday|Friday|Saturday|Sunday),\s*`)
	monthRe    = regexp.MustCompile(`^([A-Za-z]+)\s+(.+)$`)
	dayRangeRe = regexp.MustCompile(`^(\d{1,2})\s*-\s*(\d{1,2})$`)
	spaceRe    = regexp.MustCompile(`\s+`)
)

// ParseDates turns a free-text event date string into a DateSet.
//
// Recognized shapes:
//
//	2025-10-25
//	2025-10-25 to 2025-10-27
//	10/25/2025
//	October 25-27, 2025        (inclusive day range)
//	January 15, 17, 2024       (listed days only)
//	March 15 and 17, 2025      (listed days only)
//	March 15, 2025
//
// A leading weekday ("Friday, March 15, 2025") is stripped first. A hyphen
// between two day numbers after a month name is always an inclusive range,
// never two separate dates. refYear substitutes for a missing year in the
// month-name shapes.
func ParseDates(raw string, refYear int) (DateSet, error) {
	cleaned := spaceRe.ReplaceAllString(strings.TrimSpace(raw), " ")
	if cleaned == "" {
		return nil, &DateFormatError{Raw: raw}
	}

	if m := isoRangeRe.FindStringSubmatch(cleaned); m != nil {
		start, err1 := time.Parse("2006-01-02", m[1])
		end, err2 := time.Parse("2006-01-02", m[2])
		if err1 != nil || err2 != nil || end.Before(start) {
			return nil, &DateFormatError{Raw: raw}
		}
		return spanDays(start, end), nil
	}

	if t, err := time.Parse("2006-01-02", cleaned); err == nil {
		return DateSet{t}, nil
	}
	if t, err := time.Parse("01/02/2006", cleaned); err == nil {
		return DateSet{t}, nil
	}
	if t, err := time.Parse("1/2/2006", cleaned); err == nil {
		return DateSet{t}, nil
	}

	cleaned = weekdayRe.ReplaceAllString(cleaned, "")

	ds, err := parseMonthNameDates(cleaned, refYear)
	if err != nil {
		return nil, &DateFormatError{Raw: raw}
	}
	return ds, nil
}

// parseMonthNameDates handles the "Month days[, year]" shapes.
func parseMonthNameDates(s string, refYear int) (DateSet, error) {
	m := monthRe.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("no month name")
	}

	month, err := parseMonthName(m[1])
	if err != nil {
		return nil, err
	}

	rest := strings.TrimSpace(m[2])

	// A trailing ", YYYY" carries the year; otherwise refYear stands in.
	year := refYear
	if i := strings.LastIndex(rest, ","); i >= 0 {
		tail := strings.TrimSpace(rest[i+1:])
		if y, convErr := strconv.Atoi(tail); convErr == nil && y >= 1000 && y <= 9999 {
			year = y
			rest = strings.TrimSpace(rest[:i])
		}
	}

	if m := dayRangeRe.FindStringSubmatch(rest); m != nil {
		d1, _ := strconv.Atoi(m[1])
		d2, _ := strconv.Atoi(m[2])
		if d2 < d1 {
			return nil, fmt.Errorf("inverted day range")
		}
		start, err := makeDay(year, month, d1)
		if err != nil {
			return nil, err
		}
		end, err := makeDay(year, month, d2)
		if err != nil {
			return nil, err
		}
		return spanDays(start, end), nil
	}

	// "15", "15, 17" and "15 and 17" all reduce to a day list.
	rest = strings.ReplaceAll(rest, " and ", ", ")
	var days []int
	for _, part := range strings.Split(rest, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, convErr := strconv.Atoi(part)
		if convErr != nil {
			return nil, fmt.Errorf("bad day %q", part)
		}
		days = append(days, d)
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("no days")
	}

	ds := make(DateSet, 0, len(days))
	for _, d := range days {
		day, err := makeDay(year, month, d)
		if err != nil {
			return nil, err
		}
		ds = append(ds, day)
	}
	return ds.normalize(), nil
}

func parseMonthName(name string) (time.Month, error) {
	if t, err := time.Parse("January", name); err == nil {
		return t.Month(), nil
	}
	if t, err := time.Parse("Jan", name); err == nil {
		return t.Month(), nil
	}
	return 0, fmt.Errorf("unknown month %q", name)
}

// makeDay builds a UTC midnight and rejects days that roll over into the
// next month (e.g. February 30).
func makeDay(year int, month time.Month, day int) (time.Time, error) {
	if day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("day %d out of range", day)
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Month() != month || t.Day() != day {
		return time.Time{}, fmt.Errorf("day %d not in %s", day, month)
	}
	return t, nil
}

func spanDays(start, end time.Time) DateSet {
	var ds DateSet
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		ds = append(ds, d)
	}
	return ds
}

// normalize sorts ascending and drops duplicates.
func (ds DateSet) normalize() DateSet {
	sort.Slice(ds, func(i, j int) bool { return ds[i].Before(ds[j]) })
	out := ds[:0]
	for i, d := range ds {
		if i == 0 || !d.Equal(out[len(out)-1]) {
			out = append(out, d)
		}
	}
	return out
}

// First returns the earliest day in the set.
func (ds DateSet) First() time.Time {
	if len(ds) == 0 {
		return time.Time{}
	}
	return ds[0]
}

// Last returns the latest day in the set.
func (ds DateSet) Last() time.Time {
	if len(ds) == 0 {
		return time.Time{}
	}
	return ds[len(ds)-1]
}

// Contiguous reports whether the set covers every day between First and Last.
func (ds DateSet) Contiguous() bool {
	for i := 1; i < len(ds); i++ {
		if !ds[i].Equal(ds[i-1].AddDate(0, 0, 1)) {
			return false
		}
	}
	return true
}

// Display renders the canonical form: a single day as YYYY-MM-DD, a
// contiguous run of two or more days as "start to end", anything else as a
// comma-joined list. This is a function of the date set only, never of the
// original raw text.
func (ds DateSet) Display() string {
	switch {
	case len(ds) == 0:
		return "TBD"
	case len(ds) == 1:
		return ds[0].Format("2006-01-02")
	case ds.Contiguous():
		return ds.First().Format("2006-01-02") + " to " + ds.Last().Format("2006-01-02")
	default:
		parts := make([]string, len(ds))
		for i, d := range ds {
			parts[i] = d.Format("2006-01-02")
		}
		return strings.Join(parts, ", ")
	}
}

// ExpiredBy reports whether every day in the set is strictly before asOf.
// An empty set never expires: an event whose date could not be read must not
// have its snapshot cleaned up from under it.
func (ds DateSet) ExpiredBy(asOf time.Time) bool {
	if len(ds) == 0 {
		return false
	}
	return ds.Last().Before(truncateDay(asOf))
}

// EarliestWithin reports whether the earliest day falls inside
// [from, from+days] inclusive.
func (ds DateSet) EarliestWithin(from time.Time, days int) bool {
	if len(ds) == 0 {
		return false
	}
	start := truncateDay(from)
	first := ds.First()
	return !first.Before(start) && !first.After(start.AddDate(0, 0, days))
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MarshalJSON encodes the set as a list of YYYY-MM-DD strings, the layout
// the snapshot files have always used.
func (ds DateSet) MarshalJSON() ([]byte, error) {
	strs := make([]string, len(ds))
	for i, d := range ds {
		strs[i] = d.Format("2006-01-02")
	}
	return json.Marshal(strs)
}

// UnmarshalJSON decodes a list of YYYY-MM-DD strings.
func (ds *DateSet) UnmarshalJSON(data []byte) error {
	var strs []string
	if err := json.Unmarshal(data, &strs); err != nil {
		return err
	}
	out := make(DateSet, 0, len(strs))
	for _, s := range strs {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return fmt.Errorf("parsing stored date %q: %w", s, err)
		}
		out = append(out, t)
	}
	*ds = out.normalize()
	return nil
}
