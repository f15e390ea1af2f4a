// Package fiscal maps calendar dates onto the company's fixed fiscal year,
// which runs from 1 November through 31 October of the following year.
package fiscal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FirstMonth is the calendar month a fiscal year starts in.
const FirstMonth = time.November

var (
	ErrInvalidYear  = errors.New("invalid fiscal year")
	ErrInvalidMonth = errors.New("invalid fiscal month")
)

// Year identifies a fiscal year by the calendar year it starts in.
type Year struct {
	Start int
}

// YearOf returns the fiscal year d belongs to.
func YearOf(d time.Time) Year {
	if d.Month() >= FirstMonth {
		return Year{Start: d.Year()}
	}
	return Year{Start: d.Year() - 1}
}

// ParseYear parses a "{startYear}-{endYear}" key such as "2024-2025".
func ParseYear(key string) (Year, error) {
	start, end, ok := strings.Cut(strings.TrimSpace(key), "-")
	if !ok {
		return Year{}, fmt.Errorf("%w: %q", ErrInvalidYear, key)
	}
	s, err := strconv.Atoi(start)
	if err != nil || len(start) != 4 {
		return Year{}, fmt.Errorf("%w: %q", ErrInvalidYear, key)
	}
	e, err := strconv.Atoi(end)
	if err != nil || e != s+1 {
		return Year{}, fmt.Errorf("%w: %q", ErrInvalidYear, key)
	}
	return Year{Start: s}, nil
}

// End is the calendar year the fiscal year closes in.
func (y Year) End() int { return y.Start + 1 }

func (y Year) String() string {
	return fmt.Sprintf("%d-%d", y.Start, y.End())
}

// Months returns the 12 months of the year, November first.
func (y Year) Months() [12]Month {
	var out [12]Month
	for i := range out {
		m := int(FirstMonth) + i
		year := y.Start
		if m > 12 {
			m -= 12
			year++
		}
		out[i] = Month{Year: year, Month: time.Month(m)}
	}
	return out
}

// DateRange returns the first and last day of the year, both inclusive.
func (y Year) DateRange() (start, end time.Time) {
	start = time.Date(y.Start, FirstMonth, 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(1, 0, -1)
	return start, end
}

// Contains reports whether the calendar day of d falls inside the year.
func (y Year) Contains(d time.Time) bool {
	return YearOf(d) == y
}

// Index returns the position (0-11) of m inside y, or -1.
func (y Year) Index(m Month) int {
	if m.FiscalYear() != y {
		return -1
	}
	return (int(m.Month) - int(FirstMonth) + 12) % 12
}
