package fiscal

import (
	"fmt"
	"time"
)

// Month is a calendar month, rendered as "YYYY-MM".
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the calendar month of d.
func MonthOf(d time.Time) Month {
	return Month{Year: d.Year(), Month: d.Month()}
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return MonthOf(t), nil
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// DateRange returns the first and last day of the month, both inclusive.
func (m Month) DateRange() (start, end time.Time) {
	start = time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, -1)
	return start, end
}

// FiscalYear returns the fiscal year containing m.
func (m Month) FiscalYear() Year {
	return YearOf(time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC))
}

// Contains reports whether d falls in m.
func (m Month) Contains(d time.Time) bool {
	return d.Year() == m.Year && d.Month() == m.Month
}

func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (y Year) MarshalText() ([]byte, error) {
	return []byte(y.String()), nil
}

func (y *Year) UnmarshalText(b []byte) error {
	parsed, err := ParseYear(string(b))
	if err != nil {
		return err
	}
	*y = parsed
	return nil
}
