package fiscal

import (
	"errors"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestYearOf(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		want string
	}{
		{"first day", day(2024, time.November, 1), "2024-2025"},
		{"december", day(2024, time.December, 31), "2024-2025"},
		{"january", day(2025, time.January, 1), "2024-2025"},
		{"last day", day(2025, time.October, 31), "2024-2025"},
		{"next year first day", day(2025, time.November, 1), "2025-2026"},
		{"late evening", time.Date(2025, time.October, 31, 23, 59, 59, 0, time.UTC), "2024-2025"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := YearOf(tt.date).String(); got != tt.want {
				t.Errorf("YearOf(%s) = %s, want %s", tt.date.Format("2006-01-02"), got, tt.want)
			}
		})
	}
}

func TestDateRange(t *testing.T) {
	y, err := ParseYear("2024-2025")
	if err != nil {
		t.Fatal(err)
	}
	start, end := y.DateRange()
	if got := start.Format("2006-01-02"); got != "2024-11-01" {
		t.Errorf("start = %s", got)
	}
	if got := end.Format("2006-01-02"); got != "2025-10-31" {
		t.Errorf("end = %s", got)
	}
	if !y.Contains(day(2025, time.October, 31)) {
		t.Error("2025-10-31 must belong to 2024-2025")
	}
	if y.Contains(day(2025, time.November, 1)) {
		t.Error("2025-11-01 must not belong to 2024-2025")
	}
}

func TestMonthsOrder(t *testing.T) {
	for _, start := range []int{1999, 2023, 2024, 2100} {
		months := Year{Start: start}.Months()
		if len(months) != 12 {
			t.Fatalf("got %d months", len(months))
		}
		if months[0] != (Month{Year: start, Month: time.November}) {
			t.Errorf("first month = %s", months[0])
		}
		if months[11] != (Month{Year: start + 1, Month: time.October}) {
			t.Errorf("last month = %s", months[11])
		}
		for i := 1; i < 12; i++ {
			prev, _ := months[i-1].DateRange()
			cur, _ := months[i].DateRange()
			if !prev.AddDate(0, 1, 0).Equal(cur) {
				t.Errorf("months[%d]=%s does not follow %s", i, months[i], months[i-1])
			}
		}
	}
}

// Every day over several years lands in exactly one fiscal year whose
// month list contains the day's "YYYY-MM" prefix.
func TestEveryDayBelongsToItsYear(t *testing.T) {
	for d := day(2019, time.January, 1); d.Before(day(2027, time.January, 1)); d = d.AddDate(0, 0, 1) {
		y := YearOf(d)
		prefix := d.Format("2006-01")
		found := 0
		for _, m := range y.Months() {
			if m.String() == prefix {
				found++
			}
		}
		if found != 1 {
			t.Fatalf("%s: prefix %s found %d times in %s", d.Format("2006-01-02"), prefix, found, y)
		}
		if (Year{Start: y.Start - 1}).Contains(d) || (Year{Start: y.Start + 1}).Contains(d) {
			t.Fatalf("%s belongs to more than one fiscal year", d.Format("2006-01-02"))
		}
		start, end := y.DateRange()
		if d.Before(start) || d.After(end) {
			t.Fatalf("%s outside %s range", d.Format("2006-01-02"), y)
		}
	}
}

func TestParseYearRejects(t *testing.T) {
	for _, key := range []string{"", "2024", "2024-2026", "24-25", "abcd-efgh", "2024_2025"} {
		if _, err := ParseYear(key); !errors.Is(err, ErrInvalidYear) {
			t.Errorf("ParseYear(%q) err = %v", key, err)
		}
	}
}

func TestMonth(t *testing.T) {
	m, err := ParseMonth("2025-02")
	if err != nil {
		t.Fatal(err)
	}
	start, end := m.DateRange()
	if start.Format("2006-01-02") != "2025-02-01" || end.Format("2006-01-02") != "2025-02-28" {
		t.Errorf("range = %s..%s", start, end)
	}
	if m.FiscalYear().String() != "2024-2025" {
		t.Errorf("fiscal year = %s", m.FiscalYear())
	}
	if idx := m.FiscalYear().Index(m); idx != 3 {
		t.Errorf("index = %d, want 3", idx)
	}
	if _, err := ParseMonth("2025-13"); !errors.Is(err, ErrInvalidMonth) {
		t.Errorf("expected ErrInvalidMonth, got %v", err)
	}
}
