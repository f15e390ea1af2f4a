package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"1,234.50", "1234.5", true},
		{" 2.50 ", "2.5", true},
		{"0", "0", true},
		{"-1", "", false},
		{"+1", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if !tc.ok {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
			continue
		}
		if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
			t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
		}
	}
}

func TestParseRateRejectsZero(t *testing.T) {
	if _, err := ParseRate("0"); err == nil {
		t.Fatal("expected error for zero rate")
	}
	r, err := ParseRate("36.5")
	if err != nil || !r.Equal(decimal.RequireFromString("36.5")) {
		t.Fatalf("got %s, %v", r, err)
	}
}
