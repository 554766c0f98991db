package parimutuel

import "testing"

func TestFormatOdds_Decimal(t *testing.T) {
	if got := FormatOdds(d(2.5), FormatDecimal); got != "2.50" {
		t.Errorf("expected 2.50, got %s", got)
	}
	if got := FormatOdds(d(1.333), FormatDecimal); got != "1.33" {
		t.Errorf("expected 1.33, got %s", got)
	}
	// Unknown format falls back to decimal.
	if got := FormatOdds(d(4), OddsFormat("martian")); got != "4.00" {
		t.Errorf("expected 4.00, got %s", got)
	}
}

func TestFormatOdds_American(t *testing.T) {
	cases := []struct {
		odds float64
		want string
	}{
		{2.5, "+150"},
		{4, "+300"},
		{2, "+100"},
		{1.67, "-149"},
		{1.5, "-200"},
		{1, "-100"},
		{0.98, "-100"},
	}
	for _, tc := range cases {
		if got := FormatOdds(d(tc.odds), FormatAmerican); got != tc.want {
			t.Errorf("odds %v: expected %s, got %s", tc.odds, tc.want, got)
		}
	}
}

func TestFormatOdds_Fractional(t *testing.T) {
	cases := []struct {
		odds float64
		want string
	}{
		{3.5, "5/2"},
		{2, "1/1"},
		{4, "3/1"},
		{1.5, "1/2"},
		{1.33, "1/3"},
		{1, "0/1"},
		{0.9, "0/1"},
	}
	for _, tc := range cases {
		if got := FormatOdds(d(tc.odds), FormatFractional); got != tc.want {
			t.Errorf("odds %v: expected %s, got %s", tc.odds, tc.want, got)
		}
	}
}
