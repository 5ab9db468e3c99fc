package money

import "testing"

func TestCentsToString(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{50, "0.50"},
		{1250, "12.50"},
		{100000, "1000.00"},
		{-5, "-0.05"},
		{-1250, "-12.50"},
	}
	for _, tc := range cases {
		if got := CentsToString(tc.cents); got != tc.want {
			t.Errorf("CentsToString(%d) = %q, want %q", tc.cents, got, tc.want)
		}
	}
}

func TestParseToCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"12.50", 1250},
		{"12.5", 1250},
		{"12", 1200},
		{".50", 50},
		{" 7.25 ", 725},
		{"-0.05", -5},
	}
	for _, tc := range cases {
		got, err := ParseToCents(tc.in)
		if err != nil {
			t.Errorf("ParseToCents(%q) returned error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseToCents(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseToCentsRejectsInvalid(t *testing.T) {
	for _, in := range []string{"", "abc", "12.505", "1,50", "12.x"} {
		if _, err := ParseToCents(in); err == nil {
			t.Errorf("ParseToCents(%q) should have failed", in)
		}
	}
}
