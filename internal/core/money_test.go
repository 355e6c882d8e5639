package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"45000", 45000, true},
		{"45.000", 45000, true},
		{"1,234,567", 1234567, true},
		{" 5000 ", 5000, true},
		{"0", 0, true},
		{"-5", 0, false},
		{"+5", 0, false},
		{"abc", 0, false},
		{"12đ", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Dong != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Dong, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyFormat(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 ₫"},
		{500, "500 ₫"},
		{45000, "45.000 ₫"},
		{1234567, "1.234.567 ₫"},
	}
	for _, tc := range cases {
		if got := (Money{Dong: tc.in}).Format(); got != tc.want {
			t.Fatalf("%d expected %q, got %q", tc.in, tc.want, got)
		}
	}
}
