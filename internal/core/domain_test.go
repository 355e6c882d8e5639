package core

import (
	"testing"
	"time"
)

func TestEntryValidate(t *testing.T) {
	good := Entry{
		Owner:       "u1",
		Category:    "Ăn uống",
		Description: "cà phê",
		Amount:      Money{Dong: 25000},
		Date:        time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Entry{
		{Owner: "", Category: "c", Description: "a", Amount: Money{Dong: 1}, Date: good.Date},
		{Owner: "u1", Category: "c", Description: "   ", Amount: Money{Dong: 1}, Date: good.Date},
		{Owner: "u1", Category: "c", Description: "a", Amount: Money{Dong: -1}, Date: good.Date},
		{Owner: "u1", Category: "c", Description: "a", Amount: Money{Dong: 1}},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestEntryValidateZeroAmountAllowed(t *testing.T) {
	e := Entry{
		Owner:       "u1",
		Category:    "Khác",
		Description: "quà tặng",
		Amount:      Money{Dong: 0},
		Date:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := e.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestCategoryValidate(t *testing.T) {
	if err := (Category{Owner: "u1", Name: "Ăn uống"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Category{Owner: "u1", Name: "  "}).Validate(); err == nil {
		t.Fatalf("expected error for blank name")
	}
	if err := (Category{Owner: "", Name: "x"}).Validate(); err == nil {
		t.Fatalf("expected error for missing owner")
	}
}

func TestParseEntryDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2024-03-10T14:30", true},
		{"2024-03-10", true},
		{" 2024-03-10 ", true},
		{"10/03/2024", false},
		{"", false},
	}
	for _, tc := range cases {
		_, err := ParseEntryDate(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("%q expected ok, got %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}
