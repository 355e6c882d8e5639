// Package core provides money parsing and handling utilities.
//
// Amounts are stored as whole Vietnamese đồng. The currency has no
// fractional unit in practice, so there is no cents scale.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// Money is an amount in whole đồng.
type Money struct {
	Dong int64
}

func (m Money) Validate() error {
	if m.Dong < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ParseAmount converts a form string to whole đồng.
//
// Thousands separators (dot or comma) are tolerated, signs are not. Zero is
// accepted: an entry can record a free item.
//
// Examples:
//
//	ParseAmount("45000")   -> 45000, nil
//	ParseAmount("45.000")  -> 45000, nil
//	ParseAmount("-5")      -> 0, ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", "")
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return Money{}, ErrInvalidAmount
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return Money{Dong: v}, nil
}

// Format renders the amount with dot thousands separators and the đồng sign,
// e.g. 1234567 -> "1.234.567 ₫".
func (m Money) Format() string {
	digits := strconv.FormatInt(m.Dong, 10)
	var b strings.Builder
	n := len(digits)
	for i, r := range digits {
		if i > 0 && (n-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteString(" ₫")
	return b.String()
}
