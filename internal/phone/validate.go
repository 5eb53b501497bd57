// Package phone classifies raw phone strings as usable North American
// numbers or rejects them.
package phone

import (
	"strings"

	"golang.org/x/text/width"
)

// Verdict is the outcome of validating a raw phone string.
type Verdict struct {
	Valid bool
	// Number is the normalized 10-digit number, set whenever the digit
	// count was correct.
	Number string
	// Reason explains a rejection.
	Reason string
}

// Rejection reasons.
const (
	ReasonDigitCount  = "must contain 10 digits"
	ReasonPlaceholder = "placeholder number"
	ReasonFictional   = "reserved 555 exchange"
)

// placeholders are numbers that show up in forms but never belong to anyone.
var placeholders = map[string]bool{
	"1234567890": true,
}

// Normalize folds full-width digits to ASCII and strips everything else.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range width.Fold.String(raw) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Validate classifies raw. It never fails: malformed input is an invalid
// verdict.
func Validate(raw string) Verdict {
	digits := Normalize(raw)
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return Verdict{Reason: ReasonDigitCount}
	}
	if placeholders[digits] || sameDigit(digits) {
		return Verdict{Number: digits, Reason: ReasonPlaceholder}
	}
	if digits[3:6] == "555" {
		return Verdict{Number: digits, Reason: ReasonFictional}
	}
	return Verdict{Valid: true, Number: digits}
}

func sameDigit(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}
