package phone

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		valid  bool
		number string
		reason string
	}{
		{"plain ten digits", "6199220905", true, "6199220905", ""},
		{"formatted", "(619) 922-0905", true, "6199220905", ""},
		{"country code", "+1 619 922 0905", true, "6199220905", ""},
		{"eleven digits leading one", "16199220905", true, "6199220905", ""},
		{"eleven digits leading two", "26199220905", false, "", ReasonDigitCount},
		{"too short", "555-0100", false, "", ReasonDigitCount},
		{"too long", "619922090512", false, "", ReasonDigitCount},
		{"empty", "", false, "", ReasonDigitCount},
		{"letters only", "call me", false, "", ReasonDigitCount},
		{"all zeros", "0000000000", false, "0000000000", ReasonPlaceholder},
		{"all ones", "1111111111", false, "1111111111", ReasonPlaceholder},
		{"all nines", "999-999-9999", false, "9999999999", ReasonPlaceholder},
		{"canonical fake", "123-456-7890", false, "1234567890", ReasonPlaceholder},
		{"555 exchange", "619-555-0100", false, "6195550100", ReasonFictional},
		{"555 exchange with country code", "1 (619) 555-0100", false, "6195550100", ReasonFictional},
		{"555 area code is fine", "5551230905", true, "5551230905", ""},
		{"full-width digits", "（６１９）９２２-０９０５", true, "6199220905", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Validate(tt.raw)
			assert.Equal(t, tt.valid, v.Valid)
			assert.Equal(t, tt.number, v.Number)
			assert.Equal(t, tt.reason, v.Reason)
		})
	}
}

func TestValidate_RejectsWrongDigitCounts(t *testing.T) {
	for n := 0; n <= 15; n++ {
		if n == 10 || n == 11 {
			continue
		}
		raw := ""
		for i := 0; i < n; i++ {
			raw += fmt.Sprint((i*7 + 3) % 10)
		}
		assert.False(t, Validate(raw).Valid, "%d digits: %q", n, raw)
	}
}

func TestValidate_Rejects555ExchangeRegardlessOfFormatting(t *testing.T) {
	for _, area := range []string{"212", "415", "619", "808"} {
		for _, format := range []string{"%s555%s", "(%s) 555-%s", "1-%s-555-%s", "+1 %s.555.%s"} {
			raw := fmt.Sprintf(format, area, "0142")
			assert.False(t, Validate(raw).Valid, raw)
		}
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "16199220905", Normalize("+1 (619) 922-0905"))
	assert.Equal(t, "", Normalize("n/a"))
	assert.Equal(t, "21", Normalize("١2x1"))
}
