package identifier_test

import (
	"math/big"
	"math/rand"
	"strconv"
	"strings"
	"testing"
	"testing/quick"
	"unicode"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubsepa/lastschrift/internal/identifier"
)

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func TestValidateIBAN(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		valid  bool
		reason identifier.Reason
	}{
		{"german", "DE89370400440532013000", true, identifier.ReasonNone},
		{"with spaces", "DE89 3704 0044 0532 0130 00", true, identifier.ReasonNone},
		{"lowercase", "de89370400440532013000", true, identifier.ReasonNone},
		{"british", "GB82WEST12345698765432", true, identifier.ReasonNone},
		{"austrian", "AT611904300234573201", true, identifier.ReasonNone},
		{"dutch", "NL91ABNA0417164300", true, identifier.ReasonNone},
		{"empty", "", false, identifier.ReasonMissing},
		{"blank", "   ", false, identifier.ReasonMissing},
		{"bad checksum", "DE89370400440532013001", false, identifier.ReasonInvalidFormat},
		{"swapped check digits", "DE98370400440532013000", false, identifier.ReasonInvalidFormat},
		{"too short for country", "DE8937040044053201300", false, identifier.ReasonInvalidFormat},
		{"unknown country", "XX89370400440532013000", false, identifier.ReasonInvalidFormat},
		{"garbage", "not an iban", false, identifier.ReasonInvalidFormat},
		{"punctuation", "DE89-3704-0044-0532-0130-00", false, identifier.ReasonInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := identifier.ValidateIBAN(tt.input)
			assert.Equal(t, tt.valid, got.Valid)
			assert.Equal(t, tt.reason, got.Reason)
			if !tt.valid {
				assert.NotEmpty(t, got.Message)
			}
		})
	}
}

func TestValidateIBAN_SingleDigitMutationsAreRejected(t *testing.T) {
	valid := "DE89370400440532013000"

	for pos := 2; pos < len(valid); pos++ {
		for d := '0'; d <= '9'; d++ {
			if rune(valid[pos]) == d {
				continue
			}
			mutated := valid[:pos] + string(d) + valid[pos+1:]
			assert.False(t, identifier.ValidateIBAN(mutated).Valid, "mutation %s accepted", mutated)
		}
	}
}

func TestValidateBIC(t *testing.T) {
	tests := []struct {
		input  string
		valid  bool
		reason identifier.Reason
	}{
		{"COBADEFFXXX", true, identifier.ReasonNone},
		{"COBADEFF", true, identifier.ReasonNone},
		{" COBA DEFF ", true, identifier.ReasonNone},
		{"", false, identifier.ReasonMissing},
		{"BANKDE1", false, identifier.ReasonInvalidFormat},
		{"BANKDE12X", false, identifier.ReasonInvalidFormat},
		{"cobadeffxxx", false, identifier.ReasonInvalidFormat},
		{"C0BADEFF", false, identifier.ReasonInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := identifier.ValidateBIC(tt.input)
			assert.Equal(t, tt.valid, got.Valid)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestValidateCreditorID(t *testing.T) {
	tests := []struct {
		input  string
		valid  bool
		reason identifier.Reason
	}{
		{"DE98ZZZ09999999999", true, identifier.ReasonNone},
		{"DE98 ZZZ 09999999999", true, identifier.ReasonNone},
		{"AT61ZZZ01234567890", true, identifier.ReasonNone},
		{"", false, identifier.ReasonMissing},
		{"DE98ZZZ09999999998", false, identifier.ReasonInvalid},
		{"DE02ZZZ01234567890", false, identifier.ReasonInvalid},
		{"DE98ZZZ", false, identifier.ReasonInvalid},
		{"ZZZ", false, identifier.ReasonInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := identifier.ValidateCreditorID(tt.input)
			assert.Equal(t, tt.valid, got.Valid)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestFormatIBAN(t *testing.T) {
	assert.Equal(t, "DE89 3704 0044 0532 0130 00", identifier.FormatIBAN("DE89370400440532013000"))
	assert.Equal(t, "DE89 3704 0044 0532 0130 00", identifier.FormatIBAN("DE 8937 04004405 32013000"))
	assert.Equal(t, "", identifier.FormatIBAN(""))
	assert.Equal(t, "", identifier.FormatIBAN("  \t"))
	assert.Equal(t, "ABC", identifier.FormatIBAN("ABC"))
}

func TestFormatIBAN_PreservesContent(t *testing.T) {
	inputs := []string{
		"",
		"a",
		"DE89370400440532013000",
		"  de89 3704\t0044 ",
		"ÄÖÜäöüß123",
		"1234567890123456789012345678901234",
		"x y z",
	}

	for _, in := range inputs {
		assert.Equal(t, stripSpaces(in), stripSpaces(identifier.FormatIBAN(in)), "input %q", in)
	}
}

const (
	digits  = "0123456789"
	letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// randomIBAN builds a valid IBAN for country from a BBAN whose layout is
// given as a string of 'a' (letter) and 'n' (digit) positions.
func randomIBAN(r *rand.Rand, country, layout string) string {
	var bban strings.Builder
	for _, kind := range layout {
		if kind == 'a' {
			bban.WriteByte(letters[r.Intn(len(letters))])
		} else {
			bban.WriteByte(digits[r.Intn(len(digits))])
		}
	}

	var expanded strings.Builder
	for _, c := range bban.String() + country + "00" {
		if c >= 'A' && c <= 'Z' {
			expanded.WriteString(strconv.Itoa(int(c-'A') + 10))
		} else {
			expanded.WriteRune(c)
		}
	}
	n, _ := new(big.Int).SetString(expanded.String(), 10)
	check := 98 - new(big.Int).Mod(n, big.NewInt(97)).Int64()

	return country + leftPad(strconv.FormatInt(check, 10)) + bban.String()
}

func leftPad(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

func TestFormatIBAN_Groups(t *testing.T) {
	cfg := &quick.Config{MaxCount: 500, Rand: rand.New(rand.NewSource(1))}

	property := func(s string) bool {
		formatted := identifier.FormatIBAN(s)
		if stripSpaces(formatted) != stripSpaces(s) {
			return false
		}
		if formatted == "" {
			return true
		}
		groups := strings.Split(formatted, " ")
		for i, g := range groups {
			n := utf8.RuneCountInString(g)
			if n == 0 || n > 4 || (i < len(groups)-1 && n != 4) {
				return false
			}
		}
		return true
	}

	assert.NoError(t, quick.Check(property, cfg))
}

func TestFormatIBAN_RoundTripsValidIBANs(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	layouts := map[string]string{
		"DE": "nnnnnnnnnnnnnnnnnn",
		"GB": "aaaannnnnnnnnnnnnn",
		"NL": "aaaannnnnnnnnn",
		"FR": "nnnnnnnnnnaaaaaaaaaaann",
	}

	for country, layout := range layouts {
		for i := 0; i < 50; i++ {
			iban := randomIBAN(r, country, layout)
			require.True(t, identifier.ValidateIBAN(iban).Valid, "generated %s", iban)

			formatted := identifier.FormatIBAN(iban)
			assert.Equal(t, iban, identifier.Compact(formatted))
			assert.True(t, identifier.ValidateIBAN(formatted).Valid, "formatted %s", formatted)
			assert.True(t, identifier.ValidateIBAN(strings.ToLower(formatted)).Valid, "lowercase %s", formatted)
		}
	}
}

// A single substituted character is always caught when a letter replaces a
// letter or a digit replaces a digit, wherever it sits.
func TestValidateIBAN_RandomMutationsAreRejected(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		iban := randomIBAN(r, "GB", "aaaannnnnnnnnnnnnn")
		pos := r.Intn(len(iban))

		alphabet := digits
		if strings.IndexByte(letters, iban[pos]) >= 0 {
			alphabet = letters
		}
		c := alphabet[r.Intn(len(alphabet))]
		if c == iban[pos] {
			c = alphabet[(strings.IndexByte(alphabet, c)+1)%len(alphabet)]
		}

		mutated := iban[:pos] + string(c) + iban[pos+1:]
		assert.False(t, identifier.ValidateIBAN(mutated).Valid, "mutation %s of %s accepted", mutated, iban)
	}
}
