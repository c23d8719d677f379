// =============================================================================
// SEPA Direct Debit Generator - Identifier Validator
// =============================================================================
//
// This module validates the three financial identifiers that appear in a
// direct-debit collection file:
//   - IBAN: ISO 13616 account number, MOD-97-10 checksum + country length
//   - BIC: ISO 9362 bank code, format only (BIC carries no checksum)
//   - Creditor Identifier: EPC creditor scheme id, MOD-97-10 checksum over
//     the national identifier (the business code is excluded)
//
// CONTRACT:
//   Every validator returns a Result value. Nothing in this package panics
//   or returns an error; callers inspect Result.Valid and Result.Reason.
//
// =============================================================================

package identifier

import (
	"regexp"
	"strings"
	"unicode"
)

// =============================================================================
// RESULT TYPES
// =============================================================================

// Reason is a machine-checkable validation failure code.
type Reason string

const (
	// ReasonNone is used for valid results.
	ReasonNone Reason = ""

	// ReasonMissing means the input was empty after whitespace stripping.
	ReasonMissing Reason = "missing"

	// ReasonInvalidFormat means the input failed a structural or checksum rule.
	ReasonInvalidFormat Reason = "invalid format"

	// ReasonInvalid means a Creditor Identifier failed its checksum.
	ReasonInvalid Reason = "invalid"
)

// Result is the outcome of validating a single identifier.
type Result struct {
	// Valid is true when the identifier passed every rule.
	Valid bool

	// Reason is the failure code. Empty when Valid is true.
	Reason Reason

	// Message is a human-readable description of the failure.
	Message string
}

func ok() Result {
	return Result{Valid: true}
}

func fail(reason Reason, message string) Result {
	return Result{Valid: false, Reason: reason, Message: message}
}

// =============================================================================
// COUNTRY TABLE
// =============================================================================

// ibanLengths is the total IBAN length per country (SWIFT IBAN registry).
var ibanLengths = map[string]int{
	"AD": 24, "AE": 23, "AL": 28, "AT": 20, "AZ": 28, "BA": 20, "BE": 16,
	"BG": 22, "BH": 22, "BI": 27, "BR": 29, "BY": 28, "CH": 21, "CR": 22,
	"CY": 28, "CZ": 24, "DE": 22, "DJ": 27, "DK": 18, "DO": 28, "EE": 20,
	"EG": 29, "ES": 24, "FI": 18, "FK": 18, "FO": 18, "FR": 27, "GB": 22,
	"GE": 22, "GI": 23, "GL": 18, "GR": 27, "GT": 28, "HR": 21, "HU": 28,
	"IE": 22, "IL": 23, "IQ": 23, "IS": 26, "IT": 27, "JO": 30, "KW": 30,
	"KZ": 20, "LB": 28, "LC": 32, "LI": 21, "LT": 20, "LU": 20, "LV": 21,
	"LY": 25, "MC": 27, "MD": 24, "ME": 22, "MK": 19, "MN": 20, "MR": 27,
	"MT": 31, "MU": 30, "NI": 28, "NL": 18, "NO": 15, "OM": 23, "PK": 24,
	"PL": 28, "PS": 29, "QA": 29, "RO": 24, "RS": 22, "RU": 33, "SA": 24,
	"SC": 31, "SD": 18, "SE": 24, "SI": 19, "SK": 24, "SM": 27, "SO": 23,
	"ST": 25, "SV": 28, "TL": 23, "TN": 24, "TR": 26, "UA": 29, "VA": 22,
	"VG": 24, "XK": 20, "YE": 30,
}

var (
	ibanPattern       = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]{1,30}$`)
	bicPattern        = regexp.MustCompile(`^[A-Z]{6}[A-Z0-9]{2}([A-Z0-9]{3})?$`)
	creditorIDPattern = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]{3}[A-Z0-9]{1,28}$`)
)

// =============================================================================
// VALIDATORS
// =============================================================================

// ValidateIBAN validates an IBAN.
//
// PROCESS:
//  1. Strip whitespace and uppercase the input
//  2. Check the generic shape (country, check digits, BBAN)
//  3. Check the total length against the country table
//  4. Move the first four characters to the end, expand letters to
//     A=10..Z=35 and require the number mod 97 to equal 1
func ValidateIBAN(s string) Result {
	clean := NormalizeIBAN(s)
	if clean == "" {
		return fail(ReasonMissing, "IBAN is missing")
	}

	if !ibanPattern.MatchString(clean) {
		return fail(ReasonInvalidFormat, "IBAN has an invalid format")
	}

	length, known := ibanLengths[clean[:2]]
	if !known || len(clean) != length {
		return fail(ReasonInvalidFormat, "IBAN has an invalid length for its country")
	}

	if mod97(clean[4:]+clean[:4]) != 1 {
		return fail(ReasonInvalidFormat, "IBAN checksum is invalid")
	}

	return ok()
}

// ValidateBIC validates a BIC (8 or 11 characters).
func ValidateBIC(s string) Result {
	clean := stripWhitespace(s)
	if clean == "" {
		return fail(ReasonMissing, "BIC is missing")
	}

	if !bicPattern.MatchString(clean) {
		return fail(ReasonInvalidFormat, "BIC must be 8 or 11 characters: 6 letters followed by 2 or 5 alphanumerics")
	}

	return ok()
}

// ValidateCreditorID validates a SEPA Creditor Identifier such as
// DE98ZZZ09999999999.
//
// The layout is country code (2), check digits (2), creditor business code
// (3) and the national identifier. The check digits are computed over the
// national identifier followed by the country code, exactly like an IBAN,
// with the business code left out.
func ValidateCreditorID(s string) Result {
	clean := Compact(s)
	if clean == "" {
		return fail(ReasonMissing, "Creditor Identifier is missing")
	}

	if !creditorIDPattern.MatchString(clean) {
		return fail(ReasonInvalid, "Creditor Identifier has an invalid structure")
	}

	if mod97(clean[7:]+clean[:4]) != 1 {
		return fail(ReasonInvalid, "Creditor Identifier checksum is invalid")
	}

	return ok()
}

// =============================================================================
// FORMATTING
// =============================================================================

// FormatIBAN groups an IBAN into blocks of four characters separated by a
// single space. It never validates.
func FormatIBAN(s string) string {
	clean := stripWhitespace(s)
	if clean == "" {
		return ""
	}

	var b strings.Builder
	for i, r := range []rune(clean) {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}

	return b.String()
}

// NormalizeIBAN strips whitespace and uppercases. This is the wire form.
func NormalizeIBAN(s string) string {
	return Compact(s)
}

// Compact strips whitespace and uppercases any identifier.
func Compact(s string) string {
	return strings.ToUpper(stripWhitespace(s))
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// mod97 computes the ISO 7064 MOD 97-10 remainder of an alphanumeric string,
// expanding letters to two digits. The input must be [0-9A-Z].
func mod97(s string) int {
	rem := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			rem = (rem*10 + int(r-'0')) % 97
		case r >= 'A' && r <= 'Z':
			v := int(r-'A') + 10
			rem = (rem*100 + v) % 97
		}
	}
	return rem
}
