package validation_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubsepa/lastschrift/internal/config"
	"github.com/clubsepa/lastschrift/internal/member"
	"github.com/clubsepa/lastschrift/internal/validation"
)

func goodRecord() member.Record {
	return member.Record{
		Row:              2,
		FullName:         "Anna Muster",
		IBAN:             "DE89 3704 0044 0532 0130 00",
		MandateDate:      "01.01.2023",
		MandateReference: "001",
	}
}

func TestValidate_CleanRecord(t *testing.T) {
	result := validation.Validate([]member.Record{goodRecord()})

	assert.True(t, result.IsValid())
	assert.True(t, result.IsClean())
	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, result.RecordsValidated)
	assert.Equal(t, "No validation errors.", validation.FormatErrors(result.Errors))
}

func TestValidate_EmptyInputIsValidButNotClean(t *testing.T) {
	result := validation.Validate(nil)
	assert.True(t, result.IsValid())
	assert.False(t, result.IsClean())
}

func TestValidate_ProblemsKeyedByRecord(t *testing.T) {
	badIBAN := goodRecord()
	badIBAN.IBAN = "DE89370400440532013001"
	badIBAN.MandateReference = "002"

	missing := member.Record{Row: 4, FullName: "Bob"}

	result := validation.Validate([]member.Record{goodRecord(), badIBAN, missing})

	assert.False(t, result.IsValid())
	assert.Equal(t, 4, result.ErrorCount)
	assert.Equal(t, 0, result.WarningCount)
	assert.Equal(t, []int{1, 2}, result.RecordIndexes())

	byRecord := result.ByRecord()
	assert.Len(t, byRecord[1], 1)
	assert.Contains(t, byRecord[1][0], "checksum")
	assert.Equal(t, []string{
		"IBAN is missing",
		"mandate reference is missing",
		"mandate date is missing",
	}, byRecord[2])

	assert.Equal(t, 4, result.Errors[1].Row)
	assert.Equal(t, validation.RuleRequired, result.Errors[1].Rule)
}

func TestValidate_Warnings(t *testing.T) {
	rec := goodRecord()
	rec.MandateDate = "Januar 2023"
	rec.FeeText = "1.234,50"

	result := validation.Validate([]member.Record{rec})

	assert.True(t, result.IsValid())
	assert.False(t, result.IsClean())
	assert.Equal(t, 2, result.WarningCount)

	rules := []string{result.Errors[0].Rule, result.Errors[1].Rule}
	assert.ElementsMatch(t, []string{validation.RuleMandateDateParse, validation.RuleFeeFormat}, rules)
	assert.Equal(t, "1.234,50", result.Errors[1].Value)
}

func TestValidate_Names(t *testing.T) {
	tests := []struct {
		name string
		rec  func(r *member.Record)
		rule string
	}{
		{"no name", func(r *member.Record) { r.FullName = "" }, validation.RuleName},
		{"first name only", func(r *member.Record) {
			r.FullName = ""
			r.FirstName = "Anna"
		}, validation.RuleName},
		{"cyrillic", func(r *member.Record) { r.FullName = "Иван Петров" }, validation.RuleNameCharset},
		{"punctuation only", func(r *member.Record) { r.FullName = "***" }, validation.RuleNameCharset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := goodRecord()
			tt.rec(&rec)

			result := validation.Validate([]member.Record{rec})
			require.Len(t, result.Errors, 1)
			assert.Equal(t, tt.rule, result.Errors[0].Rule)
			assert.Equal(t, validation.SeverityError, result.Errors[0].Severity)
			assert.False(t, result.IsValid())
		})
	}

	rec := goodRecord()
	rec.FullName = "José Ñúñez"
	assert.Empty(t, validation.Validate([]member.Record{rec}).Errors)
}

func TestValidateForClub_MandateReferences(t *testing.T) {
	club := config.OriginatorConfig{
		MandateReferencePrefix: "TSV-MUSTERSTADT-ABTEILUNG-TENNIS-",
		PrefixMandateID:        true,
	}

	refs := []string{"0001", "0002", "M_17"}
	records := make([]member.Record, len(refs))
	for i, ref := range refs {
		records[i] = goodRecord()
		records[i].Row = i + 2
		records[i].MandateReference = ref
	}

	result := validation.NewValidator().ValidateForClub(club, records)
	assert.False(t, result.IsValid())
	assert.Equal(t, []int{0, 1, 2}, result.RecordIndexes())

	byRecord := result.ByRecord()
	assert.Len(t, byRecord[0], 1)
	assert.Contains(t, byRecord[0][0], "longer than 35 characters")
	require.Len(t, byRecord[1], 2)
	assert.Contains(t, byRecord[1][1], "like record 1")
	assert.Contains(t, byRecord[2][0], "longer than 35 characters")

	// Without the prefix in the mandate id only the underscore is a problem.
	club.PrefixMandateID = false
	result = validation.NewValidator().ValidateForClub(club, records)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Index)
	assert.Equal(t, validation.RuleMandateReference, result.Errors[0].Rule)
	assert.Contains(t, result.Errors[0].Message, `written as "M17"`)
}

func TestValidate_SharedMandateReference(t *testing.T) {
	twin := goodRecord()
	twin.Row = 3

	result := validation.Validate([]member.Record{goodRecord(), twin})
	assert.True(t, result.IsValid())
	require.Len(t, result.Errors, 1)
	assert.Equal(t, validation.RuleMandateDuplicate, result.Errors[0].Rule)
	assert.Equal(t, 1, result.Errors[0].Index)
	assert.Equal(t, validation.SeverityWarning, result.Errors[0].Severity)
}

func TestValidate_DoesNotModifyRecords(t *testing.T) {
	records := []member.Record{goodRecord()}
	before := records[0]

	validation.Validate(records)

	assert.Equal(t, before, records[0])
}

func TestValidator_TreatWarningsAsErrors(t *testing.T) {
	rec := goodRecord()
	rec.MandateDate = "Januar 2023"

	v := validation.NewValidatorWithOptions(validation.ValidationOptions{TreatWarningsAsErrors: true})
	result := v.ValidateAll([]member.Record{rec})

	assert.False(t, result.IsValid())
	require.Len(t, result.Errors, 1)
	assert.Equal(t, validation.SeverityError, result.Errors[0].Severity)
}

func TestValidator_CustomValidators(t *testing.T) {
	v := validation.NewValidatorWithOptions(validation.ValidationOptions{
		CustomValidators: map[string]validation.CustomValidatorFunc{
			"reference_numeric": func(rec member.Record) string {
				if strings.Trim(rec.MandateReference, "0123456789") != "" {
					return "mandate reference must be numeric"
				}
				return ""
			},
		},
	})

	ok := goodRecord()
	bad := goodRecord()
	bad.MandateReference = "A-1"

	result := v.ValidateAll([]member.Record{ok, bad})

	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Errors[0].Index)
	assert.Equal(t, "reference_numeric", result.Errors[0].Rule)
}

func TestFormatErrors(t *testing.T) {
	rec := goodRecord()
	rec.IBAN = ""

	result := validation.Validate([]member.Record{rec})
	out := validation.FormatErrors(result.Errors)

	assert.Contains(t, out, "1 problem(s)")
	assert.Contains(t, out, "[ERROR] Record 1 (row 2), Field 'iban': IBAN is missing")
}
