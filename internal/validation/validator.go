// =============================================================================
// SEPA Direct Debit Generator - Validation Pass
// =============================================================================
//
// This module runs a read-only check over mapped member records before the
// document is built. It reports, per record:
//   - IBAN missing or failing the checksum
//   - Mandate date missing
//   - Mandate reference missing, too long or with characters the builder
//     would strip
//   - Mandate id equal to another member's after the builder's changes
//   - No name, or a name without a single SEPA character
//   - Mandate date in a format the builder will replace (warning)
//   - Fee cell that is not a number (warning, the default fee applies)
//   - Mandate reference shared with another member (warning)
//
// ERROR HANDLING:
//   - Problems are collected, never returned as a Go error
//   - Records are never modified
//   - The pass does not block generation; gating on a clean result is the
//     caller's policy (see --require-clean)
//
// CUSTOMIZATION:
//   - Register extra per-record checks through ValidationOptions.CustomValidators
//
// =============================================================================

package validation

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/clubsepa/lastschrift/internal/config"
	"github.com/clubsepa/lastschrift/internal/identifier"
	"github.com/clubsepa/lastschrift/internal/member"
	"github.com/clubsepa/lastschrift/internal/sepa"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Rule names.
const (
	RuleIBAN             = "iban"
	RuleRequired         = "required"
	RuleName             = "name"
	RuleNameCharset      = "name_charset"
	RuleMandateDateParse = "mandate_date_format"
	RuleMandateReference = "mandate_reference_format"
	RuleMandateDuplicate = "mandate_reference_duplicate"
	RuleFeeFormat        = "fee_format"
)

// maxMandateIDLength is the schema limit of MndtId.
const maxMandateIDLength = 35

// ValidationError represents a single problem on a record.
type ValidationError struct {
	// Severity is SeverityError or SeverityWarning.
	Severity string `json:"severity"`

	// Field is the logical field that failed.
	Field string `json:"field"`

	// Value is the offending value, if any.
	Value string `json:"value,omitempty"`

	// Rule is the check that was violated.
	Rule string `json:"rule"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// Index is the zero-based position of the record in the mapped sequence.
	Index int `json:"index"`

	// Row is the source row number (for error reporting).
	Row int `json:"row"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] Record %d (row %d), Field '%s': %s (value: '%s')",
		strings.ToUpper(e.Severity),
		e.Index+1,
		e.Row,
		e.Field,
		e.Message,
		e.Value,
	)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// Result contains the results of validation.
type Result struct {
	// Errors contains all problems, warnings included, in record order.
	Errors []*ValidationError

	// ErrorCount is the number of error-severity problems.
	ErrorCount int

	// WarningCount is the number of warnings.
	WarningCount int

	// RecordsValidated is the number of records checked.
	RecordsValidated int
}

// IsValid is true if there are no error-severity problems.
func (r *Result) IsValid() bool {
	return r.ErrorCount == 0
}

// IsClean is true if there are no problems at all and at least one record.
func (r *Result) IsClean() bool {
	return len(r.Errors) == 0 && r.RecordsValidated > 0
}

// ByRecord groups problem messages by record index.
func (r *Result) ByRecord() map[int][]string {
	out := make(map[int][]string)
	for _, e := range r.Errors {
		out[e.Index] = append(out[e.Index], e.Message)
	}
	return out
}

// RecordIndexes returns the indexes of records with at least one problem,
// in ascending order.
func (r *Result) RecordIndexes() []int {
	byRecord := r.ByRecord()
	indexes := make([]int, 0, len(byRecord))
	for i := range byRecord {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	return indexes
}

func (r *Result) add(e *ValidationError) {
	r.Errors = append(r.Errors, e)
	if e.Severity == SeverityError {
		r.ErrorCount++
	} else {
		r.WarningCount++
	}
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator performs the validation pass.
type Validator struct {
	options ValidationOptions
}

// ValidationOptions contains options for validation.
type ValidationOptions struct {
	// TreatWarningsAsErrors reports warnings with error severity.
	// Default: false
	TreatWarningsAsErrors bool

	// CustomValidators are extra checks keyed by rule name. A non-empty
	// return value is reported as an error on that record.
	CustomValidators map[string]CustomValidatorFunc
}

// CustomValidatorFunc checks one record and returns a problem message, or ""
// if the record passes.
type CustomValidatorFunc func(rec member.Record) string

// DefaultValidationOptions returns the default validation options.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{}
}

// NewValidator creates a new Validator with default options.
func NewValidator() *Validator {
	return NewValidatorWithOptions(DefaultValidationOptions())
}

// NewValidatorWithOptions creates a new Validator with custom options.
func NewValidatorWithOptions(options ValidationOptions) *Validator {
	return &Validator{options: options}
}

// =============================================================================
// MAIN VALIDATION FUNCTION
// =============================================================================

// Validate checks records with default options.
// This is the main entry point for validation.
func Validate(records []member.Record) *Result {
	return NewValidator().ValidateAll(records)
}

// ValidateAll checks every record without a club: mandate ids are judged
// without a prefix.
func (v *Validator) ValidateAll(records []member.Record) *Result {
	return v.ValidateForClub(config.OriginatorConfig{}, records)
}

// ValidateForClub checks every record and returns the collected problems.
//
// PARAMETERS:
//   - club: The collecting club. Its prefix settings decide the mandate id
//     that will be written.
//   - records: The mapped member records. They are not modified.
//
// RETURNS:
//   - The result. Never nil.
func (v *Validator) ValidateForClub(club config.OriginatorConfig, records []member.Record) *Result {
	result := &Result{Errors: []*ValidationError{}}

	for i := range records {
		for _, e := range v.ValidateRecord(club, i, records[i]) {
			result.add(e)
		}
		result.RecordsValidated++
	}

	for _, e := range v.checkMandateIDs(club, records) {
		result.add(e)
	}
	sort.SliceStable(result.Errors, func(a, b int) bool {
		return result.Errors[a].Index < result.Errors[b].Index
	})

	return result
}

// checkMandateIDs compares the written mandate ids across records. Equal ids
// from different stored references are an error (the builder skips the
// later member); a reference used twice is a warning.
func (v *Validator) checkMandateIDs(club config.OriginatorConfig, records []member.Record) []*ValidationError {
	type owner struct {
		index  int
		stored string
	}

	var errs []*ValidationError
	seen := make(map[string]owner)
	for i, rec := range records {
		if rec.MandateReference == "" {
			continue
		}
		stored := sepa.StoredMandateID(club, rec)
		written := sepa.MandateID(club, rec)

		first, ok := seen[written]
		if !ok {
			seen[written] = owner{index: i, stored: stored}
			continue
		}

		if first.stored != stored {
			errs = append(errs, v.problem(SeverityError, i, rec, "mandateReference", rec.MandateReference, RuleMandateReference,
				fmt.Sprintf("mandate id is written as %q like record %d, the member will be skipped", written, first.index+1)))
		} else {
			errs = append(errs, v.problem(SeverityWarning, i, rec, "mandateReference", rec.MandateReference, RuleMandateDuplicate,
				fmt.Sprintf("mandate reference is also used by record %d", first.index+1)))
		}
	}
	return errs
}

func (v *Validator) problem(severity string, index int, rec member.Record, field, value, rule, message string) *ValidationError {
	if severity == SeverityWarning && v.options.TreatWarningsAsErrors {
		severity = SeverityError
	}
	return &ValidationError{
		Severity: severity,
		Field:    field,
		Value:    value,
		Rule:     rule,
		Message:  message,
		Index:    index,
		Row:      rec.Row,
	}
}

// ValidateRecord checks a single record at position index.
func (v *Validator) ValidateRecord(club config.OriginatorConfig, index int, rec member.Record) []*ValidationError {
	var errs []*ValidationError

	report := func(severity, field, value, rule, message string) {
		errs = append(errs, v.problem(severity, index, rec, field, value, rule, message))
	}

	if rec.IBAN == "" {
		report(SeverityError, "iban", "", RuleRequired, "IBAN is missing")
	} else if res := identifier.ValidateIBAN(rec.IBAN); !res.Valid {
		report(SeverityError, "iban", rec.IBAN, RuleIBAN, res.Message)
	}

	if rec.MandateReference == "" {
		report(SeverityError, "mandateReference", "", RuleRequired, "mandate reference is missing")
	} else if sepa.MandateIDAltered(club, rec) {
		stored := sepa.StoredMandateID(club, rec)
		if utf8.RuneCountInString(stored) > maxMandateIDLength {
			report(SeverityError, "mandateReference", rec.MandateReference, RuleMandateReference,
				fmt.Sprintf("mandate id %q is longer than %d characters and would be cut", stored, maxMandateIDLength))
		} else {
			report(SeverityError, "mandateReference", rec.MandateReference, RuleMandateReference,
				fmt.Sprintf("mandate id %q contains characters not allowed in SEPA files and would be written as %q", stored, sepa.MandateID(club, rec)))
		}
	}

	if rec.MandateDate == "" {
		report(SeverityError, "mandateDate", "", RuleRequired, "mandate date is missing")
	} else if _, ok := sepa.ParseMandateDate(rec.MandateDate); !ok {
		report(SeverityWarning, "mandateDate", rec.MandateDate, RuleMandateDateParse,
			"mandate date not recognized, the build date will be used")
	}

	if !rec.HasName() {
		report(SeverityError, "name", rec.DisplayName(), RuleName,
			"neither a full name nor first and last name is set")
	} else if sepa.DebtorName(rec) == "" {
		report(SeverityError, "name", rec.DisplayName(), RuleNameCharset,
			"name has no characters allowed in SEPA files, the member will be skipped")
	}

	if rec.FeeUnreadable() {
		report(SeverityWarning, "fee", rec.FeeText, RuleFeeFormat,
			"fee is not a number, the default fee will be used")
	}

	rules := make([]string, 0, len(v.options.CustomValidators))
	for rule := range v.options.CustomValidators {
		rules = append(rules, rule)
	}
	sort.Strings(rules)
	for _, rule := range rules {
		if msg := v.options.CustomValidators[rule](rec); msg != "" {
			report(SeverityError, rule, "", rule, msg)
		}
	}

	return errs
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats validation errors for display or logging.
//
// PARAMETERS:
//   - errors: The validation errors to format.
//
// RETURNS:
//   - A formatted string containing all errors.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Validation completed with %d problem(s):\n\n", len(errors)))

	for i, err := range errors {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}

	return builder.String()
}
