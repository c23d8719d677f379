package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/clubsepa/lastschrift/internal/identifier"
)

// =============================================================================
// ORIGINATOR CONFIGURATION
// =============================================================================

// OriginatorConfig describes the collecting club.
//
// The three identifiers must each pass the identifier validator before a
// document is built. An invalid originator is a configuration error and
// aborts the whole run.
type OriginatorConfig struct {
	// Name is the club name. It is written as initiating party and creditor.
	Name string `yaml:"name" json:"name"`

	// IBAN is the club's collection account.
	IBAN string `yaml:"iban" json:"iban"`

	// BIC is the club bank's BIC (8 or 11 characters).
	BIC string `yaml:"bic" json:"bic"`

	// CreditorID is the SEPA Creditor Identifier, e.g. DE98ZZZ09999999999.
	CreditorID string `yaml:"creditor_id" json:"creditorId"`

	// ExecutionLeadDays is the number of calendar days between the build
	// date and the requested collection date. Must be at least 1.
	// Default: 5
	ExecutionLeadDays int `yaml:"execution_lead_days" json:"executionLeadDays"`

	// Purpose is the unstructured remittance text on every transaction.
	Purpose string `yaml:"purpose" json:"purpose"`

	// MandateReferencePrefix is the club-wide part of every mandate
	// reference. Members only carry the suffix.
	MandateReferencePrefix string `yaml:"mandate_reference_prefix" json:"mandateReferencePrefix"`

	// DefaultFee applies to members without a fee of their own.
	DefaultFee decimal.Decimal `yaml:"default_fee" json:"defaultFee"`

	// PrefixMandateID writes MandateReferencePrefix + suffix as the mandate
	// id instead of the bare suffix. Set this when the mandates on file at
	// the bank carry the full reference.
	// Default: false
	PrefixMandateID bool `yaml:"prefix_mandate_id" json:"prefixMandateId"`
}

// ApplyDefaults fills unset optional values.
func (c *OriginatorConfig) ApplyDefaults() {
	if c.ExecutionLeadDays == 0 {
		c.ExecutionLeadDays = 5
	}
}

// ConfigError reports an invalid originator configuration.
type ConfigError struct {
	// Problems lists every violated rule, keyed by field name.
	Problems []FieldProblem
}

// FieldProblem is one violated configuration rule.
type FieldProblem struct {
	Field   string            `json:"field"`
	Reason  identifier.Reason `json:"reason"`
	Message string            `json:"message"`
}

func (e *ConfigError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("%s: %s", p.Field, p.Message))
	}
	return "invalid club configuration: " + strings.Join(parts, "; ")
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Validate checks the originator identifiers and numeric settings.
//
// RETURNS:
//   - nil if the configuration is usable.
//   - A *ConfigError listing every problem otherwise.
func (c OriginatorConfig) Validate() error {
	var problems []FieldProblem

	check := func(field string, res identifier.Result) {
		if !res.Valid {
			problems = append(problems, FieldProblem{Field: field, Reason: res.Reason, Message: res.Message})
		}
	}

	check("iban", identifier.ValidateIBAN(c.IBAN))
	check("bic", identifier.ValidateBIC(c.BIC))
	check("creditor_id", identifier.ValidateCreditorID(c.CreditorID))

	if strings.TrimSpace(c.Name) == "" {
		problems = append(problems, FieldProblem{Field: "name", Reason: identifier.ReasonMissing, Message: "club name is missing"})
	}
	if c.ExecutionLeadDays < 1 {
		problems = append(problems, FieldProblem{Field: "execution_lead_days", Reason: identifier.ReasonInvalid, Message: "must be at least 1"})
	}
	if c.DefaultFee.IsNegative() {
		problems = append(problems, FieldProblem{Field: "default_fee", Reason: identifier.ReasonInvalid, Message: "must not be negative"})
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}
