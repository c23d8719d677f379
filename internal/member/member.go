// =============================================================================
// SEPA Direct Debit Generator - Record Mapper
// =============================================================================
//
// This module turns grid rows into member records using a FieldMapping.
//
// MAPPING RULES:
//   - The header row is skipped when declared
//   - Rows that are empty or whose cells are all "" are dropped silently
//   - Each mapped cell is trimmed; an index past the end of a short row
//     leaves the field empty
//   - The fee is parsed after turning a decimal comma into a period; a value
//     that still is not a number leaves the fee absent
//
// No identifier validation happens here. The validation pass runs later
// over the produced records.
//
// =============================================================================

package member

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/clubsepa/lastschrift/internal/mapping"
	"github.com/clubsepa/lastschrift/internal/types"
)

// Record is one member eligible for collection. Records are not modified
// after Map returns them.
type Record struct {
	// Row is the 1-based row number in the source grid.
	Row int `json:"row"`

	FullName  string `json:"fullName,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`

	IBAN        string `json:"iban"`
	MandateDate string `json:"mandateDate"`

	// MandateReference is the per-member suffix. The club prefix is added
	// by DisplayMandateReference and by the document builder.
	MandateReference string `json:"mandateReference"`

	// Fee is nil when the column is unmapped, empty or not a number.
	Fee *decimal.Decimal `json:"fee,omitempty"`

	// FeeText is the trimmed fee cell as read, empty if there was none.
	FeeText string `json:"feeText,omitempty"`
}

// DisplayName returns the full name if present, otherwise first and last
// name joined by a single space.
func (r Record) DisplayName() string {
	if r.FullName != "" {
		return r.FullName
	}
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// HasName reports whether the record carries either name form.
func (r Record) HasName() bool {
	return r.FullName != "" || (r.FirstName != "" && r.LastName != "")
}

// DisplayMandateReference returns the mandate reference as shown to the
// operator: the club prefix followed by the member suffix.
func (r Record) DisplayMandateReference(prefix string) string {
	return prefix + r.MandateReference
}

// FeeUnreadable reports whether the fee cell was filled in but is not a
// number, so the default fee applies instead.
func (r Record) FeeUnreadable() bool {
	return r.FeeText != "" && r.Fee == nil
}

// EffectiveFee returns the record fee, or def when the record has none.
func (r Record) EffectiveFee(def decimal.Decimal) decimal.Decimal {
	if r.Fee != nil {
		return *r.Fee
	}
	return def
}

// Map converts grid rows into records.
//
// PARAMETERS:
//   - grid: The ingested table.
//   - m: The column mapping. Map does not require it to be complete; missing
//     fields stay empty and are reported by the validation pass.
//   - hasHeader: Whether the first row is a header.
//
// RETURNS:
//   - One record per non-blank data row, in input order.
func Map(grid types.Grid, m mapping.FieldMapping, hasHeader bool) []Record {
	records := make([]Record, 0, len(grid))

	for i := mapping.FirstDataRow(hasHeader); i < len(grid); i++ {
		row := grid[i]
		if isBlank(row) {
			continue
		}

		rec := Record{
			Row:              i + 1,
			FullName:         cell(row, m.Column(mapping.FullName)),
			FirstName:        cell(row, m.Column(mapping.FirstName)),
			LastName:         cell(row, m.Column(mapping.LastName)),
			IBAN:             cell(row, m.Column(mapping.IBAN)),
			MandateDate:      cell(row, m.Column(mapping.MandateDate)),
			MandateReference: cell(row, m.Column(mapping.MandateReference)),
		}

		if raw := cell(row, m.Column(mapping.Fee)); raw != "" {
			rec.FeeText = raw
			rec.Fee = ParseFee(raw)
		}

		records = append(records, rec)
	}

	return records
}

// ParseFee parses a fee cell. A decimal comma is accepted, as is a trailing
// euro sign or "EUR". Anything else that is not a number yields nil.
func ParseFee(raw string) *decimal.Decimal {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "€")
	s = strings.TrimSuffix(strings.TrimSpace(s), "EUR")
	s = strings.TrimSpace(s)
	s = strings.Replace(s, ",", ".", 1)

	if s == "" {
		return nil
	}

	fee, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &fee
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func isBlank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
