// =============================================================================
// SEPA Direct Debit Generator - Shared Types
// =============================================================================
//
// This package contains types shared by several pipeline stages to avoid
// import cycles. Types defined here are used by:
//   - ingest
//   - mapping
//   - member
//   - sepa
//   - converter
//
// =============================================================================

package types

import "fmt"

// =============================================================================
// GRID
// =============================================================================

// Grid is an ordered sequence of rows, each an ordered sequence of string
// cells. Rows may have different lengths.
type Grid [][]string

// Width returns the length of the longest row.
func (g Grid) Width() int {
	width := 0
	for _, row := range g {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

// =============================================================================
// ADVISORIES
// =============================================================================

// AdvisoryCode identifies a per-record condition reported to the operator.
type AdvisoryCode string

const (
	// AdvisoryFeeUnresolved means the member was left out of the document
	// because neither the record nor the club config supplied a usable fee.
	AdvisoryFeeUnresolved AdvisoryCode = "fee_unresolved"

	// AdvisoryMandateDateFallback means the mandate signature date could
	// not be parsed and the build date was written instead.
	AdvisoryMandateDateFallback AdvisoryCode = "mandate_date_fallback"

	// AdvisoryNameUnresolved means the member was left out because no
	// debtor name remains after reduction to the SEPA character set.
	AdvisoryNameUnresolved AdvisoryCode = "name_unresolved"

	// AdvisoryMandateReferenceAltered means the mandate id or end-to-end id
	// written differs from the stored one (characters removed or cut).
	AdvisoryMandateReferenceAltered AdvisoryCode = "mandate_reference_altered"

	// AdvisoryMandateIDCollision means the member was left out because its
	// written mandate id or end-to-end id equals that of an earlier member
	// with a different stored reference.
	AdvisoryMandateIDCollision AdvisoryCode = "mandate_id_collision"
)

// Advisory is a skipped or flagged record. It never aborts a document.
type Advisory struct {
	// Index is the zero-based position of the record in the mapped sequence.
	Index int

	// Row is the 1-based row number in the source file. Zero if unknown.
	Row int

	// Code is the machine-checkable condition.
	Code AdvisoryCode

	// Name is the debtor name, for display.
	Name string

	// Message is a human-readable description.
	Message string
}

// Skipped reports whether the record was left out of the document.
func (a Advisory) Skipped() bool {
	switch a.Code {
	case AdvisoryFeeUnresolved, AdvisoryNameUnresolved, AdvisoryMandateIDCollision:
		return true
	}
	return false
}

// String formats the advisory for logs.
func (a Advisory) String() string {
	return fmt.Sprintf("record %d (row %d, %s): %s [%s]", a.Index+1, a.Row, a.Name, a.Message, a.Code)
}
