// =============================================================================
// SEPA Direct Debit Generator - Column Mapping Resolver
// =============================================================================
//
// A FieldMapping ties each logical member field to a zero-based column of the
// input grid. The resolver enforces one rule: a column has at most one role.
// Assigning a column to a field first clears every other field that points
// at the same column.
//
// FIELDS:
//   - Required: iban, mandateDate, mandateReference
//   - Optional: fullName, firstName, lastName, fee
//
// FieldMapping is a value type. Assign and Unassign return a new mapping and
// leave the receiver untouched.
//
// =============================================================================

package mapping

import (
	"fmt"
	"sort"
	"strings"

	"github.com/clubsepa/lastschrift/internal/types"
)

// Field is a logical member field.
type Field string

const (
	FullName         Field = "fullName"
	FirstName        Field = "firstName"
	LastName         Field = "lastName"
	IBAN             Field = "iban"
	MandateDate      Field = "mandateDate"
	MandateReference Field = "mandateReference"
	Fee              Field = "fee"
)

// Unassigned marks a field without a column.
const Unassigned = -1

// Fields lists every logical field in display order.
var Fields = []Field{FullName, FirstName, LastName, IBAN, MandateDate, MandateReference, Fee}

// Required lists the fields that must be assigned for a complete mapping.
var Required = []Field{IBAN, MandateDate, MandateReference}

// FieldMapping associates each field with a column index or Unassigned.
type FieldMapping struct {
	columns map[Field]int
}

// New returns a mapping with every field unassigned.
func New() FieldMapping {
	m := FieldMapping{columns: make(map[Field]int, len(Fields))}
	for _, f := range Fields {
		m.columns[f] = Unassigned
	}
	return m
}

func (m FieldMapping) clone() FieldMapping {
	out := New()
	for f, col := range m.columns {
		out.columns[f] = col
	}
	return out
}

// Column returns the column index of field, or Unassigned.
func (m FieldMapping) Column(field Field) int {
	col, ok := m.columns[field]
	if !ok {
		return Unassigned
	}
	return col
}

// Assign returns a copy of m with field pointing at col.
//
// Every other field that currently points at col is reset to Unassigned
// before the assignment is committed. A negative col is the same as
// Unassign. Unknown fields are ignored.
func (m FieldMapping) Assign(field Field, col int) FieldMapping {
	out := m.clone()
	if !field.Known() {
		return out
	}
	if col < 0 {
		out.columns[field] = Unassigned
		return out
	}

	for f, c := range out.columns {
		if f != field && c == col {
			out.columns[f] = Unassigned
		}
	}
	out.columns[field] = col

	return out
}

// Unassign returns a copy of m with field unassigned.
func (m FieldMapping) Unassign(field Field) FieldMapping {
	return m.Assign(field, Unassigned)
}

// IsComplete reports whether all required fields are assigned.
func (m FieldMapping) IsComplete() bool {
	return len(m.Missing()) == 0
}

// Missing returns the required fields that are still unassigned.
func (m FieldMapping) Missing() []Field {
	var missing []Field
	for _, f := range Required {
		if m.Column(f) < 0 {
			missing = append(missing, f)
		}
	}
	return missing
}

// Indexes returns the assigned fields and their columns.
func (m FieldMapping) Indexes() map[Field]int {
	out := make(map[Field]int)
	for _, f := range Fields {
		if col := m.Column(f); col >= 0 {
			out[f] = col
		}
	}
	return out
}

// String renders the assigned fields as "field=col" pairs in display order.
func (m FieldMapping) String() string {
	var parts []string
	for _, f := range Fields {
		if col := m.Column(f); col >= 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", f, col))
		}
	}
	return strings.Join(parts, " ")
}

// Known reports whether f is one of the logical fields.
func (f Field) Known() bool {
	for _, known := range Fields {
		if f == known {
			return true
		}
	}
	return false
}

// ParseField resolves a field name. Matching ignores case, underscores and
// hyphens, so "mandate_reference" and "MandateReference" both work.
func ParseField(name string) (Field, error) {
	key := normalizeName(name)
	for _, f := range Fields {
		if normalizeName(string(f)) == key {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown field %q", name)
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", "")
	return strings.ReplaceAll(s, "-", "")
}

// FromIndexes builds a mapping from configured field names.
//
// Unlike Assign, a column claimed by two fields is an error here: a config
// file or API request that does so is ambiguous, so nothing is silently
// dropped.
//
// PARAMETERS:
//   - indexes: Field name to zero-based column. Negative values mean unassigned.
//
// RETURNS:
//   - The mapping.
//   - An error for an unknown field name or a duplicate column.
func FromIndexes(indexes map[string]int) (FieldMapping, error) {
	names := make([]string, 0, len(indexes))
	for name := range indexes {
		names = append(names, name)
	}
	sort.Strings(names)

	m := New()
	owner := make(map[int]Field)
	for _, name := range names {
		field, err := ParseField(name)
		if err != nil {
			return FieldMapping{}, err
		}
		col := indexes[name]
		if col < 0 {
			continue
		}
		if prev, taken := owner[col]; taken {
			return FieldMapping{}, fmt.Errorf("column %d is mapped to both %s and %s", col, prev, field)
		}
		owner[col] = field
		m.columns[field] = col
	}

	return m, nil
}

// =============================================================================
// HEADER HANDLING
// =============================================================================

// ColumnLabels returns one display label per column.
//
// With a header row the labels are its cells; blank header cells and columns
// beyond the header fall back to "Column N". Without a header every label is
// "Column N" (1-based). The width is that of the widest row.
func ColumnLabels(grid types.Grid, hasHeader bool) []string {
	width := grid.Width()
	labels := make([]string, width)

	for i := range labels {
		labels[i] = fmt.Sprintf("Column %d", i+1)
		if hasHeader && len(grid) > 0 && i < len(grid[0]) {
			if header := strings.TrimSpace(grid[0][i]); header != "" {
				labels[i] = header
			}
		}
	}

	return labels
}

// FirstDataRow returns the index of the first row that holds member data.
func FirstDataRow(hasHeader bool) int {
	if hasHeader {
		return 1
	}
	return 0
}
