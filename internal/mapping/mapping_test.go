package mapping_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubsepa/lastschrift/internal/mapping"
	"github.com/clubsepa/lastschrift/internal/types"
)

func TestNew_AllUnassigned(t *testing.T) {
	m := mapping.New()
	for _, f := range mapping.Fields {
		assert.Equal(t, mapping.Unassigned, m.Column(f), f)
	}
	assert.False(t, m.IsComplete())
	assert.Equal(t, mapping.Required, m.Missing())
}

func TestAssign_ClearsOtherFieldsOnSameColumn(t *testing.T) {
	m := mapping.New().
		Assign(mapping.FullName, 0).
		Assign(mapping.IBAN, 1)

	m2 := m.Assign(mapping.LastName, 0)

	assert.Equal(t, mapping.Unassigned, m2.Column(mapping.FullName))
	assert.Equal(t, 0, m2.Column(mapping.LastName))
	assert.Equal(t, 1, m2.Column(mapping.IBAN))

	// The receiver is unchanged.
	assert.Equal(t, 0, m.Column(mapping.FullName))
	assert.Equal(t, mapping.Unassigned, m.Column(mapping.LastName))
}

func TestAssign_SameFieldMoves(t *testing.T) {
	m := mapping.New().Assign(mapping.IBAN, 1).Assign(mapping.IBAN, 4)
	assert.Equal(t, 4, m.Column(mapping.IBAN))
	assert.Equal(t, map[mapping.Field]int{mapping.IBAN: 4}, m.Indexes())
}

func TestAssign_NegativeUnassigns(t *testing.T) {
	m := mapping.New().Assign(mapping.Fee, 2).Assign(mapping.Fee, -5)
	assert.Equal(t, mapping.Unassigned, m.Column(mapping.Fee))
}

func TestUnassign(t *testing.T) {
	m := mapping.New().Assign(mapping.MandateDate, 2).Unassign(mapping.MandateDate)
	assert.Equal(t, mapping.Unassigned, m.Column(mapping.MandateDate))
}

func TestAssign_NoColumnUsedTwiceAfterRandomReassignments(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m := mapping.New()

	for i := 0; i < 2000; i++ {
		field := mapping.Fields[rng.Intn(len(mapping.Fields))]
		col := rng.Intn(6) - 1
		m = m.Assign(field, col)

		seen := make(map[int]mapping.Field)
		for f, c := range m.Indexes() {
			prev, dup := seen[c]
			require.False(t, dup, "column %d held by %s and %s after step %d", c, prev, f, i)
			seen[c] = f
		}
		if col >= 0 {
			require.Equal(t, col, m.Column(field))
		}
	}
}

func TestIsComplete(t *testing.T) {
	m := mapping.New().
		Assign(mapping.IBAN, 1).
		Assign(mapping.MandateDate, 2)

	assert.False(t, m.IsComplete())
	assert.Equal(t, []mapping.Field{mapping.MandateReference}, m.Missing())

	m = m.Assign(mapping.MandateReference, 3)
	assert.True(t, m.IsComplete())
	assert.Empty(t, m.Missing())

	// Stealing a required column breaks completeness again.
	m = m.Assign(mapping.FullName, 2)
	assert.False(t, m.IsComplete())
	assert.Equal(t, []mapping.Field{mapping.MandateDate}, m.Missing())
}

func TestZeroValueMapping(t *testing.T) {
	var m mapping.FieldMapping
	assert.Equal(t, mapping.Unassigned, m.Column(mapping.IBAN))
	assert.Equal(t, 3, m.Assign(mapping.IBAN, 3).Column(mapping.IBAN))
}

func TestParseField(t *testing.T) {
	tests := []struct {
		in   string
		want mapping.Field
	}{
		{"iban", mapping.IBAN},
		{"IBAN", mapping.IBAN},
		{"mandate_reference", mapping.MandateReference},
		{"MandateDate", mapping.MandateDate},
		{"full-name", mapping.FullName},
		{" fee ", mapping.Fee},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := mapping.ParseField(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := mapping.ParseField("bic")
	assert.Error(t, err)
}

func TestFromIndexes(t *testing.T) {
	m, err := mapping.FromIndexes(map[string]int{
		"full_name":         0,
		"iban":              1,
		"mandate_date":      2,
		"mandate_reference": 3,
		"fee":               -1,
	})
	require.NoError(t, err)

	assert.True(t, m.IsComplete())
	assert.Equal(t, 0, m.Column(mapping.FullName))
	assert.Equal(t, mapping.Unassigned, m.Column(mapping.Fee))
	assert.Equal(t, "fullName=0 iban=1 mandateDate=2 mandateReference=3", m.String())
}

func TestFromIndexes_Errors(t *testing.T) {
	_, err := mapping.FromIndexes(map[string]int{"iban": 1, "mandate_date": 1})
	assert.ErrorContains(t, err, "column 1")

	_, err = mapping.FromIndexes(map[string]int{"iban": 1, "bank": 2})
	assert.ErrorContains(t, err, "unknown field")
}

func TestColumnLabels(t *testing.T) {
	grid := types.Grid{
		{"Name", "", "Datum"},
		{"Anna", "DE89", "01.01.2023", "extra"},
	}

	assert.Equal(t,
		[]string{"Name", "Column 2", "Datum", "Column 4"},
		mapping.ColumnLabels(grid, true))

	assert.Equal(t,
		[]string{"Column 1", "Column 2", "Column 3", "Column 4"},
		mapping.ColumnLabels(grid, false))

	assert.Empty(t, mapping.ColumnLabels(types.Grid{}, true))
}

func TestFirstDataRow(t *testing.T) {
	assert.Equal(t, 1, mapping.FirstDataRow(true))
	assert.Equal(t, 0, mapping.FirstDataRow(false))
}
