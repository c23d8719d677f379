package member_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubsepa/lastschrift/internal/mapping"
	"github.com/clubsepa/lastschrift/internal/member"
	"github.com/clubsepa/lastschrift/internal/types"
)

func exampleMapping() mapping.FieldMapping {
	return mapping.New().
		Assign(mapping.FullName, 0).
		Assign(mapping.IBAN, 1).
		Assign(mapping.MandateDate, 2).
		Assign(mapping.MandateReference, 3)
}

func TestMap_SingleMember(t *testing.T) {
	grid := types.Grid{
		{"Name", "IBAN", "Datum", "Ref"},
		{"Anna Muster", "DE89370400440532013000", "01.01.2023", "001"},
	}

	records := member.Map(grid, exampleMapping(), true)

	require.Len(t, records, 1)
	assert.Equal(t, member.Record{
		Row:              2,
		FullName:         "Anna Muster",
		IBAN:             "DE89370400440532013000",
		MandateDate:      "01.01.2023",
		MandateReference: "001",
	}, records[0])
}

func TestMap_WithoutHeaderKeepsFirstRow(t *testing.T) {
	grid := types.Grid{
		{"Anna Muster", "DE89370400440532013000", "01.01.2023", "001"},
	}

	records := member.Map(grid, exampleMapping(), false)

	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].Row)
}

func TestMap_DropsBlankRowsAnywhere(t *testing.T) {
	grid := types.Grid{
		{"Name", "IBAN", "Datum", "Ref"},
		{},
		{"Anna", "DE89370400440532013000", "01.01.2023", "001"},
		{"", "", "", ""},
		{"Bob", "GB82WEST12345698765432", "2023-02-01", "002"},
		{""},
	}

	records := member.Map(grid, exampleMapping(), true)

	require.Len(t, records, 2)
	assert.Equal(t, "Anna", records[0].FullName)
	assert.Equal(t, 3, records[0].Row)
	assert.Equal(t, "Bob", records[1].FullName)
	assert.Equal(t, 5, records[1].Row)
}

func TestMap_TrimsAndToleratesShortRows(t *testing.T) {
	grid := types.Grid{
		{"  Anna  ", " DE89370400440532013000 "},
	}

	records := member.Map(grid, exampleMapping(), false)

	require.Len(t, records, 1)
	assert.Equal(t, "Anna", records[0].FullName)
	assert.Equal(t, "DE89370400440532013000", records[0].IBAN)
	assert.Empty(t, records[0].MandateDate)
	assert.Empty(t, records[0].MandateReference)
}

func TestMap_KeepsOrderAndDuplicates(t *testing.T) {
	row := []string{"Anna", "DE89370400440532013000", "01.01.2023", "001"}
	grid := types.Grid{row, row, {"Zoe", "AT611904300234573201", "01.01.2023", "000"}}

	records := member.Map(grid, exampleMapping(), false)

	require.Len(t, records, 3)
	assert.Equal(t, []string{"Anna", "Anna", "Zoe"},
		[]string{records[0].FullName, records[1].FullName, records[2].FullName})
}

func TestMap_Fee(t *testing.T) {
	m := exampleMapping().Assign(mapping.Fee, 4)

	tests := []struct {
		name       string
		cell       string
		want       *decimal.Decimal
		unreadable bool
	}{
		{"decimal comma", "12,50", ptr(decimal.RequireFromString("12.50")), false},
		{"decimal point", "30.00", ptr(decimal.RequireFromString("30")), false},
		{"euro sign", "15,00 €", ptr(decimal.RequireFromString("15")), false},
		{"not a number", "abc", nil, true},
		{"empty", "", nil, false},
		{"thousands separator", "1.234,50", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grid := types.Grid{{"Anna", "DE89370400440532013000", "01.01.2023", "001", tt.cell}}

			records := member.Map(grid, m, false)
			require.Len(t, records, 1)
			assert.Equal(t, tt.unreadable, records[0].FeeUnreadable())
			assert.Equal(t, tt.cell, records[0].FeeText)

			if tt.want == nil {
				assert.Nil(t, records[0].Fee)
				return
			}
			require.NotNil(t, records[0].Fee)
			assert.True(t, tt.want.Equal(*records[0].Fee), "got %s", records[0].Fee)
		})
	}
}

func TestMap_FeeColumnOutOfBounds(t *testing.T) {
	m := exampleMapping().Assign(mapping.Fee, 9)
	grid := types.Grid{{"Anna", "DE89370400440532013000", "01.01.2023", "001"}}

	records := member.Map(grid, m, false)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].Fee)
}

func TestRecord_Names(t *testing.T) {
	full := member.Record{FullName: "Anna Muster", FirstName: "X", LastName: "Y"}
	assert.Equal(t, "Anna Muster", full.DisplayName())
	assert.True(t, full.HasName())

	split := member.Record{FirstName: "Bob", LastName: "Beispiel"}
	assert.Equal(t, "Bob Beispiel", split.DisplayName())
	assert.True(t, split.HasName())

	partial := member.Record{FirstName: "Bob"}
	assert.Equal(t, "Bob", partial.DisplayName())
	assert.False(t, partial.HasName())
}

func TestRecord_DisplayMandateReference(t *testing.T) {
	r := member.Record{MandateReference: "001"}
	assert.Equal(t, "CLUB-001", r.DisplayMandateReference("CLUB-"))
	assert.Equal(t, "001", r.MandateReference)
}

func TestRecord_EffectiveFee(t *testing.T) {
	def := decimal.RequireFromString("25")
	assert.True(t, def.Equal(member.Record{}.EffectiveFee(def)))

	fee := decimal.RequireFromString("12.5")
	assert.True(t, fee.Equal(member.Record{Fee: &fee}.EffectiveFee(def)))
}

func ptr(d decimal.Decimal) *decimal.Decimal { return &d }
