package sepa_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clubsepa/lastschrift/internal/sepa"
)

func TestParseMandateDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2023-01-01", "2023-01-01"},
		{" 2023-01-01 ", "2023-01-01"},
		{"2023-01-01T10:00:00", "2023-01-01"},
		{"2023-01-01 10:00:00", "2023-01-01"},
		{"2023-01-01T23:30:00+02:00", "2023-01-01"},
		{"31.12.2024", "2024-12-31"},
		{"01.01.2023", "2023-01-01"},
		{"1.2.2024", "2024-02-01"},
		{"31.12.24", "2024-12-31"},
		{"01-31-23", "2023-01-31"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := sepa.ParseMandateDate(tt.in)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
		})
	}
}

func TestParseMandateDate_Unrecognized(t *testing.T) {
	for _, in := range []string{
		"",
		"Januar 2023",
		"31.02.2024",
		"32.01.2024",
		"1.2.2024.5",
		"1.2.202",
		"2024/01/01",
		"-1.2.2024",
	} {
		_, ok := sepa.ParseMandateDate(in)
		assert.False(t, ok, in)
	}
}
