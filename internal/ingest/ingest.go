// =============================================================================
// SEPA Direct Debit Generator - Tabular Ingestor
// =============================================================================
//
// This module turns a member export into a Grid of string cells. Two source
// kinds are supported:
//   - Delimited text (.csv, .txt): charset detection, delimiter sniffing
//   - Spreadsheet workbooks (.xlsx, .xlsm, .xls): first sheet only
//
// FAILURE MODES:
//   - ErrUnsupportedFormat: the declared kind is neither of the two
//   - ErrParseFailure: the bytes are malformed for the declared kind
//
// No column-count normalization happens here. Rows keep the length they
// have in the source; the record mapper treats missing cells as absent.
//
// =============================================================================

package ingest

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/clubsepa/lastschrift/internal/types"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrUnsupportedFormat is returned for file kinds other than delimited
	// text and spreadsheets.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrParseFailure is returned when the input cannot be parsed as the
	// declared kind.
	ErrParseFailure = errors.New("parse failure")
)

// =============================================================================
// FORMAT
// =============================================================================

// Format is the declared kind of an input stream.
type Format string

const (
	// FormatDelimited is comma/semicolon/tab/pipe separated text.
	FormatDelimited Format = "delimited"

	// FormatSpreadsheet is an Office Open XML workbook.
	FormatSpreadsheet Format = "spreadsheet"
)

// FormatFromFilename derives the declared format from a file extension.
//
// PARAMETERS:
//   - name: A file name or path.
//
// RETURNS:
//   - The declared format.
//   - ErrUnsupportedFormat if the extension is not recognized.
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatDelimited, nil
	case ".xlsx", ".xlsm", ".xls":
		return FormatSpreadsheet, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// =============================================================================
// READ
// =============================================================================

// Read parses r as the declared format and returns its grid.
func Read(r io.Reader, format Format) (types.Grid, error) {
	switch format {
	case FormatDelimited:
		return readDelimited(r)
	case FormatSpreadsheet:
		return readSpreadsheet(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// ReadFile is Read with the format taken from the file name.
func ReadFile(name string, r io.Reader) (types.Grid, error) {
	format, err := FormatFromFilename(name)
	if err != nil {
		return nil, err
	}
	return Read(r, format)
}

func parseFailure(stage string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrParseFailure, stage, err)
}
