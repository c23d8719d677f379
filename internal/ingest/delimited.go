package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"

	"github.com/clubsepa/lastschrift/internal/types"
)

// candidateDelimiters are tried in order; ties go to the earlier entry.
var candidateDelimiters = []rune{',', ';', '\t', '|'}

// readDelimited parses delimited text into a grid.
//
// PARSING PROCESS:
//  1. Decode to UTF-8
//  2. Sniff the delimiter from the first non-empty line
//  3. Read records with a variable field count and lazy quotes
func readDelimited(r io.Reader) (types.Grid, error) {
	utf8r, err := newUTF8Reader(r)
	if err != nil {
		return nil, parseFailure("detect encoding", err)
	}

	data, err := io.ReadAll(utf8r)
	if err != nil {
		return nil, parseFailure("read", err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	grid := types.Grid{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, parseFailure("read csv", err)
		}
		grid = append(grid, record)
	}

	return grid, nil
}

// sniffDelimiter counts each candidate outside quotes on the first
// non-empty line and returns the most frequent one. Comma is the default.
func sniffDelimiter(data []byte) rune {
	line := firstLine(data)

	best, bestCount := ',', 0
	for _, d := range candidateDelimiters {
		count := 0
		inQuotes := false
		for _, r := range string(line) {
			switch {
			case r == '"':
				inQuotes = !inQuotes
			case r == d && !inQuotes:
				count++
			}
		}
		if count > bestCount {
			best, bestCount = d, count
		}
	}

	return best
}

func firstLine(data []byte) []byte {
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		var line []byte
		if i < 0 {
			line, data = data, nil
		} else {
			line, data = data[:i], data[i+1:]
		}
		if len(bytes.TrimSpace(line)) > 0 {
			return line
		}
	}
	return nil
}
