package abbrev

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// RowWidth is the number of fields in every abbreviation row: three spellings
// of the abbreviation followed by the canonical expansion.
const RowWidth = 4

const expansionColumn = RowWidth - 1

type Row [RowWidth]string

// Expansion is the canonical form a matching token is replaced with.
func (row Row) Expansion() string {
	return row[expansionColumn]
}

// Matches reports whether token equals one of the abbreviation columns.
func (row Row) Matches(token string) bool {
	for col := 0; col < expansionColumn; col++ {
		if row[col] == token {
			return true
		}
	}
	return false
}

// Table is loaded once at startup and never mutated afterwards.
type Table []Row

// MalformedTableRowError names the offending record twice: Row counts
// records from 0 and skips blank lines, Line is the 1-based line it starts on.
type MalformedTableRowError struct {
	Row    int
	Line   int
	Fields int
}

func (e *MalformedTableRowError) Error() string {
	return fmt.Sprintf("abbreviation table row %d (line %d) has %d fields, expected %d", e.Row, e.Line, e.Fields, RowWidth)
}

func LoadTable(filePath string) (Table, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	table, err := ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read abbreviations from %s: %w", filePath, err)
	}
	return table, nil
}

func ReadTable(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	// row width is checked below so the error can name the row
	reader.FieldsPerRecord = -1
	// inch marks such as 12" appear unquoted
	reader.LazyQuotes = true

	var table Table
	for idx := 0; ; idx++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) != RowWidth {
			line, _ := reader.FieldPos(0)
			return nil, &MalformedTableRowError{Row: idx, Line: line, Fields: len(record)}
		}

		var row Row
		copy(row[:], record)
		if idx == 0 {
			row[0] = strings.TrimPrefix(row[0], "\ufeff")
		}
		table = append(table, row)
	}

	return table, nil
}
