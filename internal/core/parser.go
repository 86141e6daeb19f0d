package core

// parser.go reads the first worksheet of an uploaded workbook into raw rows.
//
// The first non-empty row is the header. Header cells are matched against
// the alias table; unrecognised columns are ignored. Blank data rows are
// skipped, and a blank or missing cell becomes an absent Cell rather than
// an empty value so that defaults can be applied later.

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Parser converts workbooks to RawImportRows.
type Parser struct {
	headers map[string]Column
}

// NewParser creates a parser accepting the given header aliases.
// A nil table means DefaultAliases.
func NewParser(aliases AliasTable) *Parser {
	if aliases == nil {
		aliases = DefaultAliases()
	}
	return &Parser{headers: aliases.index()}
}

// Parse reads every data row of the first sheet.
// Returns *EmptyInputError if there is no sheet or no data row, and
// *ParseError if the payload is not a readable workbook.
func (p *Parser) Parse(r io.Reader) ([]RawImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, &EmptyInputError{Reason: "no sheet found in workbook"}
	}

	iter, err := f.Rows(sheet)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("read sheet %q: %w", sheet, err)}
	}
	defer iter.Close()

	var (
		header []Column // position -> column, -1 when ignored
		rows   []RawImportRow
		seen   = make(map[string]int)
	)

	for iter.Next() {
		cells, err := iter.Columns()
		if err != nil {
			return nil, &ParseError{Err: fmt.Errorf("read row: %w", err)}
		}
		if isEmptyRow(cells) {
			continue
		}

		if header == nil {
			header = p.mapHeader(cells)
			continue
		}

		row := p.buildRow(cells, header, len(rows))
		if prev, dup := seen[row.RowKey]; dup {
			slog.Warn("duplicate row key in workbook",
				"row_key", row.RowKey,
				"line", row.Line(),
				"first_line", prev,
			)
			row.RowKey = unusedRowKey(seen, row.RowKey, row.Line())
		}
		seen[row.RowKey] = row.Line()
		rows = append(rows, row)
	}
	if err := iter.Error(); err != nil {
		return nil, &ParseError{Err: err}
	}

	if len(rows) == 0 {
		return nil, &EmptyInputError{Reason: "no data rows"}
	}
	return rows, nil
}

// unusedRowKey suffixes a duplicate key with its line, adding a counter
// when that name is also taken.
func unusedRowKey(seen map[string]int, key string, line int) string {
	base := fmt.Sprintf("%s_%d", key, line)
	candidate := base
	for n := 2; ; n++ {
		if _, taken := seen[candidate]; !taken {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d", base, n)
	}
}

// mapHeader resolves each header cell to a column.
func (p *Parser) mapHeader(cells []string) []Column {
	header := make([]Column, len(cells))
	assigned := make(map[Column]bool)
	for i, h := range cells {
		header[i] = -1
		col, ok := p.headers[normalizeHeader(h)]
		if !ok || assigned[col] {
			continue
		}
		header[i] = col
		assigned[col] = true
	}
	return header
}

// buildRow fills a RawImportRow from one data row.
func (p *Parser) buildRow(cells []string, header []Column, index int) RawImportRow {
	row := RawImportRow{Index: index}

	for i, col := range header {
		if col < 0 || i >= len(cells) {
			continue
		}
		v := CleanCell(cells[i])
		if v == "" {
			continue
		}
		if col == ColRowKey {
			row.RowKey = v
			continue
		}
		*row.cell(col) = Cell{Value: v, Present: true}
	}

	if row.RowKey == "" {
		row.RowKey = fmt.Sprintf("ROW_%d", index+1)
	}
	return row
}

// isEmptyRow returns true if every cell is blank.
func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
