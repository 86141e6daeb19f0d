package core

import "testing"

// ----------------------------------------------------------------------------
// ParseNumber Tests
// ----------------------------------------------------------------------------

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   float64
		wantOK bool
	}{
		// Valid: Basic numbers
		{name: "positive integer", input: "123", want: 123, wantOK: true},
		{name: "zero", input: "0", want: 0, wantOK: true},
		{name: "negative integer", input: "-456", want: -456, wantOK: true},
		{name: "decimal number", input: "123.45", want: 123.45, wantOK: true},
		{name: "leading decimal point", input: ".99", want: 0.99, wantOK: true},
		{name: "trailing decimal point", input: "99.", want: 99, wantOK: true},
		{name: "explicit positive sign", input: "+123", want: 123, wantOK: true},
		{name: "scientific notation", input: "1.5e3", want: 1500, wantOK: true},

		// Valid: Formatting artifacts
		{name: "dollar sign", input: "$1,234.56", want: 1234.56, wantOK: true},
		{name: "euro sign", input: "\u20ac1234.56", want: 1234.56, wantOK: true},
		{name: "pound sign", input: "\u00a31234.56", want: 1234.56, wantOK: true},
		{name: "thousands separator", input: "1,234,567.89", want: 1234567.89, wantOK: true},
		{name: "comma grouping without decimals", input: "1,234", want: 1234, wantOK: true},
		{name: "space thousands separator", input: "1 000", want: 1000, wantOK: true},

		// Valid: Decimal comma
		{name: "decimal comma", input: "12,5", want: 12.5, wantOK: true},
		{name: "decimal comma below one", input: "0,75", want: 0.75, wantOK: true},
		{name: "decimal comma single digit", input: "1,5", want: 1.5, wantOK: true},
		{name: "decimal comma with space grouping", input: "1 000,25", want: 1000.25, wantOK: true},
		{name: "negative decimal comma", input: "-2,5", want: -2.5, wantOK: true},
		{name: "accounting decimal comma", input: "(3,5)", want: -3.5, wantOK: true},
		{name: "non-breaking space separator", input: "2\u00a0500", want: 2500, wantOK: true},
		{name: "surrounded by whitespace", input: "  123.45  ", want: 123.45, wantOK: true},
		{name: "excel text formula", input: `="25.50"`, want: 25.5, wantOK: true},

		// Valid: Accounting format (parentheses for negative)
		{name: "accounting negative", input: "(123.45)", want: -123.45, wantOK: true},
		{name: "accounting negative with currency", input: "($1,234.56)", want: -1234.56, wantOK: true},
		{name: "accounting negative with spaces", input: "( 999.99 )", want: -999.99, wantOK: true},

		// Invalid
		{name: "empty string", input: "", wantOK: false},
		{name: "only whitespace", input: "   ", wantOK: false},
		{name: "alphabetic string", input: "abc", wantOK: false},
		{name: "mixed alphanumeric", input: "12abc34", wantOK: false},
		{name: "only currency symbol", input: "$", wantOK: false},
		{name: "multiple decimal points", input: "12.34.56", wantOK: false},
		{name: "broken comma grouping", input: "1,23,456", wantOK: false},
		{name: "dot grouping with decimal comma", input: "1.234,56", wantOK: false},
		{name: "comma after decimal point", input: "12.5,3", wantOK: false},
		{name: "double negative", input: "--123", wantOK: false},
		{name: "negative after number", input: "123-", wantOK: false},
		{name: "NaN", input: "NaN", wantOK: false},
		{name: "Infinity", input: "Infinity", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseNumber(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseNumber(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseNumber(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNumberOr(t *testing.T) {
	tests := []struct {
		name string
		cell Cell
		def  float64
		want float64
	}{
		{name: "absent uses default", cell: Cell{}, def: 1, want: 1},
		{name: "present number", cell: Cell{Value: "12", Present: true}, def: 1, want: 12},
		{name: "explicit zero kept", cell: Cell{Value: "0", Present: true}, def: 1, want: 0},
		{name: "garbage uses default", cell: Cell{Value: "n/a", Present: true}, def: 0, want: 0},
		{name: "decimal comma weight", cell: Cell{Value: "2,5", Present: true}, def: 0, want: 2.5},
		{name: "ambiguous separators use default", cell: Cell{Value: "1.234,56", Present: true}, def: 1, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := numberOr(tt.cell, tt.def); got != tt.want {
				t.Errorf("numberOr(%+v, %v) = %v, want %v", tt.cell, tt.def, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// CleanCell Tests
// ----------------------------------------------------------------------------

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple string unchanged", input: "hello", want: "hello"},
		{name: "empty string", input: "", want: ""},
		{name: "surrounded by whitespace", input: "  hello  ", want: "hello"},
		{name: "Excel formula with quotes", input: `="hello"`, want: "hello"},
		{name: "Excel formula number as text", input: `="12345"`, want: "12345"},
		{name: "bare equals sign", input: "=SUM(A1)", want: "SUM(A1)"},
		{name: "double quotes removed", input: `"hello"`, want: "hello"},
		{name: "single quotes removed", input: "'hello'", want: "hello"},
		{name: "leading single quote (Excel text prefix)", input: "'12345", want: "12345"},
		{name: "whitespace and quotes", input: `  "hello"  `, want: "hello"},
		{name: "only quotes", input: `""`, want: ""},
		{name: "equals with quoted number", input: `="0"`, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanCell(tt.input)
			if got != tt.want {
				t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "HS_Code", want: "hscode"},
		{input: "hs code", want: "hscode"},
		{input: " Country-Origin ", want: "countryorigin"},
		{input: "Qte.Colis", want: "qtecolis"},
		{input: "Prix Unitaire", want: "prixunitaire"},
		{input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := normalizeHeader(tt.input); got != tt.want {
				t.Errorf("normalizeHeader(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
