package core

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// buildWorkbook writes rows to the first sheet of a new workbook.
func buildWorkbook(t *testing.T, rows ...[]any) io.Reader {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("write row %d: %v", i, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return &buf
}

func TestParse_Aliases(t *testing.T) {
	r := buildWorkbook(t,
		[]any{"Row Key", "hs_code", "Description_Colis", "Devise", "Qte_Colis", "Pays_Origine", "Poids_Brut", "Regroupement_Client", "Unrelated"},
		[]any{"K1", "850440", "Transformer", "XOF", 12, "CM", 30.5, "Site A", "ignored"},
	)

	rows, err := NewParser(nil).Parse(r)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Parse() returned %d rows, want 1", len(rows))
	}

	row := rows[0]
	tests := []struct {
		field string
		got   Cell
		want  string
	}{
		{"HSCode", row.HSCode, "850440"},
		{"Description", row.Description, "Transformer"},
		{"Currency", row.Currency, "XOF"},
		{"Quantity", row.Quantity, "12"},
		{"Country", row.Country, "CM"},
		{"GrossWeight", row.GrossWeight, "30.5"},
		{"CustomerGrouping", row.CustomerGrouping, "Site A"},
	}
	for _, tt := range tests {
		if !tt.got.Present || tt.got.Value != tt.want {
			t.Errorf("%s = %+v, want %q", tt.field, tt.got, tt.want)
		}
	}
	if row.RowKey != "K1" {
		t.Errorf("RowKey = %q, want K1", row.RowKey)
	}
	if row.NetWeight.Present {
		t.Errorf("NetWeight = %+v, want absent", row.NetWeight)
	}
}

func TestParse_MissingCellsAreAbsent(t *testing.T) {
	r := buildWorkbook(t,
		[]any{"HS_Code", "Descr", "Qty", "Currency"},
		[]any{"", "Crate", nil, "EUR"},
		[]any{"850440", "Box", 0, "EUR"},
	)

	rows, err := NewParser(nil).Parse(r)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Parse() returned %d rows, want 2", len(rows))
	}
	if rows[0].HSCode.Present || rows[0].Quantity.Present {
		t.Errorf("row 0 = %+v, want HS code and quantity absent", rows[0])
	}
	if !rows[1].Quantity.Present || rows[1].Quantity.Value != "0" {
		t.Errorf("row 1 Quantity = %+v, want explicit 0", rows[1].Quantity)
	}
}

func TestParse_RowKeysAndLines(t *testing.T) {
	r := buildWorkbook(t,
		[]any{"Row_Key", "Descr"},
		[]any{"", "first"},
		[]any{},
		[]any{"DUP", "second"},
		[]any{"DUP", "third"},
	)

	rows, err := NewParser(nil).Parse(r)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []struct {
		key   string
		index int
	}{
		{"ROW_1", 0},
		{"DUP", 1},
		{"DUP_4", 2},
	}
	if len(rows) != len(want) {
		t.Fatalf("Parse() returned %d rows, want %d", len(rows), len(want))
	}
	for i, w := range want {
		if rows[i].RowKey != w.key || rows[i].Index != w.index {
			t.Errorf("rows[%d] = key %q index %d, want key %q index %d",
				i, rows[i].RowKey, rows[i].Index, w.key, w.index)
		}
	}
	if rows[2].Line() != 4 {
		t.Errorf("rows[2].Line() = %d, want 4", rows[2].Line())
	}
}

func TestParse_SuffixedKeyAlreadyTaken(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		want []string
	}{
		{
			name: "suffix collides with supplied key",
			keys: []string{"A", "A_4", "A"},
			want: []string{"A", "A_4", "A_4_2"},
		},
		{
			name: "supplied key collides with generated suffix",
			keys: []string{"A", "A", "A_3"},
			want: []string{"A", "A_3", "A_3_4"},
		},
		{
			name: "supplied key collides with default key",
			keys: []string{"", "ROW_1"},
			want: []string{"ROW_1", "ROW_1_3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := [][]any{{"Row_Key", "Descr"}}
			for _, k := range tt.keys {
				lines = append(lines, []any{k, "goods"})
			}
			rows, err := NewParser(nil).Parse(buildWorkbook(t, lines...))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(rows) != len(tt.want) {
				t.Fatalf("Parse() returned %d rows, want %d", len(rows), len(tt.want))
			}
			seen := make(map[string]bool)
			for i, w := range tt.want {
				if rows[i].RowKey != w {
					t.Errorf("rows[%d].RowKey = %q, want %q", i, rows[i].RowKey, w)
				}
				if seen[rows[i].RowKey] {
					t.Errorf("row key %q used twice", rows[i].RowKey)
				}
				seen[rows[i].RowKey] = true
			}
		})
	}
}

func TestParse_HeaderAfterBlankRows(t *testing.T) {
	r := buildWorkbook(t,
		[]any{},
		[]any{"Descr", "Currency"},
		[]any{"Goods", "XOF"},
	)

	rows, err := NewParser(nil).Parse(r)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Description.Value != "Goods" {
		t.Errorf("Parse() = %+v, want one Goods row", rows)
	}
}

func TestParse_CustomAliases(t *testing.T) {
	extra, err := ParseAliases([]byte("HS_Code: [Tarif]\nCurrency: [Monnaie]\n"))
	if err != nil {
		t.Fatalf("ParseAliases() error = %v", err)
	}

	r := buildWorkbook(t,
		[]any{"Tarif", "Monnaie", "Descr"},
		[]any{"850440", "USD", "Goods"},
	)
	rows, err := NewParser(DefaultAliases().Merge(extra)).Parse(r)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if rows[0].HSCode.Value != "850440" || rows[0].Currency.Value != "USD" {
		t.Errorf("row = %+v, want custom aliases mapped", rows[0])
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name      string
		input     func(t *testing.T) io.Reader
		wantEmpty bool
	}{
		{
			name:      "header only",
			input:     func(t *testing.T) io.Reader { return buildWorkbook(t, []any{"HS_Code", "Descr"}) },
			wantEmpty: true,
		},
		{
			name:      "blank sheet",
			input:     func(t *testing.T) io.Reader { return buildWorkbook(t) },
			wantEmpty: true,
		},
		{
			name:  "not a workbook",
			input: func(*testing.T) io.Reader { return strings.NewReader("Row_Key,HS_Code\nA,1\n") },
		},
		{
			name:  "empty payload",
			input: func(*testing.T) io.Reader { return bytes.NewReader(nil) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := NewParser(nil).Parse(tt.input(t))
			if rows != nil {
				t.Errorf("Parse() rows = %v, want nil", rows)
			}
			if tt.wantEmpty {
				var empty *EmptyInputError
				if !errors.As(err, &empty) || !errors.Is(err, ErrEmptyInput) {
					t.Errorf("Parse() error = %v, want EmptyInputError", err)
				}
				return
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Errorf("Parse() error = %v, want ParseError", err)
			}
		})
	}
}

func TestParseAliases_UnknownColumn(t *testing.T) {
	if _, err := ParseAliases([]byte("Colour: [Couleur]\n")); err == nil {
		t.Error("ParseAliases() error = nil, want unknown column error")
	}
}
