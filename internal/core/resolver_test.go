package core_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/JonMunkholm/colisage/internal/core"
	"github.com/JonMunkholm/colisage/internal/store/memory"
)

func preview(t *testing.T, store *memory.Store, rows ...[]any) *core.PreviewResult {
	t.Helper()
	raw, err := core.NewParser(nil).Parse(workbook(t, stdHeader, rows...))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	res, err := core.NewResolver(store, store).Resolve(context.Background(), dossierID, raw)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return res
}

func TestResolve_ThreeRowScenario(t *testing.T) {
	res := preview(t, newTestStore(),
		[]any{"A", "850440", "Transformer", "1", "XOF", 10, 100, "CM", ""},
		[]any{"B", "850440", "Cable", "2", "ZZZ", 5, 10, "CM", ""},
		[]any{"C", "", "Unclassified crate", "3", "XOF", 1, 0, "", ""},
	)

	if res.Total != 3 {
		t.Errorf("Total = %d, want 3", res.Total)
	}
	if res.Valid != 2 {
		t.Fatalf("Valid = %d, want 2", res.Valid)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("Errors = %v, want exactly one", res.Errors)
	}
	if !strings.HasPrefix(res.Errors[0], "Line 3: ") {
		t.Errorf("Errors[0] = %q, want it to reference line 3", res.Errors[0])
	}
	if got := res.Issues[0]; got.Row != 3 || got.RowKey != "B" {
		t.Errorf("Issues[0] = %+v, want row 3 key B", got)
	}

	third := res.Preview[1]
	if third.RowKey != "C" {
		t.Fatalf("Preview[1].RowKey = %q, want C", third.RowKey)
	}
	if third.HSCodeID == nil || *third.HSCodeID != hsSentinelID {
		t.Errorf("empty HS code resolved to %v, want sentinel ID %d", third.HSCodeID, hsSentinelID)
	}
	if third.CountryID != nil {
		t.Errorf("CountryID = %v, want nil for empty country", *third.CountryID)
	}
	if len(res.MissingData.HSCodes) != 0 {
		t.Errorf("MissingData.HSCodes = %v, want empty", res.MissingData.HSCodes)
	}
}

func TestResolve_MissingHSCodes(t *testing.T) {
	res := preview(t, newTestStore(),
		[]any{"A", "999999", "Unknown", "1", "XOF", 1, 0, "", ""},
		[]any{"B", "999999", "Unknown again", "2", "XOF", 1, 0, "", ""},
		[]any{"C", "888888", "Other", "1", "XOF", 1, 0, "", ""},
	)

	if res.Valid != 0 {
		t.Errorf("Valid = %d, want 0", res.Valid)
	}
	want := []string{"999999", "888888"}
	if !reflect.DeepEqual(res.MissingData.HSCodes, want) {
		t.Errorf("MissingData.HSCodes = %v, want %v", res.MissingData.HSCodes, want)
	}
	for _, issue := range res.Issues {
		if issue.Kind != core.KindMissingReference {
			t.Errorf("issue %+v kind = %q, want %q", issue, issue.Kind, core.KindMissingReference)
		}
	}
}

func TestResolve_ValidationMessages(t *testing.T) {
	tests := []struct {
		name string
		row  []any
		want string
	}{
		{
			name: "description and quantity",
			row:  []any{"A", "850440", "", "1", "XOF", 0, 0, "", ""},
			want: "Line 2: description missing, invalid quantity",
		},
		{
			name: "negative quantity",
			row:  []any{"A", "850440", "Goods", "1", "XOF", -3, 0, "", ""},
			want: "Line 2: invalid quantity",
		},
		{
			name: "currency empty",
			row:  []any{"A", "850440", "Goods", "1", "", 1, 0, "", ""},
			want: "Line 2: currency missing or invalid",
		},
		{
			name: "all rules in order",
			row:  []any{"A", "", "", "1", "", "-1", 0, "", ""},
			want: "Line 2: description missing, currency missing or invalid, invalid quantity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := preview(t, newTestStore(), tt.row)
			if len(res.Errors) != 1 || res.Errors[0] != tt.want {
				t.Errorf("Errors = %q, want [%q]", res.Errors, tt.want)
			}
		})
	}
}

func TestResolve_Defaults(t *testing.T) {
	header := []string{"HS_Code", "Descr", "Currency"}
	raw, err := core.NewParser(nil).Parse(workbook(t, header, []any{"850440", "Goods", "EUR"}))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	store := newTestStore()
	res, err := core.NewResolver(store, store).Resolve(context.Background(), dossierID, raw)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Valid != 1 {
		t.Fatalf("Valid = %d, errors %v", res.Valid, res.Errors)
	}

	row := res.Preview[0]
	if row.Quantity != 1 {
		t.Errorf("Quantity = %v, want default 1", row.Quantity)
	}
	if row.ItemNo != "1" {
		t.Errorf("ItemNo = %q, want default 1", row.ItemNo)
	}
	if row.CustomerGrouping != "-" {
		t.Errorf("CustomerGrouping = %q, want -", row.CustomerGrouping)
	}
	if row.RowKey != "ROW_1" {
		t.Errorf("RowKey = %q, want ROW_1", row.RowKey)
	}
	if row.GrossWeight != 0 || row.UnitPrice != 0 {
		t.Errorf("numeric defaults = %v/%v, want 0", row.GrossWeight, row.UnitPrice)
	}
}

func TestResolve_RegimeFuzzy(t *testing.T) {
	res := preview(t, newTestStore(),
		[]any{"A", "850440", "Goods", "1", "XOF", 1, 0, "", "IM5"},
		[]any{"B", "850440", "Goods", "2", "XOF", 1, 0, "", "2"},
		[]any{"C", "850440", "Goods", "3", "XOF", 1, 0, "", "nothing like it"},
		[]any{"D", "850440", "Goods", "4", "XOF", 1, 0, "", "im4"},
	)
	if res.Valid != 4 {
		t.Fatalf("Valid = %d, errors %v", res.Valid, res.Errors)
	}

	tests := []struct {
		key       string
		wantID    *int64
		wantRatio float64
	}{
		{key: "A", wantID: ptr(3), wantRatio: 30},
		{key: "B", wantID: ptr(2), wantRatio: 100},
		{key: "C", wantID: nil, wantRatio: 0},
		{key: "D", wantID: ptr(1), wantRatio: 0},
	}
	for i, tt := range tests {
		row := res.Preview[i]
		if row.RowKey != tt.key {
			t.Fatalf("Preview[%d].RowKey = %q, want %q", i, row.RowKey, tt.key)
		}
		if !reflect.DeepEqual(row.RegimeID, tt.wantID) {
			t.Errorf("row %s RegimeID = %v, want %v", tt.key, row.RegimeID, tt.wantID)
		}
		if row.RegimeRatio != tt.wantRatio {
			t.Errorf("row %s RegimeRatio = %v, want %v", tt.key, row.RegimeRatio, tt.wantRatio)
		}
	}
}

func TestResolve_SentinelMissing(t *testing.T) {
	ref := testRefData()
	ref.HSCodes = ref.HSCodes[1:] // drop "0"
	store := memory.New(ref)

	res := preview(t, store, []any{"A", "", "Goods", "1", "XOF", 1, 0, "", ""})
	want := "Line 2: HS code missing or invalid"
	if len(res.Errors) != 1 || res.Errors[0] != want {
		t.Errorf("Errors = %q, want [%q]", res.Errors, want)
	}
	if len(res.MissingData.HSCodes) != 0 {
		t.Errorf("MissingData.HSCodes = %v, want empty", res.MissingData.HSCodes)
	}
}

func TestResolve_NewExistingExclusive(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	committer := core.NewCommitter(core.CommitterConfig{Refs: store, Store: store, Tx: store})
	if _, err := committer.Commit(ctx, core.CommitRequest{
		DossierID: dossierID,
		Rows:      []core.ResolvedPreviewRow{commitRow("X", hsConverters, "1")},
	}); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	res := preview(t, store,
		[]any{"A", "850440", "Existing line", "1", "XOF", 1, 0, "", ""},
		[]any{"B", "850440", "New line", "2", "XOF", 1, 0, "", ""},
		[]any{"C", "123456", "Other code same item", "1", "XOF", 1, 0, "", ""},
	)

	if res.Stats.New+res.Stats.Existing != res.Valid {
		t.Errorf("new %d + existing %d != valid %d", res.Stats.New, res.Stats.Existing, res.Valid)
	}
	if res.Stats.Existing != 1 || res.Stats.New != 2 {
		t.Errorf("Stats = %+v, want 1 existing, 2 new", res.Stats)
	}

	existing := res.Preview[0]
	if existing.Status != core.StatusExisting {
		t.Fatalf("Preview[0].Status = %q, want existing", existing.Status)
	}
	if existing.ExistingID == nil || existing.Existing == nil {
		t.Fatal("existing row has no ID or snapshot")
	}
	if existing.Existing.Description != "Goods X" {
		t.Errorf("snapshot Description = %q, want %q", existing.Existing.Description, "Goods X")
	}
	for _, row := range res.Preview[1:] {
		if row.Status != core.StatusNew || row.ExistingID != nil || row.Existing != nil {
			t.Errorf("row %s = status %q with existing data, want clean new row", row.RowKey, row.Status)
		}
	}
}

func TestResolve_Deterministic(t *testing.T) {
	store := newTestStore()
	rows := [][]any{
		{"A", "850440", "Transformer", "1", "XOF", 10, 100, "CM", "IM4"},
		{"B", "999999", "Unknown", "1", "XOF", 1, 0, "", ""},
		{"C", "", "", "1", "ZZZ", 0, 0, "", ""},
	}

	first := preview(t, store, rows...)
	second := preview(t, store, rows...)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Resolve() not deterministic:\nfirst  %+v\nsecond %+v", first, second)
	}
}

// failingLookup reports a broken reference store for currencies.
type failingLookup struct {
	*memory.Store
}

var errLookupDown = errors.New("connection refused")

func (f failingLookup) CurrencyByCode(context.Context, string) (core.Currency, bool, error) {
	return core.Currency{}, false, errLookupDown
}

func TestResolve_LookupFailureAborts(t *testing.T) {
	store := newTestStore()
	raw, err := core.NewParser(nil).Parse(workbook(t, stdHeader,
		[]any{"A", "850440", "Goods", "1", "XOF", 1, 0, "", ""},
	))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	res, err := core.NewResolver(failingLookup{store}, store).Resolve(context.Background(), dossierID, raw)
	if !errors.Is(err, errLookupDown) {
		t.Errorf("Resolve() error = %v, want %v", err, errLookupDown)
	}
	if res != nil {
		t.Errorf("Resolve() result = %+v, want nil on I/O failure", res)
	}
}

func TestSampleErrors(t *testing.T) {
	errs := []string{"a", "b", "c", "d", "e", "f", "g"}

	tests := []struct {
		name string
		in   []string
		n    int
		want []string
	}{
		{name: "under cap", in: errs[:3], n: 5, want: errs[:3]},
		{name: "at cap", in: errs[:5], n: 5, want: errs[:5]},
		{name: "over cap", in: errs, n: 5, want: []string{"a", "b", "c", "d", "e", "... and 2 more errors"}},
		{name: "nil", in: nil, n: 5, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := core.SampleErrors(tt.in, tt.n); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SampleErrors() = %q, want %q", got, tt.want)
			}
		})
	}
}
