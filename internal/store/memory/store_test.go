package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/JonMunkholm/colisage/internal/core"
)

func seeded() *Store {
	return New(RefData{
		Dossiers:   []int64{1},
		HSCodes:    []core.HSCode{{ID: 1, Code: "0"}, {ID: 2, Code: "850440"}},
		Currencies: []core.Currency{{ID: 1, Code: "XOF"}},
		Countries:  []core.Country{{ID: 1, Code: "CM"}},
		Regimes: []core.Regime{
			{ID: 4, Label: "IM4 Mise a la consommation"},
			{ID: 9, Label: "Regime 4% reduit"},
		},
	})
}

func params(itemNo string) core.UpsertParams {
	return core.UpsertParams{
		DossierID: 1,
		HSCode:    "850440",
		Currency:  "XOF",
		ItemNo:    itemNo,
		Quantity:  1,
	}
}

func TestUpsertLineItem_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *core.UpsertParams)
		want   string
	}{
		{name: "dossier", modify: func(p *core.UpsertParams) { p.DossierID = 5 }, want: "FILE ID 5 DOES NOT EXIST"},
		{name: "hs code", modify: func(p *core.UpsertParams) { p.HSCode = "111" }, want: "HS CODE 111 DOES NOT EXIST"},
		{name: "currency", modify: func(p *core.UpsertParams) { p.Currency = "" }, want: "CURRENCY  DOES NOT EXIST"},
		{name: "country", modify: func(p *core.UpsertParams) { p.Country = "ZZ" }, want: "COUNTRY CODE ZZ DOES NOT EXIST"},
		{name: "regime", modify: func(p *core.UpsertParams) { p.Regime = "IM9" }, want: "REGIME IM9 DOES NOT EXIST"},
		{
			name:   "quantity",
			modify: func(p *core.UpsertParams) { p.Quantity = 0 },
			want:   `new row for relation "colisages" violates check constraint "colisages_quantity_positive"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seeded()
			p := params("1")
			tt.modify(&p)
			_, err := s.UpsertLineItem(context.Background(), p)
			if err == nil || err.Error() != tt.want {
				t.Errorf("UpsertLineItem() error = %v, want %q", err, tt.want)
			}
			if len(s.Items()) != 0 {
				t.Error("rejected row was stored")
			}
		})
	}
}

func TestUpsertLineItem_NaturalKey(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	steps := []struct {
		params core.UpsertParams
		update bool
		want   core.UpsertOutcome
	}{
		{params: params("1"), want: core.OutcomeInserted},
		{params: params("1"), update: false, want: core.OutcomeUnchanged},
		{params: params("1"), update: true, want: core.OutcomeUpdated},
		{params: params("2"), want: core.OutcomeInserted},
	}
	for i, step := range steps {
		step.params.UpdateExisting = step.update
		got, err := s.UpsertLineItem(ctx, step.params)
		if err != nil {
			t.Fatalf("step %d: error = %v", i, err)
		}
		if got != step.want {
			t.Errorf("step %d: outcome = %q, want %q", i, got, step.want)
		}
	}

	if got := len(s.Items()); got != 2 {
		t.Errorf("stored %d items, want 2", got)
	}
	item, err := s.FindLineItem(ctx, core.NaturalKey{DossierID: 1, HSCodeID: 2, ItemNo: "1"})
	if err != nil || item == nil {
		t.Fatalf("FindLineItem() = %v, %v", item, err)
	}
	if item.ID != 1 {
		t.Errorf("updated item ID = %d, want 1", item.ID)
	}
}

func TestRegimeFuzzy(t *testing.T) {
	s := seeded()
	tests := []struct {
		text   string
		wantID int64
		found  bool
	}{
		{text: "im4", wantID: 4, found: true},
		{text: "4", wantID: 4, found: true},
		{text: "9", wantID: 9, found: true},
		{text: "4%", wantID: 9, found: true},
		{text: "IM7", found: false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, found, err := s.RegimeFuzzy(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("RegimeFuzzy() error = %v", err)
			}
			if found != tt.found || (found && got.ID != tt.wantID) {
				t.Errorf("RegimeFuzzy(%q) = %d, %v; want %d, %v", tt.text, got.ID, found, tt.wantID, tt.found)
			}
		})
	}
}

func TestExecTx_RollsBackOnError(t *testing.T) {
	s := seeded()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.ExecTx(ctx, func(ctx context.Context) error {
		if _, err := s.UpsertLineItem(ctx, params("1")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("ExecTx() error = %v, want boom", err)
	}
	if got := len(s.Items()); got != 0 {
		t.Errorf("stored %d items after rollback, want 0", got)
	}
}

func TestSavepoint_IsolatesRow(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	err := s.ExecTx(ctx, func(ctx context.Context) error {
		_ = s.Savepoint(ctx, func(ctx context.Context) error {
			_, err := s.UpsertLineItem(ctx, params("1"))
			return err
		})
		spErr := s.Savepoint(ctx, func(ctx context.Context) error {
			if _, err := s.UpsertLineItem(ctx, params("2")); err != nil {
				return err
			}
			return errors.New("later failure")
		})
		if spErr == nil {
			t.Error("Savepoint() error = nil, want failure")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ExecTx() error = %v", err)
	}

	items := s.Items()
	if len(items) != 1 || items[0].ItemNo != "1" {
		t.Errorf("items = %+v, want only item 1", items)
	}
}

func TestListAllLineItems_Paging(t *testing.T) {
	s := seeded()
	ctx := context.Background()
	for _, n := range []string{"1", "2", "3"} {
		if _, err := s.UpsertLineItem(ctx, params(n)); err != nil {
			t.Fatalf("UpsertLineItem() error = %v", err)
		}
	}

	page, _ := s.ListAllLineItems(ctx, 2, 1)
	if len(page) != 2 || page[0].ItemNo != "2" {
		t.Errorf("page = %+v, want items 2 and 3", page)
	}
	if page, _ := s.ListAllLineItems(ctx, 2, 5); len(page) != 0 {
		t.Errorf("page past end = %+v, want empty", page)
	}
}

func TestLoadRefData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.yaml")
	data := `
dossiers: [7]
hsCodes:
  - {id: 1, code: "0", label: Unclassified}
currencies:
  - {id: 3, code: EUR}
regimes:
  - {id: 2, label: IM4, ratio: 100}
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	ref, err := LoadRefData(path)
	if err != nil {
		t.Fatalf("LoadRefData() error = %v", err)
	}
	if len(ref.Dossiers) != 1 || ref.Dossiers[0] != 7 {
		t.Errorf("Dossiers = %v, want [7]", ref.Dossiers)
	}
	if len(ref.HSCodes) != 1 || ref.HSCodes[0].Code != "0" {
		t.Errorf("HSCodes = %+v", ref.HSCodes)
	}
	if len(ref.Regimes) != 1 || ref.Regimes[0].Ratio != 100 {
		t.Errorf("Regimes = %+v", ref.Regimes)
	}
}

func TestListImportAudit(t *testing.T) {
	s := seeded()
	ctx := context.Background()
	entries := []core.AuditEntry{
		{BatchID: "a", DossierID: 1, Action: core.ActionImportCommit, Severity: core.SeverityLow},
		{BatchID: "b", DossierID: 2, Action: core.ActionImportDenied, Severity: core.SeverityMedium},
		{BatchID: "c", DossierID: 1, Action: core.ActionImportCommit, Severity: core.SeverityHigh},
		{BatchID: "d", DossierID: 1, Action: core.ActionImportAborted, Severity: core.SeverityCritical},
	}
	for _, e := range entries {
		if err := s.LogImport(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter core.AuditFilter
		want   []string
	}{
		{name: "all newest first", filter: core.AuditFilter{}, want: []string{"d", "c", "b", "a"}},
		{name: "by dossier", filter: core.AuditFilter{DossierID: 1}, want: []string{"d", "c", "a"}},
		{name: "by action", filter: core.AuditFilter{DossierID: 1, Action: core.ActionImportCommit}, want: []string{"c", "a"}},
		{name: "by severity", filter: core.AuditFilter{Severity: core.SeverityMedium}, want: []string{"b"}},
		{name: "paged", filter: core.AuditFilter{DossierID: 1, Limit: 1, Offset: 1}, want: []string{"c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListImportAudit(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListImportAudit() error = %v", err)
			}
			ids := make([]string, len(got))
			for i, e := range got {
				ids[i] = e.BatchID
			}
			if !slices.Equal(ids, tt.want) {
				t.Errorf("batches = %v, want %v", ids, tt.want)
			}
		})
	}
}
