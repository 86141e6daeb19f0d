package core_test

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/colisage/internal/core"
	"github.com/JonMunkholm/colisage/internal/store/memory"
)

// Reference data IDs used across tests.
const (
	dossierID    int64 = 1
	otherDossier int64 = 2

	hsSentinelID int64 = 1
	hsConverters int64 = 2
	hsSample     int64 = 3

	curXOF int64 = 1
	curEUR int64 = 2

	countryCM int64 = 1
	countryFR int64 = 2
)

func testRefData() memory.RefData {
	return memory.RefData{
		Dossiers: []int64{dossierID, otherDossier},
		HSCodes: []core.HSCode{
			{ID: hsSentinelID, Code: core.SentinelHSCode, Label: "Unclassified"},
			{ID: hsConverters, Code: "850440", Label: "Static converters"},
			{ID: hsSample, Code: "123456", Label: "Sample goods"},
		},
		Currencies: []core.Currency{
			{ID: curXOF, Code: "XOF"},
			{ID: curEUR, Code: "EUR"},
		},
		Countries: []core.Country{
			{ID: countryCM, Code: "CM"},
			{ID: countryFR, Code: "FR"},
		},
		Regimes: []core.Regime{
			{ID: 1, Label: "IM4 Mise a la consommation", Ratio: 0},
			{ID: 2, Label: "IM4 100% DC", Ratio: 100},
			{ID: 3, Label: "IM5 Admission temporaire", Ratio: 30},
		},
	}
}

func newTestStore() *memory.Store {
	return memory.New(testRefData())
}

// workbook builds an XLSX payload with header on the first row.
func workbook(t *testing.T, header []string, rows ...[]any) io.Reader {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	head := make([]any, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow("Sheet1", "A1", &head); err != nil {
		t.Fatalf("write header: %v", err)
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
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

var stdHeader = []string{"Row_Key", "HS_Code", "Descr", "Item_No", "Currency", "Qty", "Unit_Prize", "Country_Origin", "Regime_Code"}

func ptr(v int64) *int64 { return &v }

// commitRow returns a resolved row ready for commit.
func commitRow(key string, hsID int64, itemNo string) core.ResolvedPreviewRow {
	return core.ResolvedPreviewRow{
		RowKey:           key,
		HSCodeID:         ptr(hsID),
		CurrencyID:       ptr(curXOF),
		CurrencyText:     "XOF",
		Description:      "Goods " + key,
		ItemNo:           itemNo,
		Quantity:         10,
		UnitPrice:        2.5,
		CustomerGrouping: "-",
		Status:           core.StatusNew,
	}
}

// recordingCache captures invalidated keys.
type recordingCache struct {
	mu   sync.Mutex
	keys []string
}

func (c *recordingCache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, keys...)
}

func (c *recordingCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.keys...)
}
