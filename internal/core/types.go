package core

import (
	"context"
	"fmt"
	"time"
)

// Cell is a single spreadsheet value. Present is false when the column is
// missing from the sheet or the cell is blank, so an absent quantity can be
// told apart from an explicit zero.
type Cell struct {
	Value   string
	Present bool
}

// Text returns the cell value, or def when the cell is absent.
func (c Cell) Text(def string) string {
	if !c.Present || c.Value == "" {
		return def
	}
	return c.Value
}

// Column identifies a recognised import column.
type Column int

const (
	ColRowKey Column = iota
	ColHSCode
	ColDescription
	ColOrderNo
	ColSupplierName
	ColInvoiceNo
	ColItemNo
	ColCurrency
	ColQuantity
	ColUnitPrice
	ColGrossWeight
	ColNetWeight
	ColVolume
	ColCountry
	ColRegimeCode
	ColRegimeRatio
	ColCustomerGrouping

	numColumns
)

// canonicalHeaders are the header names written to the exemplar workbook.
var canonicalHeaders = [numColumns]string{
	ColRowKey:           "Row_Key",
	ColHSCode:           "HS_Code",
	ColDescription:      "Descr",
	ColOrderNo:          "Command_No",
	ColSupplierName:     "Supplier_Name",
	ColInvoiceNo:        "Invoice_No",
	ColItemNo:           "Item_No",
	ColCurrency:         "Currency",
	ColQuantity:         "Qty",
	ColUnitPrice:        "Unit_Prize",
	ColGrossWeight:      "Gross_Weight",
	ColNetWeight:        "Net_Weight",
	ColVolume:           "Volume",
	ColCountry:          "Country_Origin",
	ColRegimeCode:       "Regime_Code",
	ColRegimeRatio:      "Regime_Ratio",
	ColCustomerGrouping: "Customer_Grouping",
}

// Header returns the canonical header name of the column.
func (c Column) Header() string {
	if c < 0 || c >= numColumns {
		return fmt.Sprintf("Column(%d)", int(c))
	}
	return canonicalHeaders[c]
}

// Columns returns every recognised column in template order.
func Columns() []Column {
	cols := make([]Column, numColumns)
	for i := range cols {
		cols[i] = Column(i)
	}
	return cols
}

// RawImportRow is one spreadsheet data row before reference resolution.
type RawImportRow struct {
	Index  int    // 0-based data row index
	RowKey string // user supplied or ROW_<n>

	HSCode           Cell
	Description      Cell
	OrderNo          Cell
	SupplierName     Cell
	InvoiceNo        Cell
	ItemNo           Cell
	Currency         Cell
	Quantity         Cell
	UnitPrice        Cell
	GrossWeight      Cell
	NetWeight        Cell
	Volume           Cell
	Country          Cell
	RegimeCode       Cell
	RegimeRatio      Cell
	CustomerGrouping Cell
}

// Line returns the 1-based spreadsheet row number, counting the header.
func (r RawImportRow) Line() int {
	return r.Index + 2
}

// cell returns a pointer to the field backing col. ColRowKey has no Cell.
func (r *RawImportRow) cell(col Column) *Cell {
	switch col {
	case ColHSCode:
		return &r.HSCode
	case ColDescription:
		return &r.Description
	case ColOrderNo:
		return &r.OrderNo
	case ColSupplierName:
		return &r.SupplierName
	case ColInvoiceNo:
		return &r.InvoiceNo
	case ColItemNo:
		return &r.ItemNo
	case ColCurrency:
		return &r.Currency
	case ColQuantity:
		return &r.Quantity
	case ColUnitPrice:
		return &r.UnitPrice
	case ColGrossWeight:
		return &r.GrossWeight
	case ColNetWeight:
		return &r.NetWeight
	case ColVolume:
		return &r.Volume
	case ColCountry:
		return &r.Country
	case ColRegimeCode:
		return &r.RegimeCode
	case ColRegimeRatio:
		return &r.RegimeRatio
	case ColCustomerGrouping:
		return &r.CustomerGrouping
	}
	return nil
}

// RowStatus classifies a previewed row.
type RowStatus string

const (
	StatusNew      RowStatus = "new"
	StatusExisting RowStatus = "existing"
)

// ResolvedPreviewRow is a validated row with its reference IDs resolved.
// The raw code texts are kept so the UI can display them; the committer
// works from the IDs and re-reads their codes at commit time.
type ResolvedPreviewRow struct {
	Line   int    `json:"line"`
	RowKey string `json:"rowKey"`

	HSCodeText   string `json:"hsCodeText"`
	CurrencyText string `json:"currencyText"`
	CountryText  string `json:"countryText,omitempty"`
	RegimeText   string `json:"regimeText,omitempty"`

	HSCodeID   *int64 `json:"hsCodeId"`
	CurrencyID *int64 `json:"currencyId"`
	CountryID  *int64 `json:"countryId"`
	RegimeID   *int64 `json:"regimeId"`

	Description      string  `json:"description"`
	OrderNo          string  `json:"orderNo"`
	SupplierName     string  `json:"supplierName"`
	InvoiceNo        string  `json:"invoiceNo"`
	ItemNo           string  `json:"itemNo"`
	CustomerGrouping string  `json:"customerGrouping"`
	Quantity         float64 `json:"quantity"`
	UnitPrice        float64 `json:"unitPrice"`
	GrossWeight      float64 `json:"grossWeight"`
	NetWeight        float64 `json:"netWeight"`
	Volume           float64 `json:"volume"`
	RegimeRatio      float64 `json:"regimeRatio"`

	Status     RowStatus         `json:"status"`
	ExistingID *int64            `json:"existingId,omitempty"`
	Existing   *LineItemSnapshot `json:"existingData,omitempty"`
}

// LineItemSnapshot holds the persisted values of an existing line item for diffing.
type LineItemSnapshot struct {
	HSCodeID         int64   `json:"hsCodeId"`
	Description      string  `json:"description"`
	OrderNo          string  `json:"orderNo"`
	SupplierName     string  `json:"supplierName"`
	InvoiceNo        string  `json:"invoiceNo"`
	CurrencyID       int64   `json:"currencyId"`
	ItemNo           string  `json:"itemNo"`
	Quantity         float64 `json:"quantity"`
	UnitPrice        float64 `json:"unitPrice"`
	GrossWeight      float64 `json:"grossWeight"`
	NetWeight        float64 `json:"netWeight"`
	Volume           float64 `json:"volume"`
	CountryID        *int64  `json:"countryId"`
	RegimeID         *int64  `json:"regimeId"`
	CustomerGrouping string  `json:"customerGrouping"`
}

// ErrorKind distinguishes the sources of row-level import errors.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindMissingReference ErrorKind = "missing_reference"
	KindCommit           ErrorKind = "commit"
)

// ImportError is a failure tied to one spreadsheet row.
// Row is 1-based; zero means the error concerns the whole batch.
type ImportError struct {
	Row     int       `json:"row"`
	RowKey  string    `json:"rowKey,omitempty"`
	Message string    `json:"error"`
	Kind    ErrorKind `json:"kind,omitempty"`
}

func (e ImportError) Error() string {
	if e.Row == 0 {
		return e.Message
	}
	return fmt.Sprintf("Line %d: %s", e.Row, e.Message)
}

// PreviewStats counts previewed rows by status.
type PreviewStats struct {
	New      int `json:"new"`
	Existing int `json:"existing"`
}

// MissingData lists reference codes that could be bulk-created by the caller.
type MissingData struct {
	HSCodes []string `json:"hsCodes"`
}

// PreviewResult is the read-only outcome of parsing and resolving a workbook.
type PreviewResult struct {
	Preview     []ResolvedPreviewRow `json:"preview"`
	Total       int                  `json:"total"`
	Valid       int                  `json:"valid"`
	Errors      []string             `json:"errors,omitempty"`
	Issues      []ImportError        `json:"issues,omitempty"`
	Stats       PreviewStats         `json:"stats"`
	MissingData MissingData          `json:"missingData"`
}

// CommitRequest carries the rows selected by the user for import.
type CommitRequest struct {
	DossierID      int64
	Rows           []ResolvedPreviewRow
	UpdateExisting bool
}

// CommitResult summarises a commit batch.
type CommitResult struct {
	BatchID string        `json:"batchId"`
	Created int           `json:"created"`
	Updated int           `json:"updated"`
	Skipped int           `json:"skipped"`
	Total   int           `json:"total"`
	Errors  []ImportError `json:"errors,omitempty"`
}

// Reference data entities. A zero-value result with found=false is a miss.
type (
	HSCode struct {
		ID    int64  `json:"id"`
		Code  string `json:"code"`
		Label string `json:"label"`
	}

	Currency struct {
		ID   int64  `json:"id"`
		Code string `json:"code"`
	}

	Country struct {
		ID   int64  `json:"id"`
		Code string `json:"code"`
	}

	Regime struct {
		ID    int64   `json:"id"`
		Label string  `json:"label"`
		Ratio float64 `json:"ratio"`
	}
)

// SentinelHSCode is the code of the placeholder record used for rows that
// have not been classified yet.
const SentinelHSCode = "0"

// LineItem is a persisted packing-list line.
type LineItem struct {
	ID               int64     `json:"id"`
	DossierID        int64     `json:"dossierId"`
	HSCodeID         int64     `json:"hsCodeId"`
	HSCode           string    `json:"hsCode"`
	Description      string    `json:"description"`
	OrderNo          string    `json:"orderNo"`
	SupplierName     string    `json:"supplierName"`
	InvoiceNo        string    `json:"invoiceNo"`
	ItemNo           string    `json:"itemNo"`
	CurrencyID       int64     `json:"currencyId"`
	Currency         string    `json:"currency"`
	Quantity         float64   `json:"quantity"`
	UnitPrice        float64   `json:"unitPrice"`
	GrossWeight      float64   `json:"grossWeight"`
	NetWeight        float64   `json:"netWeight"`
	Volume           float64   `json:"volume"`
	CountryID        *int64    `json:"countryId"`
	RegimeID         *int64    `json:"regimeId"`
	RegimeRatio      float64   `json:"regimeRatio"`
	CustomerGrouping string    `json:"customerGrouping"`
	UploadKey        string    `json:"uploadKey"`
	Session          int64     `json:"session"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Snapshot returns the fields shown when diffing against an incoming row.
func (li LineItem) Snapshot() LineItemSnapshot {
	return LineItemSnapshot{
		HSCodeID:         li.HSCodeID,
		Description:      li.Description,
		OrderNo:          li.OrderNo,
		SupplierName:     li.SupplierName,
		InvoiceNo:        li.InvoiceNo,
		CurrencyID:       li.CurrencyID,
		ItemNo:           li.ItemNo,
		Quantity:         li.Quantity,
		UnitPrice:        li.UnitPrice,
		GrossWeight:      li.GrossWeight,
		NetWeight:        li.NetWeight,
		Volume:           li.Volume,
		CountryID:        li.CountryID,
		RegimeID:         li.RegimeID,
		CustomerGrouping: li.CustomerGrouping,
	}
}

// NaturalKey identifies a line item within a dossier.
type NaturalKey struct {
	DossierID int64
	HSCodeID  int64
	ItemNo    string
}

// UpsertParams are the natural-key arguments of the store's upsert primitive.
// Reference data is passed as codes; the store resolves them itself.
type UpsertParams struct {
	DossierID        int64
	RowKey           string
	HSCode           string
	Description      string
	OrderNo          string
	SupplierName     string
	InvoiceNo        string
	ItemNo           string
	Currency         string
	Quantity         float64
	UnitPrice        float64
	GrossWeight      float64
	NetWeight        float64
	Volume           float64
	Country          string
	Regime           string
	RegimeRatio      float64
	CustomerGrouping string
	Session          int64
	UpdateExisting   bool
}

// UpsertOutcome reports what the upsert primitive did with a row.
type UpsertOutcome string

const (
	OutcomeInserted  UpsertOutcome = "inserted"
	OutcomeUpdated   UpsertOutcome = "updated"
	OutcomeUnchanged UpsertOutcome = "unchanged"
)

// ReferenceLookup resolves reference codes. Exact lookups by natural code,
// except RegimeFuzzy which matches a label substring or a numeric ID.
type ReferenceLookup interface {
	HSCodeByCode(ctx context.Context, code string) (HSCode, bool, error)
	HSCodeByID(ctx context.Context, id int64) (HSCode, bool, error)
	CurrencyByCode(ctx context.Context, code string) (Currency, bool, error)
	CurrencyByID(ctx context.Context, id int64) (Currency, bool, error)
	CountryByCode(ctx context.Context, code string) (Country, bool, error)
	CountryByID(ctx context.Context, id int64) (Country, bool, error)
	RegimeFuzzy(ctx context.Context, text string) (Regime, bool, error)
	RegimeByID(ctx context.Context, id int64) (Regime, bool, error)
}

// LineItemStore is the persistent store for packing-list line items.
// UpsertLineItem must guarantee at most one row per natural key.
type LineItemStore interface {
	DossierExists(ctx context.Context, dossierID int64) (bool, error)
	FindLineItem(ctx context.Context, key NaturalKey) (*LineItem, error)
	UpsertLineItem(ctx context.Context, params UpsertParams) (UpsertOutcome, error)
	ListLineItems(ctx context.Context, dossierID int64) ([]LineItem, error)
	ListAllLineItems(ctx context.Context, limit, offset int) ([]LineItem, error)
}

// TxFn is a function that runs within a transaction.
type TxFn func(ctx context.Context) error

// TxManager scopes store calls to a transaction carried by the context.
// Savepoint runs fn in a nested scope that is rolled back alone on error.
type TxManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
	Savepoint(ctx context.Context, fn TxFn) error
}

// ViewCache drops cached renderings of listings after a commit.
type ViewCache interface {
	Invalidate(keys ...string)
}

// DossierCacheKey is the cache key of a dossier's line-item listing.
func DossierCacheKey(dossierID int64) string {
	return fmt.Sprintf("dossier:%d", dossierID)
}

// ColisagesCacheKey is the cache key of the global line-item listing.
const ColisagesCacheKey = "colisages"
