package core

// resolver.go turns parsed rows into a preview.
//
// Rows are processed sequentially in sheet order. Each row's reference codes
// are resolved to IDs, business rules are checked, and the row is classified
// as new or existing against the dossier's line items. Row problems become
// ImportErrors; only lookup failures (store unreachable, context cancelled)
// abort the call.

import (
	"context"
	"fmt"
	"strconv"
)

// Field defaults applied when a cell is absent or not a number.
const (
	defaultQuantity         = 1
	defaultItemNo           = "1"
	defaultCustomerGrouping = "-"
)

// Resolver resolves and validates raw rows for one dossier.
type Resolver struct {
	refs  ReferenceLookup
	store LineItemStore
}

// NewResolver creates a resolver over the given reference data and store.
func NewResolver(refs ReferenceLookup, store LineItemStore) *Resolver {
	return &Resolver{refs: refs, store: store}
}

// Resolve builds the preview for rows destined to dossierID.
// The result is fully determined by rows and the current store contents.
func (r *Resolver) Resolve(ctx context.Context, dossierID int64, rows []RawImportRow) (*PreviewResult, error) {
	res := &PreviewResult{
		Preview:     make([]ResolvedPreviewRow, 0, len(rows)),
		Total:       len(rows),
		MissingData: MissingData{HSCodes: []string{}},
	}

	memo := newLookupMemo(r.refs)
	missing := make(map[string]bool)

	for _, raw := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, rowErr, err := r.resolveRow(ctx, memo, dossierID, raw)
		if err != nil {
			return nil, fmt.Errorf("resolve line %d: %w", raw.Line(), err)
		}

		if rowErr != nil {
			res.Issues = append(res.Issues, *rowErr)
			res.Errors = append(res.Errors, rowErr.Error())
			if rowErr.Kind == KindMissingReference {
				code := raw.HSCode.Text("")
				if !missing[code] {
					missing[code] = true
					res.MissingData.HSCodes = append(res.MissingData.HSCodes, code)
				}
			}
			continue
		}

		res.Preview = append(res.Preview, *row)
		if row.Status == StatusExisting {
			res.Stats.Existing++
		} else {
			res.Stats.New++
		}
	}

	res.Valid = len(res.Preview)
	return res, nil
}

// resolveRow handles one row. Exactly one of row and rowErr is non-nil
// unless err reports an I/O failure.
func (r *Resolver) resolveRow(ctx context.Context, memo *lookupMemo, dossierID int64, raw RawImportRow) (*ResolvedPreviewRow, *ImportError, error) {
	line := raw.Line()
	rowError := func(kind ErrorKind, msg string) *ImportError {
		return &ImportError{Row: line, RowKey: raw.RowKey, Message: msg, Kind: kind}
	}

	row := &ResolvedPreviewRow{
		Line:             line,
		RowKey:           raw.RowKey,
		HSCodeText:       raw.HSCode.Text(""),
		CurrencyText:     raw.Currency.Text(""),
		CountryText:      raw.Country.Text(""),
		RegimeText:       raw.RegimeCode.Text(""),
		Description:      raw.Description.Text(""),
		OrderNo:          raw.OrderNo.Text(""),
		SupplierName:     raw.SupplierName.Text(""),
		InvoiceNo:        raw.InvoiceNo.Text(""),
		ItemNo:           raw.ItemNo.Text(defaultItemNo),
		CustomerGrouping: raw.CustomerGrouping.Text(defaultCustomerGrouping),
		Quantity:         numberOr(raw.Quantity, defaultQuantity),
		UnitPrice:        numberOr(raw.UnitPrice, 0),
		GrossWeight:      numberOr(raw.GrossWeight, 0),
		NetWeight:        numberOr(raw.NetWeight, 0),
		Volume:           numberOr(raw.Volume, 0),
		RegimeRatio:      numberOr(raw.RegimeRatio, 0),
	}

	// HS code: unknown text is a missing reference, empty text is unclassified.
	if row.HSCodeText != "" {
		id, ok, err := memo.hsCode(ctx, row.HSCodeText)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, rowError(KindMissingReference,
				fmt.Sprintf("HS code %q not found", row.HSCodeText)), nil
		}
		row.HSCodeID = &id
	} else {
		id, ok, err := memo.hsCode(ctx, SentinelHSCode)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			row.HSCodeID = &id
		}
	}

	if row.CurrencyText != "" {
		id, ok, err := memo.currency(ctx, row.CurrencyText)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, rowError(KindValidation,
				fmt.Sprintf("currency %q not found", row.CurrencyText)), nil
		}
		row.CurrencyID = &id
	}

	if row.CountryText != "" {
		id, ok, err := memo.country(ctx, row.CountryText)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			row.CountryID = &id
		}
	}

	if row.RegimeText != "" {
		regime, ok, err := memo.regime(ctx, row.RegimeText)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			row.RegimeID = &regime.ID
			if !raw.RegimeRatio.Present {
				row.RegimeRatio = regime.Ratio
			}
		}
	}

	if msgs := ValidateRow(row); len(msgs) > 0 {
		return nil, rowError(KindValidation, joinViolations(msgs)), nil
	}

	existing, err := r.store.FindLineItem(ctx, NaturalKey{
		DossierID: dossierID,
		HSCodeID:  *row.HSCodeID,
		ItemNo:    row.ItemNo,
	})
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		snap := existing.Snapshot()
		row.Status = StatusExisting
		row.ExistingID = &existing.ID
		row.Existing = &snap
	} else {
		row.Status = StatusNew
	}

	return row, nil, nil
}

// SampleErrors caps errs at n entries for display. When entries are dropped
// a final "... and N more errors" line is appended.
func SampleErrors(errs []string, n int) []string {
	if n < 0 || len(errs) <= n {
		return errs
	}
	out := make([]string, 0, n+1)
	out = append(out, errs[:n]...)
	return append(out, fmt.Sprintf("... and %d more errors", len(errs)-n))
}

// lookupMemo caches reference lookups for the duration of one Resolve call.
type lookupMemo struct {
	refs       ReferenceLookup
	hsCodes    map[string]memoEntry
	currencies map[string]memoEntry
	countries  map[string]memoEntry
	regimes    map[string]regimeEntry
}

type memoEntry struct {
	id    int64
	found bool
}

type regimeEntry struct {
	regime Regime
	found  bool
}

func newLookupMemo(refs ReferenceLookup) *lookupMemo {
	return &lookupMemo{
		refs:       refs,
		hsCodes:    make(map[string]memoEntry),
		currencies: make(map[string]memoEntry),
		countries:  make(map[string]memoEntry),
		regimes:    make(map[string]regimeEntry),
	}
}

func (m *lookupMemo) hsCode(ctx context.Context, code string) (int64, bool, error) {
	if e, ok := m.hsCodes[code]; ok {
		return e.id, e.found, nil
	}
	hs, found, err := m.refs.HSCodeByCode(ctx, code)
	if err != nil {
		return 0, false, fmt.Errorf("lookup HS code %q: %w", code, err)
	}
	m.hsCodes[code] = memoEntry{id: hs.ID, found: found}
	return hs.ID, found, nil
}

func (m *lookupMemo) currency(ctx context.Context, code string) (int64, bool, error) {
	if e, ok := m.currencies[code]; ok {
		return e.id, e.found, nil
	}
	cur, found, err := m.refs.CurrencyByCode(ctx, code)
	if err != nil {
		return 0, false, fmt.Errorf("lookup currency %q: %w", code, err)
	}
	m.currencies[code] = memoEntry{id: cur.ID, found: found}
	return cur.ID, found, nil
}

func (m *lookupMemo) country(ctx context.Context, code string) (int64, bool, error) {
	if e, ok := m.countries[code]; ok {
		return e.id, e.found, nil
	}
	c, found, err := m.refs.CountryByCode(ctx, code)
	if err != nil {
		return 0, false, fmt.Errorf("lookup country %q: %w", code, err)
	}
	m.countries[code] = memoEntry{id: c.ID, found: found}
	return c.ID, found, nil
}

func (m *lookupMemo) regime(ctx context.Context, text string) (Regime, bool, error) {
	if e, ok := m.regimes[text]; ok {
		return e.regime, e.found, nil
	}
	reg, found, err := m.refs.RegimeFuzzy(ctx, text)
	if err != nil {
		return Regime{}, false, fmt.Errorf("lookup regime %q: %w", text, err)
	}
	m.regimes[text] = regimeEntry{regime: reg, found: found}
	return reg, found, nil
}

// RegimeNumericID parses text as a regime ID for the numeric half of a
// fuzzy regime match. Returns false for non-integer text.
func RegimeNumericID(text string) (int64, bool) {
	id, err := strconv.ParseInt(CleanCell(text), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
