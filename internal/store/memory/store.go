// Package memory is an in-process implementation of the import store
// interfaces. It backs tests and the offline CLI preview, and rejects
// unknown natural keys with the same messages as the Postgres upsert
// function so that commit error translation behaves identically.
package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/colisage/internal/core"
)

// RefData is the reference data a Store is seeded with.
type RefData struct {
	Dossiers   []int64         `yaml:"dossiers"`
	HSCodes    []core.HSCode   `yaml:"hsCodes"`
	Currencies []core.Currency `yaml:"currencies"`
	Countries  []core.Country  `yaml:"countries"`
	Regimes    []core.Regime   `yaml:"regimes"`
}

// LoadRefData reads reference data from a YAML file.
func LoadRefData(path string) (RefData, error) {
	var ref RefData
	data, err := os.ReadFile(path)
	if err != nil {
		return ref, fmt.Errorf("read reference data: %w", err)
	}
	if err := yaml.Unmarshal(data, &ref); err != nil {
		return ref, fmt.Errorf("parse reference data: %w", err)
	}
	return ref, nil
}

// Store holds reference data, line items and audit entries in memory.
// It implements core.ReferenceLookup, core.LineItemStore, core.TxManager
// and core.AuditLogger.
type Store struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	ref    RefData
	items  []core.LineItem
	nextID int64
	audit  []core.AuditEntry

	// FailBegin makes ExecTx fail before running the batch.
	FailBegin error
	// FailUpsert is called before every upsert; a non-nil error rejects the row.
	FailUpsert func(core.UpsertParams) error
	// FailAudit makes LogImport fail.
	FailAudit error
	// UpsertDelay slows every upsert down, honoring ctx.
	UpsertDelay time.Duration

	upserts int
}

// New creates a store seeded with ref.
func New(ref RefData) *Store {
	return &Store{ref: ref, nextID: 1}
}

// =============================================================================
// Reference lookups
// =============================================================================

func (s *Store) HSCodeByCode(_ context.Context, code string) (core.HSCode, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.hsCodeByCode(code)
	return v, ok, nil
}

func (s *Store) HSCodeByID(_ context.Context, id int64) (core.HSCode, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, hs := range s.ref.HSCodes {
		if hs.ID == id {
			return hs, true, nil
		}
	}
	return core.HSCode{}, false, nil
}

func (s *Store) CurrencyByCode(_ context.Context, code string) (core.Currency, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.currencyByCode(code)
	return v, ok, nil
}

func (s *Store) CurrencyByID(_ context.Context, id int64) (core.Currency, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.ref.Currencies {
		if c.ID == id {
			return c, true, nil
		}
	}
	return core.Currency{}, false, nil
}

func (s *Store) CountryByCode(_ context.Context, code string) (core.Country, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.countryByCode(code)
	return v, ok, nil
}

func (s *Store) CountryByID(_ context.Context, id int64) (core.Country, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.ref.Countries {
		if c.ID == id {
			return c, true, nil
		}
	}
	return core.Country{}, false, nil
}

// RegimeFuzzy returns the lowest-ID regime whose label contains text
// (case-insensitive) or whose ID equals text.
func (s *Store) RegimeFuzzy(_ context.Context, text string) (core.Regime, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(text)
	numeric, isNumeric := core.RegimeNumericID(text)

	var (
		best  core.Regime
		found bool
	)
	for _, r := range s.ref.Regimes {
		match := strings.Contains(strings.ToLower(r.Label), needle) || (isNumeric && r.ID == numeric)
		if match && (!found || r.ID < best.ID) {
			best, found = r, true
		}
	}
	return best, found, nil
}

func (s *Store) RegimeByID(_ context.Context, id int64) (core.Regime, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.ref.Regimes {
		if r.ID == id {
			return r, true, nil
		}
	}
	return core.Regime{}, false, nil
}

// =============================================================================
// Line items
// =============================================================================

func (s *Store) DossierExists(_ context.Context, dossierID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.ref.Dossiers, dossierID), nil
}

func (s *Store) FindLineItem(_ context.Context, key core.NaturalKey) (*core.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(key); i >= 0 {
		item := s.items[i]
		return &item, nil
	}
	return nil, nil
}

// UpsertLineItem inserts or updates by natural key. With UpdateExisting
// false an existing line is left untouched.
func (s *Store) UpsertLineItem(ctx context.Context, p core.UpsertParams) (core.UpsertOutcome, error) {
	if s.UpsertDelay > 0 {
		select {
		case <-time.After(s.UpsertDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.FailUpsert != nil {
		if err := s.FailUpsert(p); err != nil {
			return "", err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++

	if !slices.Contains(s.ref.Dossiers, p.DossierID) {
		return "", fmt.Errorf("FILE ID %d DOES NOT EXIST", p.DossierID)
	}
	hs, ok := s.hsCodeByCode(p.HSCode)
	if !ok {
		return "", fmt.Errorf("HS CODE %s DOES NOT EXIST", p.HSCode)
	}
	cur, ok := s.currencyByCode(p.Currency)
	if !ok {
		return "", fmt.Errorf("CURRENCY %s DOES NOT EXIST", p.Currency)
	}

	var countryID, regimeID *int64
	if p.Country != "" {
		c, ok := s.countryByCode(p.Country)
		if !ok {
			return "", fmt.Errorf("COUNTRY CODE %s DOES NOT EXIST", p.Country)
		}
		countryID = &c.ID
	}
	if p.Regime != "" {
		r, ok := s.regimeByLabel(p.Regime)
		if !ok {
			return "", fmt.Errorf("REGIME %s DOES NOT EXIST", p.Regime)
		}
		regimeID = &r.ID
	}

	if p.Quantity <= 0 {
		return "", errors.New(`new row for relation "colisages" violates check constraint "colisages_quantity_positive"`)
	}

	item := core.LineItem{
		DossierID:        p.DossierID,
		HSCodeID:         hs.ID,
		HSCode:           hs.Code,
		Description:      p.Description,
		OrderNo:          p.OrderNo,
		SupplierName:     p.SupplierName,
		InvoiceNo:        p.InvoiceNo,
		ItemNo:           p.ItemNo,
		CurrencyID:       cur.ID,
		Currency:         cur.Code,
		Quantity:         p.Quantity,
		UnitPrice:        p.UnitPrice,
		GrossWeight:      p.GrossWeight,
		NetWeight:        p.NetWeight,
		Volume:           p.Volume,
		CountryID:        countryID,
		RegimeID:         regimeID,
		RegimeRatio:      p.RegimeRatio,
		CustomerGrouping: p.CustomerGrouping,
		UploadKey:        p.RowKey,
		Session:          p.Session,
	}

	key := core.NaturalKey{DossierID: p.DossierID, HSCodeID: hs.ID, ItemNo: p.ItemNo}
	if i := s.indexOf(key); i >= 0 {
		if !p.UpdateExisting {
			return core.OutcomeUnchanged, nil
		}
		item.ID = s.items[i].ID
		item.CreatedAt = s.items[i].CreatedAt
		s.items[i] = item
		return core.OutcomeUpdated, nil
	}

	item.ID = s.nextID
	item.CreatedAt = time.Now().UTC()
	s.nextID++
	s.items = append(s.items, item)
	return core.OutcomeInserted, nil
}

func (s *Store) ListLineItems(_ context.Context, dossierID int64) ([]core.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.LineItem
	for _, item := range s.items {
		if item.DossierID == dossierID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *Store) ListAllLineItems(_ context.Context, limit, offset int) ([]core.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(page(s.items, limit, offset)), nil
}

// page slices items to one page. A non-positive limit means no limit.
func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 {
		end = min(offset+limit, end)
	}
	return items[offset:end]
}

// =============================================================================
// Transactions
// =============================================================================

type snapshot struct {
	items  []core.LineItem
	nextID int64
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{items: slices.Clone(s.items), nextID: s.nextID}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = snap.items
	s.nextID = snap.nextID
}

// ExecTx runs fn; every line-item change made by fn is undone if it fails.
// Batches are serialized.
func (s *Store) ExecTx(ctx context.Context, fn core.TxFn) error {
	if s.FailBegin != nil {
		return fmt.Errorf("begin transaction: %w", s.FailBegin)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(snap)
		return err
	}
	if err := ctx.Err(); err != nil {
		s.restore(snap)
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Savepoint runs fn and undoes its changes alone if it fails.
func (s *Store) Savepoint(ctx context.Context, fn core.TxFn) error {
	snap := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// =============================================================================
// Audit
// =============================================================================

func (s *Store) LogImport(_ context.Context, entry core.AuditEntry) error {
	if s.FailAudit != nil {
		return s.FailAudit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	return nil
}

// ListImportAudit returns matching entries, newest first.
func (s *Store) ListImportAudit(_ context.Context, f core.AuditFilter) ([]core.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.AuditEntry
	for i := len(s.audit) - 1; i >= 0; i-- {
		if f.Matches(s.audit[i]) {
			out = append(out, s.audit[i])
		}
	}
	return page(out, f.Limit, f.Offset), nil
}

// =============================================================================
// Inspection
// =============================================================================

// Items returns a copy of every stored line item.
func (s *Store) Items() []core.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// AuditEntries returns a copy of the recorded audit entries.
func (s *Store) AuditEntries() []core.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.audit)
}

// UpsertCalls returns how many upserts reached the store.
func (s *Store) UpsertCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts
}

// =============================================================================
// Helpers (callers hold mu)
// =============================================================================

func (s *Store) indexOf(key core.NaturalKey) int {
	for i, item := range s.items {
		if item.DossierID == key.DossierID && item.HSCodeID == key.HSCodeID && item.ItemNo == key.ItemNo {
			return i
		}
	}
	return -1
}

func (s *Store) hsCodeByCode(code string) (core.HSCode, bool) {
	for _, hs := range s.ref.HSCodes {
		if hs.Code == code {
			return hs, true
		}
	}
	return core.HSCode{}, false
}

func (s *Store) currencyByCode(code string) (core.Currency, bool) {
	for _, c := range s.ref.Currencies {
		if c.Code == code {
			return c, true
		}
	}
	return core.Currency{}, false
}

func (s *Store) countryByCode(code string) (core.Country, bool) {
	for _, c := range s.ref.Countries {
		if c.Code == code {
			return c, true
		}
	}
	return core.Country{}, false
}

func (s *Store) regimeByLabel(label string) (core.Regime, bool) {
	for _, r := range s.ref.Regimes {
		if r.Label == label {
			return r, true
		}
	}
	return core.Regime{}, false
}
