package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/colisage/internal/core"
)

// Store implements core.ReferenceLookup, core.LineItemStore,
// core.AuditLogger and core.AuditReader.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ core.ReferenceLookup = (*Store)(nil)
	_ core.LineItemStore   = (*Store)(nil)
	_ core.AuditLogger     = (*Store)(nil)
	_ core.AuditReader     = (*Store)(nil)
)

// NewStore creates a store backed by pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// =============================================================================
// Reference lookups
// =============================================================================

func (s *Store) HSCodeByCode(ctx context.Context, code string) (core.HSCode, bool, error) {
	return s.hsCode(ctx, `SELECT id, code, label FROM hs_codes WHERE code = $1`, code)
}

func (s *Store) HSCodeByID(ctx context.Context, id int64) (core.HSCode, bool, error) {
	return s.hsCode(ctx, `SELECT id, code, label FROM hs_codes WHERE id = $1`, id)
}

func (s *Store) hsCode(ctx context.Context, query string, arg any) (core.HSCode, bool, error) {
	var hs core.HSCode
	err := executor(ctx, s.pool).QueryRow(ctx, query, arg).Scan(&hs.ID, &hs.Code, &hs.Label)
	return found(hs, err, "hs code")
}

func (s *Store) CurrencyByCode(ctx context.Context, code string) (core.Currency, bool, error) {
	return s.currency(ctx, `SELECT id, code FROM currencies WHERE code = $1`, code)
}

func (s *Store) CurrencyByID(ctx context.Context, id int64) (core.Currency, bool, error) {
	return s.currency(ctx, `SELECT id, code FROM currencies WHERE id = $1`, id)
}

func (s *Store) currency(ctx context.Context, query string, arg any) (core.Currency, bool, error) {
	var c core.Currency
	err := executor(ctx, s.pool).QueryRow(ctx, query, arg).Scan(&c.ID, &c.Code)
	return found(c, err, "currency")
}

func (s *Store) CountryByCode(ctx context.Context, code string) (core.Country, bool, error) {
	return s.country(ctx, `SELECT id, code FROM countries WHERE code = $1`, code)
}

func (s *Store) CountryByID(ctx context.Context, id int64) (core.Country, bool, error) {
	return s.country(ctx, `SELECT id, code FROM countries WHERE id = $1`, id)
}

func (s *Store) country(ctx context.Context, query string, arg any) (core.Country, bool, error) {
	var c core.Country
	err := executor(ctx, s.pool).QueryRow(ctx, query, arg).Scan(&c.ID, &c.Code)
	return found(c, err, "country")
}

// RegimeFuzzy returns the lowest-ID regime whose label contains text
// (case-insensitive) or whose ID equals text.
func (s *Store) RegimeFuzzy(ctx context.Context, text string) (core.Regime, bool, error) {
	var numeric *int64
	if id, ok := core.RegimeNumericID(text); ok {
		numeric = &id
	}

	const query = `
		SELECT id, label, ratio
		FROM customs_regimes
		WHERE label ILIKE $1 ESCAPE '\' OR id = $2
		ORDER BY id
		LIMIT 1`

	var r core.Regime
	err := executor(ctx, s.pool).QueryRow(ctx, query, "%"+escapeLike(text)+"%", numeric).
		Scan(&r.ID, &r.Label, &r.Ratio)
	return found(r, err, "regime")
}

func (s *Store) RegimeByID(ctx context.Context, id int64) (core.Regime, bool, error) {
	var r core.Regime
	err := executor(ctx, s.pool).QueryRow(ctx,
		`SELECT id, label, ratio FROM customs_regimes WHERE id = $1`, id,
	).Scan(&r.ID, &r.Label, &r.Ratio)
	return found(r, err, "regime")
}

// found turns a single-row scan result into the lookup triple.
func found[T any](v T, err error, what string) (T, bool, error) {
	if err == nil {
		return v, true, nil
	}
	var zero T
	if IsPgNoRowsError(err) {
		return zero, false, nil
	}
	return zero, false, fmt.Errorf("lookup %s: %w", what, err)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes text match literally inside an ILIKE pattern.
func escapeLike(text string) string {
	return likeEscaper.Replace(text)
}

// =============================================================================
// Line items
// =============================================================================

const lineItemColumns = `
	c.id, c.dossier_id, c.hs_code_id, h.code, c.description, c.order_no,
	c.supplier_name, c.invoice_no, c.item_no, c.currency_id, cu.code,
	c.quantity, c.unit_price, c.gross_weight, c.net_weight, c.volume,
	c.country_id, c.regime_id, c.regime_ratio, c.customer_grouping,
	c.upload_key, c.session_id, c.created_at`

const lineItemFrom = `
	FROM colisages c
	JOIN hs_codes h ON h.id = c.hs_code_id
	JOIN currencies cu ON cu.id = c.currency_id`

func scanLineItem(row pgx.Row) (core.LineItem, error) {
	var li core.LineItem
	err := row.Scan(
		&li.ID, &li.DossierID, &li.HSCodeID, &li.HSCode, &li.Description, &li.OrderNo,
		&li.SupplierName, &li.InvoiceNo, &li.ItemNo, &li.CurrencyID, &li.Currency,
		&li.Quantity, &li.UnitPrice, &li.GrossWeight, &li.NetWeight, &li.Volume,
		&li.CountryID, &li.RegimeID, &li.RegimeRatio, &li.CustomerGrouping,
		&li.UploadKey, &li.Session, &li.CreatedAt,
	)
	return li, err
}

func (s *Store) DossierExists(ctx context.Context, dossierID int64) (bool, error) {
	var exists bool
	err := executor(ctx, s.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM dossiers WHERE id = $1)`, dossierID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check dossier: %w", err)
	}
	return exists, nil
}

func (s *Store) FindLineItem(ctx context.Context, key core.NaturalKey) (*core.LineItem, error) {
	query := `SELECT ` + lineItemColumns + lineItemFrom + `
		WHERE c.dossier_id = $1 AND c.hs_code_id = $2 AND c.item_no = $3`

	li, err := scanLineItem(executor(ctx, s.pool).QueryRow(ctx, query, key.DossierID, key.HSCodeID, key.ItemNo))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find line item: %w", err)
	}
	return &li, nil
}

// UpsertLineItem calls the upsert_colisage function. Rejections for unknown
// natural keys are returned as the function raised them.
func (s *Store) UpsertLineItem(ctx context.Context, p core.UpsertParams) (core.UpsertOutcome, error) {
	const query = `SELECT upsert_colisage(
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		$11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	var outcome string
	err := executor(ctx, s.pool).QueryRow(ctx, query,
		p.DossierID,
		p.RowKey,
		p.HSCode,
		p.Description,
		p.OrderNo,
		p.SupplierName,
		p.InvoiceNo,
		p.ItemNo,
		p.Currency,
		p.Quantity,
		p.UnitPrice,
		p.GrossWeight,
		p.NetWeight,
		p.Volume,
		p.Country,
		p.Regime,
		p.RegimeRatio,
		p.CustomerGrouping,
		p.Session,
		p.UpdateExisting,
	).Scan(&outcome)
	switch {
	case err == nil:
		return core.UpsertOutcome(outcome), nil
	case IsPgRaisedError(err):
		return "", err
	case IsPgForeignKeyError(err):
		// The dossier was deleted after the function checked it.
		return "", fmt.Errorf("FILE ID %d DOES NOT EXIST: %w", p.DossierID, err)
	default:
		return "", fmt.Errorf("upsert line item: %w", err)
	}
}

func (s *Store) ListLineItems(ctx context.Context, dossierID int64) ([]core.LineItem, error) {
	query := `SELECT ` + lineItemColumns + lineItemFrom + `
		WHERE c.dossier_id = $1
		ORDER BY c.id`
	return s.listLineItems(ctx, query, dossierID)
}

func (s *Store) ListAllLineItems(ctx context.Context, limit, offset int) ([]core.LineItem, error) {
	query := `SELECT ` + lineItemColumns + lineItemFrom + `
		ORDER BY c.id
		LIMIT $1 OFFSET $2`
	return s.listLineItems(ctx, query, limit, offset)
}

func (s *Store) listLineItems(ctx context.Context, query string, args ...any) ([]core.LineItem, error) {
	rows, err := executor(ctx, s.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}
	defer rows.Close()

	var items []core.LineItem
	for rows.Next() {
		li, err := scanLineItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		items = append(items, li)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}
	return items, nil
}

// =============================================================================
// Audit
// =============================================================================

// LogImport writes an audit entry. It always uses the pool: the entry must
// survive a rolled-back batch.
func (s *Store) LogImport(ctx context.Context, e core.AuditEntry) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO import_audit (
			batch_id, action, severity, dossier_id, session_id, ip_address,
			user_agent, total, created, updated, skipped, failed, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.BatchID,
		string(e.Action),
		string(e.Severity),
		e.DossierID,
		e.Session,
		e.IPAddress,
		e.UserAgent,
		e.Total,
		e.Created,
		e.Updated,
		e.Skipped,
		e.Failed,
		e.Reason,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListImportAudit returns matching audit entries, newest first.
func (s *Store) ListImportAudit(ctx context.Context, f core.AuditFilter) ([]core.AuditEntry, error) {
	wb := newWhereBuilder()
	wb.add("dossier_id", f.DossierID)
	wb.add("action", string(f.Action))
	wb.add("severity", string(f.Severity))
	where, args := wb.build()

	query := `SELECT batch_id::text, action, severity, dossier_id, session_id, ip_address,
		user_agent, total, created, updated, skipped, failed, reason, created_at
		FROM import_audit` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", wb.nextArg(), wb.nextArg()+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []core.AuditEntry
	for rows.Next() {
		var (
			e                core.AuditEntry
			action, severity string
		)
		if err := rows.Scan(
			&e.BatchID, &action, &severity, &e.DossierID, &e.Session, &e.IPAddress,
			&e.UserAgent, &e.Total, &e.Created, &e.Updated, &e.Skipped, &e.Failed,
			&e.Reason, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Action = core.AuditAction(action)
		e.Severity = core.AuditSeverity(severity)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
