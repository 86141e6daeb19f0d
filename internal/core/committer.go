package core

// committer.go writes user-selected preview rows to the store.
//
// A commit batch runs inside one transaction with an extended timeout. Each
// row runs in its own savepoint, so a failing row is rolled back alone and
// reported while the rest of the batch continues. Only failures of the
// transaction itself (cannot begin, timeout, cancellation) abort the batch;
// in that case nothing is committed and no per-row success is claimed.
//
// The store's upsert primitive decides between insert and update. The
// committer only re-resolves reference IDs to codes, marshals arguments and
// translates backend errors into user messages.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/colisage/internal/logging"
)

// DefaultCommitTimeout bounds a whole commit batch.
const DefaultCommitTimeout = 2 * time.Minute

// Committer executes commit batches.
type Committer struct {
	refs    ReferenceLookup
	store   LineItemStore
	tx      TxManager
	audit   AuditLogger
	cache   ViewCache
	timeout time.Duration
}

// CommitterConfig holds the committer's collaborators. Audit and Cache are optional.
type CommitterConfig struct {
	Refs    ReferenceLookup
	Store   LineItemStore
	Tx      TxManager
	Audit   AuditLogger
	Cache   ViewCache
	Timeout time.Duration
}

// NewCommitter creates a committer. A zero Timeout means DefaultCommitTimeout.
func NewCommitter(cfg CommitterConfig) *Committer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCommitTimeout
	}
	return &Committer{
		refs:    cfg.Refs,
		store:   cfg.Store,
		tx:      cfg.Tx,
		audit:   cfg.Audit,
		cache:   cfg.Cache,
		timeout: cfg.Timeout,
	}
}

// Commit imports req.Rows into req.DossierID.
//
// Row failures are reported in the result's Errors with the row's 1-based
// position in req.Rows. A missing dossier returns ErrDossierNotFound and an
// aborted batch returns an error wrapping ErrCommitAborted; in both cases the
// result is still returned with zero counts and the cause as its only error.
func (c *Committer) Commit(ctx context.Context, req CommitRequest) (*CommitResult, error) {
	res := &CommitResult{
		BatchID: uuid.NewString(),
		Total:   len(req.Rows),
	}
	log := logging.WithFields(ctx,
		"batch_id", res.BatchID,
		"dossier_id", req.DossierID,
	)

	exists, err := c.store.DossierExists(ctx, req.DossierID)
	if err != nil {
		res.Errors = []ImportError{{Message: err.Error(), Kind: KindCommit}}
		log.Error("dossier lookup failed", "error", err)
		c.record(ctx, ActionImportAborted, req.DossierID, res)
		return res, fmt.Errorf("%w: check dossier: %w", ErrCommitAborted, err)
	}
	if !exists {
		res.Errors = []ImportError{{
			Message: fmt.Sprintf("dossier %d not found", req.DossierID),
			Kind:    KindCommit,
		}}
		log.Warn("import rejected, dossier not found")
		c.record(ctx, ActionImportDenied, req.DossierID, res)
		return res, ErrDossierNotFound
	}

	log.Info("import started", "rows", len(req.Rows), "update_existing", req.UpdateExisting)
	start := time.Now()

	batchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		created, updated, skipped int
		rowErrs                   []ImportError
	)

	err = c.tx.ExecTx(batchCtx, func(txCtx context.Context) error {
		session := GetSessionFromContext(ctx)

		for i, row := range req.Rows {
			if err := txCtx.Err(); err != nil {
				return err
			}

			outcome, params, err := c.commitRow(txCtx, req, row, session)
			if err != nil {
				if txCtx.Err() != nil {
					return txCtx.Err()
				}
				rowErr := ImportError{
					Row:     i + 1,
					RowKey:  row.RowKey,
					Message: translateCommitError(err, params),
					Kind:    KindCommit,
				}
				level := slog.LevelWarn
				if IsReferenceError(err) {
					level = slog.LevelInfo
				}
				log.Log(txCtx, level, "row import failed",
					"row", rowErr.Row,
					"row_key", row.RowKey,
					"error", err,
				)
				rowErrs = append(rowErrs, rowErr)
				continue
			}

			switch outcome {
			case OutcomeInserted:
				created++
			case OutcomeUpdated:
				updated++
			default:
				skipped++
			}
		}
		return nil
	})

	c.invalidate(req.DossierID)

	if err != nil {
		res.Errors = []ImportError{{Message: err.Error(), Kind: KindCommit}}
		log.Error("import aborted, batch rolled back",
			"error", err,
			"duration", time.Since(start),
		)
		c.record(ctx, ActionImportAborted, req.DossierID, res)
		return res, fmt.Errorf("%w: %w", ErrCommitAborted, err)
	}

	res.Created = created
	res.Updated = updated
	res.Skipped = skipped
	res.Errors = rowErrs

	log.Info("import completed",
		"created", created,
		"updated", updated,
		"skipped", skipped,
		"failed", len(rowErrs),
		"duration", time.Since(start),
	)
	c.record(ctx, ActionImportCommit, req.DossierID, res)
	return res, nil
}

// commitRow writes one row inside a savepoint. The params sent to the store
// are returned for error reporting.
func (c *Committer) commitRow(ctx context.Context, req CommitRequest, row ResolvedPreviewRow, session int64) (UpsertOutcome, UpsertParams, error) {
	var (
		outcome UpsertOutcome
		params  UpsertParams
	)
	err := c.tx.Savepoint(ctx, func(ctx context.Context) error {
		var err error
		params, err = c.upsertParams(ctx, req, row, session)
		if err != nil {
			return err
		}
		outcome, err = c.store.UpsertLineItem(ctx, params)
		return err
	})
	return outcome, params, err
}

// upsertParams re-resolves the row's reference IDs to their current codes.
// The store takes natural keys, and reference data may have changed since
// the preview was built.
func (c *Committer) upsertParams(ctx context.Context, req CommitRequest, row ResolvedPreviewRow, session int64) (UpsertParams, error) {
	p := UpsertParams{
		DossierID:        req.DossierID,
		RowKey:           row.RowKey,
		HSCode:           SentinelHSCode,
		Description:      row.Description,
		OrderNo:          row.OrderNo,
		SupplierName:     row.SupplierName,
		InvoiceNo:        row.InvoiceNo,
		ItemNo:           row.ItemNo,
		Quantity:         row.Quantity,
		UnitPrice:        row.UnitPrice,
		GrossWeight:      row.GrossWeight,
		NetWeight:        row.NetWeight,
		Volume:           row.Volume,
		RegimeRatio:      row.RegimeRatio,
		CustomerGrouping: row.CustomerGrouping,
		Session:          session,
		UpdateExisting:   req.UpdateExisting,
	}
	if p.ItemNo == "" {
		p.ItemNo = defaultItemNo
	}
	if p.CustomerGrouping == "" {
		p.CustomerGrouping = defaultCustomerGrouping
	}

	if id := row.HSCodeID; id != nil && *id != 0 {
		hs, ok, err := c.refs.HSCodeByID(ctx, *id)
		if err != nil {
			return p, err
		}
		if !ok {
			return p, newRowError("HS code ID %d not found", *id)
		}
		p.HSCode = hs.Code
	}

	if id := row.CurrencyID; id != nil {
		cur, ok, err := c.refs.CurrencyByID(ctx, *id)
		if err != nil {
			return p, err
		}
		if !ok {
			return p, newRowError("currency ID %d not found", *id)
		}
		p.Currency = cur.Code
	}

	if id := row.CountryID; id != nil {
		country, ok, err := c.refs.CountryByID(ctx, *id)
		if err != nil {
			return p, err
		}
		if !ok {
			return p, newRowError("country ID %d not found", *id)
		}
		p.Country = country.Code
	}

	if id := row.RegimeID; id != nil {
		regime, ok, err := c.refs.RegimeByID(ctx, *id)
		if err != nil {
			return p, err
		}
		if !ok {
			return p, newRowError("regime ID %d not found", *id)
		}
		p.Regime = regime.Label
	}

	return p, nil
}

// invalidate drops cached listings touched by the batch.
func (c *Committer) invalidate(dossierID int64) {
	if c.cache == nil {
		return
	}
	c.cache.Invalidate(DossierCacheKey(dossierID), ColisagesCacheKey)
}

// record writes the batch's audit entry. Failures are logged only.
func (c *Committer) record(ctx context.Context, action AuditAction, dossierID int64, res *CommitResult) {
	if c.audit == nil {
		return
	}
	entry := newAuditEntry(ctx, action, dossierID, res)

	// The batch context may already be done; the audit row must still be written.
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := c.audit.LogImport(auditCtx, entry); err != nil {
		logging.FromContext(ctx).Warn("failed to write import audit entry",
			"batch_id", res.BatchID,
			"error", err,
		)
	}
}

// translateCommitError turns a row failure into the message shown to the user.
// Backend rejections quote the values in p, which is what the store saw.
func translateCommitError(err error, p UpsertParams) string {
	var re *rowError
	if errors.As(err, &re) {
		return re.msg
	}
	if msg, ok := matchBackendError(err, p); ok {
		return msg
	}
	if IsUserFacing(err) {
		return FormatUserError(err)
	}
	return err.Error()
}
