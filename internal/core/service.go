package core

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/colisage/internal/logging"
)

// DefaultPreviewErrorLimit is how many preview errors are listed before
// the rest are summarised.
const DefaultPreviewErrorLimit = 5

// DefaultListLimit and MaxListLimit bound the global line-item listing.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Service is the entry point for packing-list imports. It chains the
// parser, resolver and committer and bounds concurrent imports.
type Service struct {
	parser    *Parser
	resolver  *Resolver
	committer *Committer
	store     LineItemStore
	auditLog  AuditReader
	limiter   *ImportLimiter

	previewErrorLimit int
}

// ServiceConfig wires a Service. Audit and Cache may be nil.
type ServiceConfig struct {
	Refs  ReferenceLookup
	Store LineItemStore
	Tx    TxManager
	Audit AuditLogger
	Cache ViewCache

	// AuditLog serves the audit listing; nil disables it.
	AuditLog AuditReader

	Aliases           AliasTable
	CommitTimeout     time.Duration
	MaxConcurrent     int
	MaxWait           time.Duration
	PreviewErrorLimit int
}

// NewService creates a new Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Refs == nil || cfg.Store == nil || cfg.Tx == nil {
		return nil, fmt.Errorf("service requires reference lookup, store and transaction manager")
	}
	if cfg.PreviewErrorLimit <= 0 {
		cfg.PreviewErrorLimit = DefaultPreviewErrorLimit
	}

	return &Service{
		parser:   NewParser(DefaultAliases().Merge(cfg.Aliases)),
		resolver: NewResolver(cfg.Refs, cfg.Store),
		committer: NewCommitter(CommitterConfig{
			Refs:    cfg.Refs,
			Store:   cfg.Store,
			Tx:      cfg.Tx,
			Audit:   cfg.Audit,
			Cache:   cfg.Cache,
			Timeout: cfg.CommitTimeout,
		}),
		store:             cfg.Store,
		auditLog:          cfg.AuditLog,
		limiter:           NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		previewErrorLimit: cfg.PreviewErrorLimit,
	}, nil
}

// PreviewImport parses a workbook and resolves its rows for dossierID.
// Nothing is written. The returned Errors list is capped for display;
// Issues carries every row error.
func (s *Service) PreviewImport(ctx context.Context, dossierID int64, r io.Reader) (*PreviewResult, error) {
	var res *PreviewResult
	err := s.limiter.Do(ctx, func(ctx context.Context) error {
		rows, err := s.parser.Parse(r)
		if err != nil {
			return err
		}

		res, err = s.resolver.Resolve(ctx, dossierID, rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("import preview built",
		"dossier_id", dossierID,
		"total", res.Total,
		"valid", res.Valid,
		"new", res.Stats.New,
		"existing", res.Stats.Existing,
		"errors", len(res.Issues),
		"missing_hs_codes", len(res.MissingData.HSCodes),
	)

	res.Errors = SampleErrors(res.Errors, s.previewErrorLimit)
	return res, nil
}

// CommitImport writes the selected rows. See Committer.Commit for the
// result and error contract.
func (s *Service) CommitImport(ctx context.Context, req CommitRequest) (*CommitResult, error) {
	var res *CommitResult
	err := s.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.committer.Commit(ctx, req)
		return err
	})
	return res, err
}

// ListLineItems returns the line items of one dossier.
func (s *Service) ListLineItems(ctx context.Context, dossierID int64) ([]LineItem, error) {
	items, err := s.store.ListLineItems(ctx, dossierID)
	if err != nil {
		return nil, fmt.Errorf("list line items for dossier %d: %w", dossierID, err)
	}
	return items, nil
}

// ListAllLineItems returns a page of line items across dossiers.
func (s *Service) ListAllLineItems(ctx context.Context, limit, offset int) ([]LineItem, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	items, err := s.store.ListAllLineItems(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}
	return items, nil
}

// ListImportAudit returns audit entries matching filter, newest first.
// Returns ErrAuditUnavailable when no audit reader is configured.
func (s *Service) ListImportAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error) {
	if s.auditLog == nil {
		return nil, ErrAuditUnavailable
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	entries, err := s.auditLog.ListImportAudit(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list import audit: %w", err)
	}
	return entries, nil
}

// ImportStatus reports the limiter state.
func (s *Service) ImportStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until in-flight imports finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
