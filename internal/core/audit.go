package core

import (
	"context"
	"time"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionImportCommit  AuditAction = "import_commit"
	ActionImportAborted AuditAction = "import_aborted"
	ActionImportDenied  AuditAction = "import_denied"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// AuditEntry records one commit batch.
type AuditEntry struct {
	BatchID   string        `json:"batchId"`
	Action    AuditAction   `json:"action"`
	Severity  AuditSeverity `json:"severity"`
	DossierID int64         `json:"dossierId"`
	Session   int64         `json:"session,omitempty"`
	IPAddress string        `json:"ipAddress,omitempty"`
	UserAgent string        `json:"userAgent,omitempty"`
	Total     int           `json:"total"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Reason    string        `json:"reason,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// AuditLogger persists audit entries.
type AuditLogger interface {
	LogImport(ctx context.Context, entry AuditEntry) error
}

// AuditFilter selects audit entries. Zero fields match everything.
type AuditFilter struct {
	DossierID int64
	Action    AuditAction
	Severity  AuditSeverity
	Limit     int
	Offset    int
}

// Matches reports whether e passes the filter's field conditions.
// Paging is not applied.
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.DossierID != 0 && e.DossierID != f.DossierID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	return true
}

// AuditReader lists audit entries, newest first.
type AuditReader interface {
	ListImportAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// determineSeverity returns the appropriate severity for an action.
func determineSeverity(action AuditAction, failed int) AuditSeverity {
	switch action {
	case ActionImportAborted:
		return SeverityCritical
	case ActionImportDenied:
		return SeverityMedium
	}
	if failed > 0 {
		return SeverityHigh
	}
	return SeverityLow
}

// newAuditEntry builds the audit record of a finished batch, pulling
// caller details from ctx.
func newAuditEntry(ctx context.Context, action AuditAction, dossierID int64, res *CommitResult) AuditEntry {
	entry := AuditEntry{
		BatchID:   res.BatchID,
		Action:    action,
		DossierID: dossierID,
		Session:   GetSessionFromContext(ctx),
		IPAddress: GetIPAddressFromContext(ctx),
		UserAgent: GetUserAgentFromContext(ctx),
		Total:     res.Total,
		Created:   res.Created,
		Updated:   res.Updated,
		Skipped:   res.Skipped,
		Failed:    len(res.Errors),
		CreatedAt: time.Now().UTC(),
	}
	if action != ActionImportCommit && len(res.Errors) > 0 {
		entry.Reason = res.Errors[0].Message
	}
	entry.Severity = determineSeverity(action, entry.Failed)
	return entry
}
