package web

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/colisage/internal/core"
	"github.com/JonMunkholm/colisage/internal/logging"
)

// auditCSVHeader is the header row of the audit export.
var auditCSVHeader = []string{
	"Batch ID", "Timestamp", "Action", "Severity", "Dossier",
	"Session", "IP Address", "User Agent",
	"Total", "Created", "Updated", "Skipped", "Failed", "Reason",
}

// handleImportAudit lists a dossier's import batches, newest first.
// Filters: action, severity, limit, offset. format=csv downloads the page
// as CSV instead of JSON.
func (s *Server) handleImportAudit(w http.ResponseWriter, r *http.Request) {
	dossierID, ok := dossierParam(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := core.AuditFilter{
		DossierID: dossierID,
		Action:    core.AuditAction(q.Get("action")),
		Severity:  core.AuditSeverity(q.Get("severity")),
		Limit:     parseIntParam(r, "limit", core.DefaultListLimit),
		Offset:    parseIntParam(r, "offset", 0),
	}

	entries, err := s.service.ListImportAudit(r.Context(), filter)
	if err != nil {
		respondError(w, r, err, statusFor(err), nil)
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}

	if q.Get("format") == "csv" {
		writeAuditCSV(w, r, dossierID, entries)
		return
	}
	respondData(w, r, entries)
}

func writeAuditCSV(w http.ResponseWriter, r *http.Request, dossierID int64, entries []core.AuditEntry) {
	filename := fmt.Sprintf("import_audit_%d_%s.csv", dossierID, time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	cw := csv.NewWriter(w)
	cw.Write(auditCSVHeader)
	for _, e := range entries {
		cw.Write([]string{
			e.BatchID,
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			string(e.Action),
			string(e.Severity),
			strconv.FormatInt(e.DossierID, 10),
			strconv.FormatInt(e.Session, 10),
			e.IPAddress,
			e.UserAgent,
			strconv.Itoa(e.Total),
			strconv.Itoa(e.Created),
			strconv.Itoa(e.Updated),
			strconv.Itoa(e.Skipped),
			strconv.Itoa(e.Failed),
			e.Reason,
		})
	}
	cw.Flush()

	// Headers are already sent; the error can only be logged.
	if err := cw.Error(); err != nil {
		logging.FromContext(r.Context()).Warn("audit export failed", "error", err)
	}
}
