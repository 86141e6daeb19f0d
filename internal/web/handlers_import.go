package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/colisage/internal/core"
	"github.com/JonMunkholm/colisage/internal/logging"
)

// importRequest is the body of the import endpoint.
type importRequest struct {
	Rows           []core.ResolvedPreviewRow `json:"rows"`
	UpdateExisting bool                      `json:"updateExisting"`
}

// handlePreview parses an uploaded workbook and returns the resolved rows.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	dossierID, ok := dossierParam(w, r)
	if !ok {
		return
	}

	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			respondMessage(w, r, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		respondMessage(w, r, http.StatusBadRequest, "no file provided")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondMessage(w, r, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	logging.FromContext(r.Context()).Debug("preview upload received",
		"dossier_id", dossierID,
		"file", header.Filename,
		"size", header.Size,
	)

	result, err := s.service.PreviewImport(r.Context(), dossierID, file)
	if err != nil {
		respondError(w, r, err, statusFor(err), nil)
		return
	}

	respondData(w, r, result)
}

// handleImport commits the rows the user selected from a preview.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	dossierID, ok := dossierParam(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondMessage(w, r, http.StatusBadRequest, fmt.Sprintf("invalid import request: %v", err))
		return
	}
	if len(req.Rows) == 0 {
		respondMessage(w, r, http.StatusBadRequest, "no rows selected")
		return
	}

	result, err := s.service.CommitImport(r.Context(), core.CommitRequest{
		DossierID:      dossierID,
		Rows:           req.Rows,
		UpdateExisting: req.UpdateExisting,
	})
	if err != nil {
		// result is nil only when no import slot was obtained.
		var data any
		if result != nil {
			data = result
		}
		respondError(w, r, err, statusFor(err), data)
		return
	}

	respondData(w, r, result)
}

// handleDownloadTemplate serves the exemplar workbook.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := core.WriteTemplate(&buf); err != nil {
		respondError(w, r, err, http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="colisage-template.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Warn("template write failed", "error", err)
	}
}

// handleListDossier returns a dossier's line items. Responses are cached
// until the next commit into the dossier.
func (s *Server) handleListDossier(w http.ResponseWriter, r *http.Request) {
	dossierID, ok := dossierParam(w, r)
	if !ok {
		return
	}

	key := core.DossierCacheKey(dossierID)
	s.serveCached(w, r, key, func() (any, error) {
		items, err := s.service.ListLineItems(r.Context(), dossierID)
		if items == nil {
			items = []core.LineItem{}
		}
		return items, err
	})
}

// handleListAll returns a page of line items across dossiers.
func (s *Server) handleListAll(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", core.DefaultListLimit)
	offset := parseIntParam(r, "offset", 0)

	key := fmt.Sprintf("%s?limit=%d&offset=%d", core.ColisagesCacheKey, limit, offset)
	s.serveCached(w, r, key, func() (any, error) {
		items, err := s.service.ListAllLineItems(r.Context(), limit, offset)
		if items == nil {
			items = []core.LineItem{}
		}
		return items, err
	})
}

// serveCached writes the cached envelope for key, or builds, caches and
// writes a fresh one.
func (s *Server) serveCached(w http.ResponseWriter, r *http.Request, key string, load func() (any, error)) {
	if body, ok := s.cache.Get(key); ok {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "HIT")
		w.Write(body)
		return
	}

	gen := s.cache.Generation(key)
	data, err := load()
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError, nil)
		return
	}

	body, err := json.Marshal(apiResponse{Success: true, Data: data})
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError, nil)
		return
	}
	body = append(body, '\n')
	s.cache.Set(key, gen, body)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "MISS")
	w.Write(body)
}

// handleImportStatus returns the current state of the import limiter.
// Used for monitoring and to check if the system can accept more imports.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, s.service.ImportStatus())
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// dossierParam reads the dossier ID path parameter, writing a 400 when it
// is not a positive integer.
func dossierParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "dossierID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondMessage(w, r, http.StatusBadRequest, fmt.Sprintf("invalid dossier ID %q", raw))
		return 0, false
	}
	return id, true
}

// parseIntParam extracts an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
