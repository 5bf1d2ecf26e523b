package web

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/salesunifier/internal/core"
	"github.com/JonMunkholm/salesunifier/internal/logging"
	"github.com/go-chi/chi/v5"
)

// multipartOverhead allows for form boundaries and part headers on top of
// the file bytes themselves.
const multipartOverhead = 1 << 20

// statusResponse is returned by GET /api/status.
type statusResponse struct {
	Counts         core.Counts     `json:"counts"`
	Gate           core.GateStatus `json:"gate"`
	RequiredFields []string        `json:"requiredFields"`
}

// recordsResponse lists ledger records.
type recordsResponse struct {
	Count   int            `json:"count"`
	Records []*core.Record `json:"records"`
}

// fixView is a fix-history entry with its field-level diff.
type fixView struct {
	core.FixEntry
	Changes []core.FieldChange `json:"changes"`
}

func newFixView(e core.FixEntry) fixView {
	changes := e.Changes()
	if changes == nil {
		changes = []core.FieldChange{}
	}
	return fixView{FixEntry: e, Changes: changes}
}

// fixResponse is returned by POST /api/exceptions/{index}/fix.
type fixResponse struct {
	Fix     fixView     `json:"fix"`
	Notices []string    `json:"notices,omitempty"`
	Counts  core.Counts `json:"counts"`
}

// bulkFixResponse is returned by POST /api/exceptions/fix-all.
type bulkFixResponse struct {
	core.BulkFixReport
	Counts core.Counts `json:"counts"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Counts:         s.pipeline.Ledger().Counts(),
		Gate:           s.pipeline.GateStatus(),
		RequiredFields: s.pipeline.Validator().RequiredFields(),
	})
}

// handleProcessFiles reads the multipart "files" field and runs a new
// processing pass over every file, replacing the previous ledger contents.
func (s *Server) handleProcessFiles(w http.ResponseWriter, r *http.Request) {
	maxFile := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxFile*int64(s.cfg.Upload.MaxFiles)+multipartOverhead)

	if err := r.ParseMultipartForm(maxFile); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, fmt.Errorf("%w: request exceeds %d bytes", core.ErrFileTooLarge, tooLarge.Limit))
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: %v", core.ErrNoFiles, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.respondError(w, r, core.ErrNoFiles)
		return
	}
	if len(headers) > s.cfg.Upload.MaxFiles {
		s.respondError(w, r, fmt.Errorf("%w: %d files, limit is %d", core.ErrTooManyFiles, len(headers), s.cfg.Upload.MaxFiles))
		return
	}

	files := make([]core.FileInput, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > maxFile {
			s.respondError(w, r, fmt.Errorf("%s: %w (%d bytes, limit is %d)", fh.Filename, core.ErrFileTooLarge, fh.Size, maxFile))
			return
		}
		data, err := readPart(fh)
		if err != nil {
			s.respondError(w, r, core.UnreadableFile(fh.Filename, err))
			return
		}
		files = append(files, core.FileInput{Name: fh.Filename, Data: data})
	}

	logging.FromContext(r.Context()).Info("processing upload", "files", len(files))

	report, err := s.pipeline.ProcessFiles(r.Context(), files)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) handleExceptions(w http.ResponseWriter, r *http.Request) {
	recs := s.pipeline.Ledger().Exceptions()
	writeJSON(w, http.StatusOK, recordsResponse{Count: len(recs), Records: recs})
}

func (s *Server) handleConsolidated(w http.ResponseWriter, r *http.Request) {
	recs := s.pipeline.Ledger().Consolidated()
	writeJSON(w, http.StatusOK, recordsResponse{Count: len(recs), Records: recs})
}

func (s *Server) handleFixHistory(w http.ResponseWriter, r *http.Request) {
	history := s.pipeline.Ledger().FixHistory()
	views := make([]fixView, len(history))
	for i, e := range history {
		views[i] = newFixView(e)
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(views), "fixes": views})
}

// handleStoredHistory lists fixes persisted across sessions.
func (s *Server) handleStoredHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false, "fixes": []any{}})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	fixes, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "fixes": fixes})
}

func (s *Server) handleFixException(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "index")
	index, err := strconv.Atoi(raw)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %q", core.ErrIndexOutOfRange, raw))
		return
	}

	entry, notices, err := s.pipeline.FixException(r.Context(), index)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fixResponse{
		Fix:     newFixView(entry),
		Notices: notices,
		Counts:  s.pipeline.Ledger().Counts(),
	})
}

func (s *Server) handleFixAll(w http.ResponseWriter, r *http.Request) {
	report, err := s.pipeline.AutoFixAll(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bulkFixResponse{
		BulkFixReport: report,
		Counts:        s.pipeline.Ledger().Counts(),
	})
}

func (s *Server) handleExportConsolidated(w http.ResponseWriter, r *http.Request) {
	s.writeExport(w, r, core.ExportConsolidated, core.ConsolidatedRows(s.pipeline.Ledger()))
}

func (s *Server) handleExportFixHistory(w http.ResponseWriter, r *http.Request) {
	s.writeExport(w, r, core.ExportFixHistory, core.FixHistoryRows(s.pipeline.Ledger()))
}

// writeExport sends rows as a CSV download named after base and today's date.
func (s *Server) writeExport(w http.ResponseWriter, r *http.Request, base string, rows []core.ExportRow) {
	body, err := core.ToCSV(rows)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	filename := core.ExportFileName(base, s.now())
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if _, err := io.WriteString(w, body); err != nil {
		logging.FromContext(r.Context()).Error("export write failed", "file", filename, "error", err)
	}
}
