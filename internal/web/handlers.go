package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/qrsheet/qrsheet/internal/archive"
	"github.com/qrsheet/qrsheet/internal/batch"
	"github.com/qrsheet/qrsheet/internal/classify"
	"github.com/qrsheet/qrsheet/internal/history"
	"github.com/qrsheet/qrsheet/internal/logging"
	"github.com/qrsheet/qrsheet/internal/naming"
	"github.com/qrsheet/qrsheet/internal/qr"
	"github.com/qrsheet/qrsheet/internal/tabular"
)

// handleHealth responds to liveness probes.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// qrParams carries optional overrides of the default QR settings. Nil
// fields keep the default; Border may legitimately be zero.
type qrParams struct {
	ModuleSize *int   `json:"module_size"`
	Border     *int   `json:"border"`
	OutputSize *int   `json:"output_size"`
	Level      string `json:"level"`
}

// apply layers the overrides over a base spec.
func (p *qrParams) apply(base qr.Spec) qr.Spec {
	if p == nil {
		return base
	}
	if p.ModuleSize != nil {
		base.ModuleSize = *p.ModuleSize
	}
	if p.Border != nil {
		base.Border = *p.Border
	}
	if p.OutputSize != nil {
		base.OutputSize = *p.OutputSize
	}
	if p.Level != "" {
		base.ErrorCorrection = qr.Level(p.Level)
	}
	return base
}

// singleQRRequest is the body for the single-URL encode endpoint.
type singleQRRequest struct {
	URL string    `json:"url"`
	QR  *qrParams `json:"qr"`
}

// handleSingleQR encodes one URL and returns the PNG directly.
func (s *Server) handleSingleQR(w http.ResponseWriter, r *http.Request) {
	var req singleQRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	url := strings.TrimSpace(req.URL)
	if url == "" {
		writeError(w, r, http.StatusBadRequest, "url is required")
		return
	}

	spec := req.QR.apply(qr.DefaultSpec())
	png, err := qr.Encode(classify.EnsureScheme(url), spec)
	if err != nil {
		badRequest(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `attachment; filename="qr.png"`)
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// sheetSummary describes one parsed sheet for clients.
type sheetSummary struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
}

// uploadResponse is the body returned after an upload is parsed.
type uploadResponse struct {
	UploadID string         `json:"upload_id"`
	FileName string         `json:"file_name"`
	Sheets   []sheetSummary `json:"sheets"`
}

func uploadToResponse(u *Upload) uploadResponse {
	resp := uploadResponse{
		UploadID: u.ID.String(),
		FileName: u.FileName,
		Sheets:   make([]sheetSummary, 0, len(u.Tables)),
	}
	for _, t := range u.Tables {
		resp.Sheets = append(resp.Sheets, sheetSummary{
			Name:    t.Sheet,
			Columns: t.Columns,
			Rows:    len(t.Rows),
		})
	}
	return resp
}

// handleUpload accepts a multipart spreadsheet upload, parses it, and
// stores the tables in memory for later generation.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file exceeds the %d byte limit", s.cfg.Upload.MaxFileSize))
			return
		}
		writeError(w, r, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	tables, err := tabular.Read(header.Filename, file)
	if err != nil {
		badRequest(w, r, err)
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	upload := &Upload{
		ID:       id,
		FileName: header.Filename,
		Tables:   tables,
		Created:  time.Now(),
	}
	s.store.PutUpload(upload)

	logging.FromContext(r.Context()).Info("upload parsed",
		"upload_id", upload.ID,
		"file_name", upload.FileName,
		"sheets", len(tables),
	)

	writeJSON(w, http.StatusCreated, uploadToResponse(upload))
}

// lookupUpload resolves the {uploadID} URL parameter.
func (s *Server) lookupUpload(w http.ResponseWriter, r *http.Request) (*Upload, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "uploadID"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid upload id")
		return nil, false
	}
	u, ok := s.store.GetUpload(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "upload not found or expired")
		return nil, false
	}
	return u, true
}

// handleUploadDetail returns the sheets and columns of a parsed upload.
func (s *Server) handleUploadDetail(w http.ResponseWriter, r *http.Request) {
	u, ok := s.lookupUpload(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, uploadToResponse(u))
}

// classifyResponse ranks a sheet's columns by URL likelihood.
type classifyResponse struct {
	Sheet     string                 `json:"sheet"`
	Suggested string                 `json:"suggested"`
	Scores    []classify.ColumnScore `json:"scores"`
}

// handleClassify scores the columns of one sheet. The sheet query
// parameter defaults to the first sheet.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	u, ok := s.lookupUpload(w, r)
	if !ok {
		return
	}

	table, ok := s.resolveSheet(w, r, u, r.URL.Query().Get("sheet"))
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, classifyResponse{
		Sheet:     table.Sheet,
		Suggested: classify.Suggest(table),
		Scores:    classify.Classify(table),
	})
}

// resolveSheet picks a sheet by name, defaulting to the first one.
func (s *Server) resolveSheet(w http.ResponseWriter, r *http.Request, u *Upload, sheet string) (*tabular.Table, bool) {
	if sheet == "" {
		if len(u.Tables) == 0 {
			writeError(w, r, http.StatusBadRequest, "upload has no sheets")
			return nil, false
		}
		return u.Tables[0], true
	}
	table := u.Table(sheet)
	if table == nil {
		writeError(w, r, http.StatusNotFound, fmt.Sprintf("sheet %q not found", sheet))
		return nil, false
	}
	return table, true
}

// generateRequest is the body for the batch generation endpoint.
type generateRequest struct {
	Sheet           string    `json:"sheet"`
	URLColumn       string    `json:"url_column"`
	FilenameColumns []string  `json:"filename_columns"`
	Separator       string    `json:"separator"`
	CollapseEmpty   bool      `json:"collapse_empty"`
	QR              *qrParams `json:"qr"`
}

// runFailure is one failed row in a run summary.
type runFailure struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// runResponse summarizes a finished run.
type runResponse struct {
	RunID      string       `json:"run_id"`
	TotalRows  int          `json:"total_rows"`
	Succeeded  int          `json:"succeeded"`
	Failed     int          `json:"failed"`
	DurationMS int64        `json:"duration_ms"`
	Entries    int          `json:"archive_entries"`
	Failures   []runFailure `json:"failures"`
}

func runToResponse(run *Run) runResponse {
	resp := runResponse{
		RunID:      run.ID.String(),
		TotalRows:  len(run.Outcome.Results),
		Succeeded:  run.Outcome.Succeeded,
		Failed:     run.Outcome.Failed,
		DurationMS: run.Outcome.Duration.Milliseconds(),
		Entries:    run.Archive.Entries,
		Failures:   make([]runFailure, 0, run.Outcome.Failed),
	}
	for _, f := range run.Outcome.Failures() {
		resp.Failures = append(resp.Failures, runFailure{
			Row:    f.Row,
			Reason: string(f.Reason),
			Detail: f.Detail,
		})
	}
	return resp
}

// handleGenerate runs the batch pipeline over one sheet of an upload and
// assembles the downloadable archive.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	u, ok := s.lookupUpload(w, r)
	if !ok {
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	table, ok := s.resolveSheet(w, r, u, req.Sheet)
	if !ok {
		return
	}

	urlColumn := req.URLColumn
	if urlColumn == "" {
		urlColumn = classify.Suggest(table)
		if urlColumn == "" {
			writeError(w, r, http.StatusBadRequest, "url_column is required; no column looks like URLs")
			return
		}
	}

	if len(req.FilenameColumns) == 0 {
		writeError(w, r, http.StatusBadRequest, "filename_columns is required")
		return
	}

	separator := req.Separator
	if separator == "" {
		separator = "_"
	}

	nameSpec := naming.Spec{
		Columns:       req.FilenameColumns,
		Separator:     separator,
		CollapseEmpty: req.CollapseEmpty,
	}
	qrSpec := req.QR.apply(qr.DefaultSpec())

	outcome, err := s.pipeline.Run(r.Context(), table, urlColumn, nameSpec, qrSpec)
	if err != nil {
		badRequest(w, r, err)
		return
	}

	arch, err := archive.Assemble(outcome)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	run := &Run{
		ID:       id,
		UploadID: u.ID,
		Outcome:  outcome,
		Archive:  arch,
		Created:  time.Now(),
	}
	s.store.PutRun(run)

	s.recordHistory(r, u, table.Sheet, urlColumn, outcome)

	logging.FromContext(r.Context()).Info("generation finished",
		"run_id", run.ID,
		"upload_id", u.ID,
		"sheet", table.Sheet,
		"succeeded", outcome.Succeeded,
		"failed", outcome.Failed,
		"duration", outcome.Duration,
	)

	writeJSON(w, http.StatusCreated, runToResponse(run))
}

// recordHistory persists a run summary when a database is configured.
// Recording failures are logged, never surfaced to the client.
func (s *Server) recordHistory(r *http.Request, u *Upload, sheet, urlColumn string, outcome *batch.Outcome) {
	if s.history == nil {
		return
	}
	_, err := s.history.Record(r.Context(), history.RunRecord{
		FileName:   u.FileName,
		Sheet:      sheet,
		URLColumn:  urlColumn,
		TotalRows:  len(outcome.Results),
		Succeeded:  outcome.Succeeded,
		Failed:     outcome.Failed,
		DurationMS: outcome.Duration.Milliseconds(),
	})
	if err != nil {
		logging.FromContext(r.Context()).Error("recording run history", "error", err)
	}
}

// lookupRun resolves the {runID} URL parameter.
func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (*Run, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid run id")
		return nil, false
	}
	run, ok := s.store.GetRun(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "run not found or expired")
		return nil, false
	}
	return run, true
}

// handleRunDetail returns a run's summary.
func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, runToResponse(run))
}

// handleArchive streams a run's ZIP archive.
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="qr_codes.zip"`)
	w.WriteHeader(http.StatusOK)
	w.Write(run.Archive.Data)
}

// handleRunImage returns one generated PNG by its archive filename.
func (s *Server) handleRunImage(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	name := chi.URLParam(r, "name")
	img, ok := run.Outcome.Image(name)
	if !ok {
		writeError(w, r, http.StatusNotFound, fmt.Sprintf("image %q not found in run", name))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

// historyResponse is the body for the history endpoint.
type historyResponse struct {
	Enabled bool                `json:"enabled"`
	Runs    []history.RunRecord `json:"runs"`
}

// handleHistory lists recorded runs, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, historyResponse{Enabled: false, Runs: []history.RunRecord{}})
		return
	}

	runs, err := s.history.Recent(r.Context(), 50)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []history.RunRecord{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Enabled: true, Runs: runs})
}
