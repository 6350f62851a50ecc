package web

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/qrsheet/qrsheet/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			IdleTimeout:     time.Second,
			ShutdownTimeout: time.Second,
			RequestTimeout:  30 * time.Second,
		},
		Upload: config.UploadConfig{
			MaxFileSize: 1 << 20,
			SessionTTL:  time.Hour,
		},
		Rate: config.RateLimitConfig{Enabled: false},
		Generate: config.GenerateConfig{
			MaxCollisionAttempts: 10000,
		},
		Logging: config.LoggingConfig{Level: "error", Format: "text"},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(testConfig(), nil)
	t.Cleanup(func() { s.store.Close() })
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling body: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func uploadCSV(t *testing.T, s *Server, name, content string) uploadResponse {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("writing form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding upload response: %v", err)
	}
	return resp
}

const sampleCSV = "url,name\nhttps://example.com/a,first\n,second\nexample.org,first\n"

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSingleQR(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/qr", map[string]any{"url": "example.com"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}
}

func TestSingleQR_EmptyURL(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/qr", map[string]any{"url": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUpload(t *testing.T) {
	s := newTestServer(t)
	resp := uploadCSV(t, s, "links.csv", sampleCSV)

	if resp.UploadID == "" {
		t.Error("upload_id is empty")
	}
	if resp.FileName != "links.csv" {
		t.Errorf("file_name = %q", resp.FileName)
	}
	if len(resp.Sheets) != 1 {
		t.Fatalf("sheets = %d, want 1", len(resp.Sheets))
	}
	sheet := resp.Sheets[0]
	if sheet.Rows != 3 {
		t.Errorf("rows = %d, want 3", sheet.Rows)
	}
	if len(sheet.Columns) != 2 || sheet.Columns[0] != "url" {
		t.Errorf("columns = %v", sheet.Columns)
	}
}

func TestUpload_MissingFile(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(""))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUploadDetail_NotFound(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/upload/018f63a0-0000-7000-8000-000000000000", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestClassify(t *testing.T) {
	s := newTestServer(t)
	up := uploadCSV(t, s, "links.csv", sampleCSV)

	rec := doJSON(t, s, http.MethodGet, "/api/upload/"+up.UploadID+"/classify", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp classifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if resp.Suggested != "url" {
		t.Errorf("suggested = %q, want url", resp.Suggested)
	}
	if len(resp.Scores) != 2 {
		t.Errorf("scores = %d, want 2", len(resp.Scores))
	}
}

func TestGenerateFlow(t *testing.T) {
	s := newTestServer(t)
	up := uploadCSV(t, s, "links.csv", sampleCSV)

	rec := doJSON(t, s, http.MethodPost, "/api/upload/"+up.UploadID+"/generate", map[string]any{
		"url_column":       "url",
		"filename_columns": []string{"name"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("generate status = %d, body = %s", rec.Code, rec.Body)
	}

	var run runResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decoding run: %v", err)
	}
	if run.TotalRows != 3 || run.Succeeded != 2 || run.Failed != 1 {
		t.Fatalf("run summary = %+v", run)
	}
	if len(run.Failures) != 1 || run.Failures[0].Row != 1 {
		t.Errorf("failures = %+v, want the empty-url row", run.Failures)
	}

	// Archive download contains the collision-resolved filenames.
	arcRec := doJSON(t, s, http.MethodGet, "/api/run/"+run.RunID+"/archive", nil)
	if arcRec.Code != http.StatusOK {
		t.Fatalf("archive status = %d", arcRec.Code)
	}
	if ct := arcRec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("archive Content-Type = %q", ct)
	}
	zr, err := zip.NewReader(bytes.NewReader(arcRec.Body.Bytes()), int64(arcRec.Body.Len()))
	if err != nil {
		t.Fatalf("opening archive: %v", err)
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["first.png"] || !names["first-2.png"] {
		t.Errorf("archive entries = %v, want first.png and first-2.png", names)
	}

	// Single image download.
	imgRec := doJSON(t, s, http.MethodGet, "/api/run/"+run.RunID+"/image/first.png", nil)
	if imgRec.Code != http.StatusOK {
		t.Fatalf("image status = %d", imgRec.Code)
	}
	if !bytes.HasPrefix(imgRec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("image body is not a PNG")
	}

	// Run summary stays retrievable.
	sumRec := doJSON(t, s, http.MethodGet, "/api/run/"+run.RunID, nil)
	if sumRec.Code != http.StatusOK {
		t.Fatalf("run detail status = %d", sumRec.Code)
	}
}

func TestSingleAndBatchProduceIdenticalBytes(t *testing.T) {
	s := newTestServer(t)
	up := uploadCSV(t, s, "links.csv", "url,name\nhttps://example.com/a,first\n")

	rec := doJSON(t, s, http.MethodPost, "/api/upload/"+up.UploadID+"/generate", map[string]any{
		"url_column":       "url",
		"filename_columns": []string{"name"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("generate status = %d, body = %s", rec.Code, rec.Body)
	}
	var run runResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decoding run: %v", err)
	}

	imgRec := doJSON(t, s, http.MethodGet, "/api/run/"+run.RunID+"/image/first.png", nil)
	if imgRec.Code != http.StatusOK {
		t.Fatalf("image status = %d", imgRec.Code)
	}

	singleRec := doJSON(t, s, http.MethodPost, "/api/qr", map[string]any{"url": "https://example.com/a"})
	if singleRec.Code != http.StatusOK {
		t.Fatalf("single status = %d", singleRec.Code)
	}

	if !bytes.Equal(imgRec.Body.Bytes(), singleRec.Body.Bytes()) {
		t.Error("single-URL and batch output differ for the same content and settings")
	}
}

func TestGenerate_SuggestsURLColumn(t *testing.T) {
	s := newTestServer(t)
	up := uploadCSV(t, s, "links.csv", sampleCSV)

	rec := doJSON(t, s, http.MethodPost, "/api/upload/"+up.UploadID+"/generate", map[string]any{
		"filename_columns": []string{"name"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s (url column should be auto-suggested)", rec.Code, rec.Body)
	}
}

func TestGenerate_MissingFilenameColumns(t *testing.T) {
	s := newTestServer(t)
	up := uploadCSV(t, s, "links.csv", sampleCSV)

	rec := doJSON(t, s, http.MethodPost, "/api/upload/"+up.UploadID+"/generate", map[string]any{
		"url_column": "url",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGenerate_UnknownSheet(t *testing.T) {
	s := newTestServer(t)
	up := uploadCSV(t, s, "links.csv", sampleCSV)

	rec := doJSON(t, s, http.MethodPost, "/api/upload/"+up.UploadID+"/generate", map[string]any{
		"sheet":            "Nope",
		"url_column":       "url",
		"filename_columns": []string{"name"},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHistory_Disabled(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp historyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if resp.Enabled {
		t.Error("history should report disabled without a database")
	}
}

func TestRunDetail_NotFound(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/run/018f63a0-0000-7000-8000-000000000000", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)

	if !rl.allow("1.2.3.4") || !rl.allow("1.2.3.4") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("1.2.3.4") {
		t.Error("third request within window should be rejected")
	}
	if !rl.allow("5.6.7.8") {
		t.Error("different IP should have its own bucket")
	}
}
