package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/salesunifier/internal/config"
	"github.com/JonMunkholm/salesunifier/internal/core"
	"github.com/JonMunkholm/salesunifier/internal/sheet"
	"github.com/JonMunkholm/salesunifier/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

// Korean headers map onto canonical fields.
var koreanHeaders = map[string]string{
	"날짜":  "date",
	"제품명": "product_name",
	"수량":  "quantity",
	"단가":  "unit_price",
	"총액":  "total_amount",
}

type mapTranslator struct{}

func (mapTranslator) Translate(_ context.Context, headers []string) (core.HeaderMapping, error) {
	return core.BuildHeaderMapping(headers, koreanHeaders), nil
}

// fillRepairer supplies a product name and recomputes the total.
type fillRepairer struct {
	err error
}

func (f fillRepairer) Repair(_ context.Context, rec *core.Record) (*core.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := rec.Clone()
	out.ValidationErrors = nil
	if !out.Has("product_name") {
		out.Set("product_name", "Unknown product")
	}
	out.Set("total_amount", 20.0)
	return out, nil
}

type stubHistory struct {
	fixes []store.StoredFix
	err   error
}

func (s stubHistory) Recent(context.Context, int) ([]store.StoredFix, error) {
	return s.fixes, s.err
}

const salesCSV = "날짜,제품명,수량,단가,총액\n" +
	"2024-03-15,Widget,2,10,20\n" +
	"2024/03/16,,2,10,20\n" +
	"15.03.2024,Gadget,2,10,25\n"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second, OperationTimeout: 5 * time.Second},
		Upload: config.UploadConfig{MaxFileSize: 1 << 16, MaxFiles: 2},
	}
}

func newTestServer(t *testing.T, repairer core.RecordRepairer, opts ...Option) *Server {
	t.Helper()
	p, err := core.NewPipeline(core.PipelineDeps{
		Reader:     sheet.NewReader(0),
		Translator: mapTranslator{},
		Repairer:   repairer,
		Gate:       core.NewOperationGate(50 * time.Millisecond),
		Metrics:    core.NewMetrics(prometheus.NewRegistry()),
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	s := NewServer(p, testConfig(), opts...)
	s.now = func() time.Time { return time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC) }
	return s
}

func uploadRequest(t *testing.T, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		part.Write([]byte(content))
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/files", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestProcessFiles(t *testing.T) {
	s := newTestServer(t, fillRepairer{})

	rec := serve(s, uploadRequest(t, map[string]string{"march.csv": salesCSV}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	report := decode[core.ProcessReport](t, rec)
	if len(report.Files) != 1 || report.Files[0].Rows != 3 {
		t.Fatalf("files = %+v", report.Files)
	}
	if report.Counts.Consolidated != 1 || report.Counts.Exceptions != 2 {
		t.Errorf("counts = %+v, want 1 consolidated, 2 exceptions", report.Counts)
	}
}

func TestProcessFiles_UnsupportedFileIsReported(t *testing.T) {
	s := newTestServer(t, fillRepairer{})

	rec := serve(s, uploadRequest(t, map[string]string{"notes.txt": "hello"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	report := decode[core.ProcessReport](t, rec)
	if report.Files[0].Code != "FILE002" {
		t.Errorf("file code = %q, want FILE002", report.Files[0].Code)
	}
	if len(report.Notices) != 1 || !strings.HasPrefix(report.Notices[0], "Error processing notes.txt") {
		t.Errorf("notices = %v", report.Notices)
	}
}

func TestProcessFiles_RequestErrors(t *testing.T) {
	tests := []struct {
		name       string
		files      map[string]string
		wantStatus int
		wantCode   string
	}{
		{"no files", map[string]string{}, http.StatusBadRequest, "FILE005"},
		{"too many files", map[string]string{"a.csv": "x", "b.csv": "x", "c.csv": "x"}, http.StatusBadRequest, "FILE006"},
		{"file too large", map[string]string{"big.csv": strings.Repeat("x", 1<<16+1)}, http.StatusRequestEntityTooLarge, "FILE003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, fillRepairer{})
			rec := serve(s, uploadRequest(t, tt.files))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			resp := decode[ErrorResponse](t, rec)
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestFixException(t *testing.T) {
	s := newTestServer(t, fillRepairer{})
	serve(s, uploadRequest(t, map[string]string{"march.csv": salesCSV}))

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/exceptions/1/fix", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Fix struct {
			ID      string             `json:"id"`
			Changes []core.FieldChange `json:"changes"`
		} `json:"fix"`
		Counts core.Counts `json:"counts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Counts.Exceptions != 1 || resp.Counts.FixHistory != 1 {
		t.Errorf("counts = %+v", resp.Counts)
	}
	if len(resp.Fix.Changes) != 1 || resp.Fix.Changes[0].Field != "total_amount" {
		t.Errorf("changes = %+v, want total_amount only", resp.Fix.Changes)
	}
}

func TestFixException_BadIndex(t *testing.T) {
	s := newTestServer(t, fillRepairer{})

	for _, path := range []string{"/api/exceptions/0/fix", "/api/exceptions/abc/fix"} {
		rec := serve(s, httptest.NewRequest(http.MethodPost, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, rec.Code)
		}
		if resp := decode[ErrorResponse](t, rec); resp.Code != "LED001" {
			t.Errorf("%s: code = %q, want LED001", path, resp.Code)
		}
	}
}

func TestFixException_AssistantDown(t *testing.T) {
	s := newTestServer(t, fillRepairer{err: core.ErrAssistantUnavailable})
	serve(s, uploadRequest(t, map[string]string{"march.csv": salesCSV}))

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/exceptions/0/fix", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if got := s.pipeline.Ledger().Counts().Exceptions; got != 2 {
		t.Errorf("exceptions = %d, want 2 (unchanged)", got)
	}
}

func TestFixAll(t *testing.T) {
	s := newTestServer(t, fillRepairer{})
	serve(s, uploadRequest(t, map[string]string{"march.csv": salesCSV}))

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/exceptions/fix-all", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	resp := decode[bulkFixResponse](t, rec)
	if resp.Message != "Successfully fixed all 2 records! Exception section cleared." {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.Counts.Consolidated != 3 || resp.Counts.Exceptions != 0 {
		t.Errorf("counts = %+v", resp.Counts)
	}
}

func TestFixAll_Busy(t *testing.T) {
	s := newTestServer(t, fillRepairer{})
	gate := core.NewOperationGate(10 * time.Millisecond)
	p, err := core.NewPipeline(core.PipelineDeps{
		Reader:     sheet.NewReader(0),
		Translator: mapTranslator{},
		Repairer:   fillRepairer{},
		Gate:       gate,
		Metrics:    core.NewMetrics(nil),
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	s.pipeline = p

	if !gate.TryAcquire("process_files") {
		t.Fatal("TryAcquire failed")
	}
	defer gate.Release()

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/exceptions/fix-all", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if resp := decode[ErrorResponse](t, rec); resp.Code != "LED002" {
		t.Errorf("code = %q, want LED002", resp.Code)
	}
}

func TestExport(t *testing.T) {
	s := newTestServer(t, fillRepairer{})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/export/consolidated", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("empty export status = %d, want 404", rec.Code)
	}
	if resp := decode[ErrorResponse](t, rec); resp.Code != "EXP001" {
		t.Errorf("code = %q, want EXP001", resp.Code)
	}

	serve(s, uploadRequest(t, map[string]string{"march.csv": salesCSV}))
	serve(s, httptest.NewRequest(http.MethodPost, "/api/exceptions/fix-all", nil))

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/export/consolidated", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="consolidated_sales_data_2024-03-20.csv"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 4 {
		t.Errorf("got %d lines, want header + 3 rows:\n%s", len(lines), rec.Body.String())
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/export/fix-history", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("fix history status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"SUMMARY"`) || !strings.Contains(rec.Body.String(), `"FIELD_CHANGE"`) {
		t.Errorf("fix history export missing row kinds:\n%s", rec.Body.String())
	}
}

func TestStatusAndLists(t *testing.T) {
	s := newTestServer(t, fillRepairer{})
	serve(s, uploadRequest(t, map[string]string{"march.csv": salesCSV}))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	status := decode[statusResponse](t, rec)
	if status.Counts.Exceptions != 2 || status.Gate.Busy {
		t.Errorf("status = %+v", status)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/exceptions", nil))
	var list struct {
		Count   int              `json:"count"`
		Records []map[string]any `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Count != 2 || list.Records[0]["_source_file"] != "march.csv" {
		t.Errorf("exceptions = %+v", list)
	}
	if _, ok := list.Records[0]["_validation_errors"]; !ok {
		t.Error("exception records should include _validation_errors")
	}
}

func TestStoredHistory(t *testing.T) {
	disabled := newTestServer(t, fillRepairer{})
	rec := serve(disabled, httptest.NewRequest(http.MethodGet, "/api/fix-history/stored", nil))
	if !strings.Contains(rec.Body.String(), `"enabled":false`) {
		t.Errorf("disabled body = %s", rec.Body.String())
	}

	enabled := newTestServer(t, fillRepairer{}, WithStoredHistory(stubHistory{
		fixes: []store.StoredFix{{ID: "f1", SourceFile: "march.csv", ChangesMade: 2}},
	}))
	rec = serve(enabled, httptest.NewRequest(http.MethodGet, "/api/fix-history/stored?limit=5", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"f1"`) {
		t.Errorf("enabled status = %d body = %s", rec.Code, rec.Body.String())
	}

	failing := newTestServer(t, fillRepairer{}, WithStoredHistory(stubHistory{
		err: errors.New("fix history store: query recent: connection refused"),
	}))
	rec = serve(failing, httptest.NewRequest(http.MethodGet, "/api/fix-history/stored", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("failing status = %d, want 500", rec.Code)
	}
}

func TestDashboard(t *testing.T) {
	s := newTestServer(t, fillRepairer{})
	upload := uploadRequest(t, map[string]string{"<script>.csv": salesCSV})
	serve(s, upload)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Exceptions: <strong>2</strong>") {
		t.Errorf("dashboard missing exception count:\n%s", body)
	}
	if strings.Contains(body, "<script>.csv") {
		t.Error("file name should be escaped")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := newTestServer(t, fillRepairer{}, WithGatherer(reg))
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "test_marker_total", Help: "marker"}))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "test_marker_total") {
		t.Errorf("metrics output missing registered counter")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrNoData, http.StatusNotFound},
		{core.ErrPipelineBusy, http.StatusServiceUnavailable},
		{core.ErrAssistantNotConfigured, http.StatusServiceUnavailable},
		{&core.RepairParseError{Err: errors.New("x")}, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
