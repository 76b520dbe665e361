package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/titlenorm/internal/config"
	"github.com/hyperjump/titlenorm/internal/indexstore"
	"github.com/hyperjump/titlenorm/internal/metrics"
	"github.com/hyperjump/titlenorm/internal/models"
	"github.com/hyperjump/titlenorm/internal/storage"
	"github.com/hyperjump/titlenorm/pkg/standardizer"
)

type testEnv struct {
	srv     *Server
	handler http.Handler
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T, withHistory bool) *testEnv {
	t.Helper()
	dir := t.TempDir()
	m := metrics.New()
	opts := standardizer.Options{
		IndexPath: filepath.Join(dir, "index.bin"),
		CacheSize: 64,
		Logger:    zap.NewNop(),
		Metrics:   m,
	}
	if withHistory {
		h, err := storage.NewSQLiteHistory(filepath.Join(dir, "history.db"))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { h.Close() })
		opts.History = h
	}
	srv := NewServer(standardizer.New(opts), m, &config.ServerConfig{Port: 8080}, zap.NewNop())
	return &testEnv{srv: srv, handler: srv.Router(), metrics: m}
}

func (e *testEnv) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v\n%s", err, w.Body.String())
	}
}

func TestHandleMatch(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, http.MethodPost, "/api/v1/match", models.MatchRequest{
		Queries: []string{"Sr Software Engineer", "DBA"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var resp models.MatchResponse
	decode(t, w, &resp)
	if len(resp.Results) != 2 {
		t.Fatalf("results: %+v", resp.Results)
	}
	if resp.Results[0].Classification != "Software Developers" {
		t.Errorf("results[0] = %+v", resp.Results[0])
	}
	if resp.Results[1].Title != "DBA" || resp.Results[1].Code != "15-1242" {
		t.Errorf("results[1] = %+v", resp.Results[1])
	}
	if resp.RunID != "" {
		t.Errorf("unexpected run id %q", resp.RunID)
	}
}

func TestHandleMatch_BadRequests(t *testing.T) {
	env := newTestEnv(t, false)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/match", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid body: got %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/v1/match", models.MatchRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty queries: got %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/v1/match", models.MatchRequest{Queries: []string{"x"}, Record: true})
	if w.Code != http.StatusNotImplemented {
		t.Errorf("record without history: got %d", w.Code)
	}
}

func TestHandleMatchFile(t *testing.T) {
	env := newTestEnv(t, false)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "titles.txt")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("Truck Driver\n\nStaff Nurse\n"))
	mw.Close()

	r := httptest.NewRequest(http.MethodPost, "/api/v1/match/file", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var resp models.MatchResponse
	decode(t, w, &resp)
	if len(resp.Results) != 2 || resp.Results[0].Title != "Truck Driver" || resp.Results[1].Title != "Staff Nurse" {
		t.Errorf("results: %+v", resp.Results)
	}
}

func TestHandleMatchFile_MissingFile(t *testing.T) {
	env := newTestEnv(t, false)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/match/file", strings.NewReader(""))
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleMatchFile_TooLarge(t *testing.T) {
	env := newTestEnv(t, false)
	env.srv.maxUpload = 64

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "titles.txt")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(strings.Repeat("Truck Driver\n", 20)))
	mw.Close()

	r := httptest.NewRequest(http.MethodPost, "/api/v1/match/file", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	decode(t, w, &resp)
	if !strings.Contains(resp["error"], "exceeds 64 bytes") {
		t.Errorf("error: %q", resp["error"])
	}
}

func TestHandleMatch_CatalogUnavailable(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "titles.json")
	if err := os.WriteFile(catalogPath, []byte(`{"not": "a list"}`), 0644); err != nil {
		t.Fatal(err)
	}
	std := standardizer.New(standardizer.Options{
		CatalogPath: catalogPath,
		IndexPath:   filepath.Join(dir, "index.bin"),
		Logger:      zap.NewNop(),
	})
	handler := NewServer(std, nil, &config.ServerConfig{Port: 8080}, zap.NewNop()).Router()

	for _, target := range []string{"/api/v1/match", "/api/v1/standardize", "/api/v1/index/reload"} {
		var buf bytes.Buffer
		json.NewEncoder(&buf).Encode(models.MatchRequest{Queries: []string{"Nurse"}})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, target, &buf))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status got %d, want 503", target, w.Code)
		}
	}
}

func TestStatusFor(t *testing.T) {
	if got := statusFor(fmt.Errorf("load: %w", indexstore.ErrCorruptIndex)); got != http.StatusServiceUnavailable {
		t.Errorf("corrupt index: got %d", got)
	}
	if got := statusFor(errors.New("disk full")); got != http.StatusInternalServerError {
		t.Errorf("other error: got %d", got)
	}
}

func TestHandleStandardize(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, http.MethodPost, "/api/v1/standardize", models.MatchRequest{Queries: []string{"Internal Auditor"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var resp models.StandardizeResponse
	decode(t, w, &resp)
	if len(resp.Values) != 1 || resp.Values[0] != "Internal Auditor - Accountants and Auditors" {
		t.Errorf("values: %v", resp.Values)
	}
}

func TestHandleLookup(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodGet, "/api/v1/lookup?title=Charge+Nurse", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var resp models.LookupResponse
	decode(t, w, &resp)
	if !resp.Known || resp.Classification != "Registered Nurses" || resp.Code != "29-1141" {
		t.Errorf("lookup: %+v", resp)
	}

	w = env.do(t, http.MethodGet, "/api/v1/lookup?title=Wizard", nil)
	decode(t, w, &resp)
	if resp.Known || resp.Classification != "Wizard" {
		t.Errorf("unknown lookup: %+v", resp)
	}

	w = env.do(t, http.MethodGet, "/api/v1/lookup?title=Charge+Nurze", nil)
	var typo models.LookupResponse
	decode(t, w, &typo)
	if typo.Known || len(typo.DidYouMean) == 0 || typo.DidYouMean[0] != "Charge Nurse" {
		t.Errorf("misspelled lookup: %+v", typo)
	}

	w = env.do(t, http.MethodGet, "/api/v1/lookup", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing title: got %d", w.Code)
	}
}

func TestHandleReloadAndStatus(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodGet, "/api/v1/status", nil)
	var st models.IndexStatus
	decode(t, w, &st)
	if st.Loaded {
		t.Errorf("index loaded before first use: %+v", st)
	}

	w = env.do(t, http.MethodPost, "/api/v1/index/reload", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reload: got %d, body %s", w.Code, w.Body.String())
	}
	decode(t, w, &st)
	if !st.Loaded || st.Documents == 0 || st.Fingerprint == "" {
		t.Errorf("status after reload: %+v", st)
	}

	w = env.do(t, http.MethodPost, "/api/v1/index/reload?force=true", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("forced reload: got %d", w.Code)
	}
}

func TestHandleRuns(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.do(t, http.MethodPost, "/api/v1/match", models.MatchRequest{
		Queries: []string{"RN", "Long Haul Driver"},
		Record:  true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("match: got %d, body %s", w.Code, w.Body.String())
	}
	var mresp models.MatchResponse
	decode(t, w, &mresp)
	if mresp.RunID == "" {
		t.Fatal("expected a run id")
	}

	w = env.do(t, http.MethodGet, "/api/v1/runs", nil)
	var list models.RunList
	decode(t, w, &list)
	if list.Total != 1 || len(list.Runs) != 1 || list.Runs[0].ID != mresp.RunID || list.Runs[0].Source != "api" {
		t.Errorf("runs: %+v", list)
	}

	w = env.do(t, http.MethodGet, "/api/v1/runs/"+mresp.RunID, nil)
	var run models.MatchRun
	decode(t, w, &run)
	if len(run.Results) != 2 || run.Results[1].Title != "Long Haul Driver" {
		t.Errorf("run: %+v", run)
	}

	w = env.do(t, http.MethodGet, "/api/v1/runs?limit=0", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("limit=0: got %d", w.Code)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/runs/"+mresp.RunID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("delete: got %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/v1/runs/"+mresp.RunID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get deleted run: got %d", w.Code)
	}
	w = env.do(t, http.MethodDelete, "/api/v1/runs/"+mresp.RunID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("delete twice: got %d", w.Code)
	}
}

func TestHandleRuns_NotEnabled(t *testing.T) {
	env := newTestEnv(t, false)
	for _, target := range []string{"/api/v1/runs", "/api/v1/runs/abc"} {
		w := env.do(t, http.MethodGet, target, nil)
		if w.Code != http.StatusNotImplemented {
			t.Errorf("%s: got %d, want 501", target, w.Code)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health: got %d", w.Code)
	}
	env.do(t, http.MethodPost, "/api/v1/match", models.MatchRequest{Queries: []string{"x"}})

	w = env.do(t, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`titlenorm_http_requests_total{method="GET",route="/health",status="200"} 1`,
		`route="/api/v1/match"`,
		"titlenorm_queries_matched_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestServerStop_NotStarted(t *testing.T) {
	env := newTestEnv(t, false)
	if err := env.srv.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
