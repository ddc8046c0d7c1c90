package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/patent-reminders/model"
	"github.com/dhcgn/patent-reminders/scan"
	"github.com/dhcgn/patent-reminders/stats"
	"github.com/dhcgn/patent-reminders/storage"
	"github.com/dhcgn/patent-reminders/store"
)

type fakeScanner struct {
	result scan.Result
	err    error
	opts   []scan.Options
}

func (f *fakeScanner) Scan(_ context.Context, opts scan.Options) (scan.Result, error) {
	f.opts = append(f.opts, opts)
	return f.result, f.err
}

func reminder(appNo string, urgency model.Urgency) model.ReminderRecord {
	return model.ReminderRecord{
		ApplicationNo: appNo,
		Deadline:      time.Date(2025, 9, 29, 0, 0, 0, 0, time.UTC),
		Urgency:       urgency,
		FilePath:      "inbox/" + appNo + ".eml",
	}
}

type testServer struct {
	server  *Server
	scanner *fakeScanner
	status  *store.SQLiteStore
	files   *storage.Store
	reg     *prometheus.Registry
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	status, err := store.Open(filepath.Join(dir, "status.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { status.Close() })

	files, err := storage.New(filepath.Join(dir, "files"))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	stats.NewMetrics(reg).ObserveScan(stats.Summary{Reminders: 2}, time.Second)

	scanner := &fakeScanner{result: scan.Result{
		Reminders: []model.ReminderRecord{
			reminder("202310123456.7", model.UrgencyOverdue),
			reminder("202320654321.0", model.UrgencyUrgent),
			reminder("202330000000.1", model.UrgencyNormal),
		},
		Certificates: []model.CertificateRecord{{PatentNo: "ZL202310123456.7"}},
	}}

	server, err := NewServer(scanner, status, files, reg, nil, nil)
	require.NoError(t, err)
	return &testServer{server: server, scanner: scanner, status: status, files: files, reg: reg}
}

func (ts *testServer) do(t *testing.T, method, target string, body any) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)

	var resp Response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestNewServer(t *testing.T) {
	t.Run("requires scanner", func(t *testing.T) {
		_, err := NewServer(nil, nil, nil, nil, nil, nil)
		assert.ErrorContains(t, err, "scanner cannot be nil")
	})

	t.Run("requires status store", func(t *testing.T) {
		_, err := NewServer(&fakeScanner{}, nil, nil, nil, nil, nil)
		assert.ErrorContains(t, err, "status store cannot be nil")
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		ts := setupTestServer(t)
		assert.Equal(t, "127.0.0.1:5000", ts.server.config.Listen)
	})
}

func TestHandleHealth(t *testing.T) {
	ts := setupTestServer(t)

	rec, _ := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleReminders(t *testing.T) {
	ts := setupTestServer(t)

	rec, resp := ts.do(t, http.MethodGet, "/api/patent-examination-reminders", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Count)
	assert.Equal(t, 3, *resp.Count)
	assert.False(t, ts.scanner.opts[0].IncludeCompleted)

	_, _ = ts.do(t, http.MethodGet, "/api/patent-examination-reminders?include_completed=true", nil)
	assert.True(t, ts.scanner.opts[1].IncludeCompleted)

	rec, resp = ts.do(t, http.MethodGet, "/api/patent-examination-reminders?include_completed=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestHandleEmptyLists(t *testing.T) {
	ts := setupTestServer(t)

	for _, target := range []string{"/api/patent-invoices", "/api/software-notices"} {
		rec, resp := ts.do(t, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusOK, rec.Code, target)
		require.NotNil(t, resp.Count, target)
		assert.Equal(t, 0, *resp.Count, target)
		assert.Contains(t, rec.Body.String(), `"data":[]`, target)
	}

	rec, resp := ts.do(t, http.MethodGet, "/api/patent-certificates", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, *resp.Count)
}

func TestHandleScanFailure(t *testing.T) {
	ts := setupTestServer(t)
	ts.scanner.err = errors.New("walk source: permission denied")

	rec, resp := ts.do(t, http.MethodGet, "/api/patent-certificates", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "scan failed", resp.Error)
}

func TestCompletionFlow(t *testing.T) {
	ts := setupTestServer(t)
	key := CompleteRequest{ApplicationNo: "202310123456.7", FilePath: "inbox/a.eml", Subject: "s", Deadline: "2025-09-29"}

	rec, resp := ts.do(t, http.MethodPost, "/api/reminders/complete", key)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	done, err := ts.status.IsCompleted(context.Background(), key.ApplicationNo, key.FilePath)
	require.NoError(t, err)
	assert.True(t, done)

	rec, _ = ts.do(t, http.MethodGet, "/api/completion-stats", nil)
	assert.JSONEq(t, `{"success":true,"data":{"total":1,"completed":1,"pending":0}}`, rec.Body.String())

	rec, _ = ts.do(t, http.MethodPost, "/api/reminders/uncomplete", CompleteRequest{ApplicationNo: key.ApplicationNo, FilePath: key.FilePath})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = ts.do(t, http.MethodPost, "/api/reminders/uncomplete", CompleteRequest{ApplicationNo: "none", FilePath: "none"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no completion record", resp.Error)

	rec, _ = ts.do(t, http.MethodPost, "/api/reminders/complete", CompleteRequest{ApplicationNo: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStats(t *testing.T) {
	ts := setupTestServer(t)
	_, err := ts.status.MarkCompleted(context.Background(), "a", "b", "", "")
	require.NoError(t, err)

	rec, _ := ts.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data StatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, StatsResponse{
		Total: 3, Overdue: 1, Urgent: 1, Normal: 1, Certificates: 1,
		Completion: store.Stats{Total: 1, Completed: 1},
	}, body.Data)
}

func TestHandleDownload(t *testing.T) {
	ts := setupTestServer(t)
	saved, err := ts.files.Save("专利证书.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)

	rec, _ := ts.do(t, http.MethodGet, "/download/"+saved.Ref, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-1.4", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	outside := filepath.Join(filepath.Dir(ts.files.Root()), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))

	rec, _ = ts.do(t, http.MethodGet, "/download/..%2Fsecret.txt", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/download/missing.pdf", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	rec, _ := ts.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `patent_reminders_last_scan_records{kind="reminders"} 2`)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "专利证书.pdf", displayName("6f1b6c1e-9a43-4c55-8b7e-2d4a1f0c9e21_专利证书.pdf"))
	assert.Equal(t, "plain.pdf", displayName("plain.pdf"))
}
