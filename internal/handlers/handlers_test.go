package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/Mohd-sharique79/cell-traceability-system/internal/models"
	"github.com/Mohd-sharique79/cell-traceability-system/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newServer wires the handlers onto a fresh SQLite database, mirroring the
// routes registered in main.
func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "traceability_test.db")
	require.NoError(t, storage.InitDatabase(dsn))
	t.Cleanup(storage.Close)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/kits", KitsHandler)
	mux.HandleFunc("/api/kits/", KitDetailHandler)
	mux.HandleFunc("/api/validation/start", StartSessionHandler)
	mux.HandleFunc("/api/validation/scan", ScanHandler)
	mux.HandleFunc("/api/validation/complete", CompleteSessionHandler)
	mux.HandleFunc("/api/validation/", SessionDetailHandler)
	mux.HandleFunc("/health", HealthHandler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func allocateKit(t *testing.T, srv *httptest.Server, kitSerial string, cells []string) models.AllocateKitResponse {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/kits", models.AllocateKitRequest{
		KitSerialNumber:   kitSerial,
		CellSerialNumbers: cells,
		OperatorName:      "warehouse operator",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out models.AllocateKitResponse
	decodeBody(t, resp, &out)
	return out
}

func startSession(t *testing.T, srv *httptest.Server, kitSerial string) models.StartSessionResponse {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/validation/start", models.StartSessionRequest{
		KitSerialNumber: kitSerial,
		OperatorName:    "manufacturing operator",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out models.StartSessionResponse
	decodeBody(t, resp, &out)
	return out
}

func scanCell(t *testing.T, srv *httptest.Server, sessionID, cellSerial string) models.ScanResponse {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/validation/scan", models.ScanRequest{
		SessionID:        sessionID,
		CellSerialNumber: cellSerial,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out models.ScanResponse
	decodeBody(t, resp, &out)
	return out
}

func TestAllocationAndKitDetail(t *testing.T) {
	srv := newServer(t)

	out := allocateKit(t, srv, "KIT-100", []string{"CELL-A", "CELL-B", "CELL-C"})
	assert.True(t, out.Success)
	assert.Equal(t, "KIT-100", out.KitSerialNumber)
	assert.Equal(t, 3, out.AllocatedCells)
	assert.Greater(t, out.KitID, int64(0))

	resp, err := http.Get(srv.URL + "/api/kits/KIT-100")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var detail models.KitDetail
	decodeBody(t, resp, &detail)
	assert.Equal(t, "KIT-100", detail.Kit.KitSerialNumber)
	assert.Equal(t, models.KitStatusAllocated, detail.Kit.Status)
	assert.Equal(t, []string{"CELL-A", "CELL-B", "CELL-C"}, detail.Cells)
}

func TestAllocationConflictLeavesOriginalIntact(t *testing.T) {
	srv := newServer(t)

	allocateKit(t, srv, "KIT-1", []string{"A", "B", "C"})

	resp := postJSON(t, srv.URL+"/api/kits", models.AllocateKitRequest{
		KitSerialNumber:   "KIT-1",
		CellSerialNumbers: []string{"D", "E"},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// The original three cells remain queryable under KIT-1.
	getResp, err := http.Get(srv.URL + "/api/kits/KIT-1")
	require.NoError(t, err)
	var detail models.KitDetail
	decodeBody(t, getResp, &detail)
	assert.Equal(t, []string{"A", "B", "C"}, detail.Cells)
}

func TestAllocationCellConflictAcrossKits(t *testing.T) {
	srv := newServer(t)

	allocateKit(t, srv, "KIT-1", []string{"A"})

	resp := postJSON(t, srv.URL+"/api/kits", models.AllocateKitRequest{
		KitSerialNumber:   "KIT-2",
		CellSerialNumbers: []string{"B", "A"},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// The rolled-back kit must not exist.
	getResp, err := http.Get(srv.URL + "/api/kits/KIT-2")
	require.NoError(t, err)
	getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestAllocationInvalidInput(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		name string
		req  models.AllocateKitRequest
	}{
		{"empty cell list", models.AllocateKitRequest{KitSerialNumber: "KIT-1"}},
		{"missing kit serial", models.AllocateKitRequest{CellSerialNumbers: []string{"A"}}},
		{"duplicate cells in request", models.AllocateKitRequest{KitSerialNumber: "KIT-1", CellSerialNumbers: []string{"A", "A"}}},
		{"blank cell serial", models.AllocateKitRequest{KitSerialNumber: "KIT-1", CellSerialNumbers: []string{"A", ""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/kits", tt.req)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestListKitsNewestFirst(t *testing.T) {
	srv := newServer(t)

	allocateKit(t, srv, "KIT-OLD", []string{"A"})
	allocateKit(t, srv, "KIT-NEW", []string{"B"})

	resp, err := http.Get(srv.URL + "/api/kits")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var kits []models.Kit
	decodeBody(t, resp, &kits)
	require.Len(t, kits, 2)
	assert.Equal(t, "KIT-NEW", kits[0].KitSerialNumber)
	assert.Equal(t, "KIT-OLD", kits[1].KitSerialNumber)
}

func TestStartSessionUnknownKit(t *testing.T) {
	srv := newServer(t)

	resp := postJSON(t, srv.URL+"/api/validation/start", models.StartSessionRequest{
		KitSerialNumber: "NO-SUCH-KIT",
		OperatorName:    "operator",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStartSessionRequiresOperatorName(t *testing.T) {
	srv := newServer(t)

	allocateKit(t, srv, "KIT-1", []string{"A"})

	resp := postJSON(t, srv.URL+"/api/validation/start", models.StartSessionRequest{
		KitSerialNumber: "KIT-1",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScanUnknownSession(t *testing.T) {
	srv := newServer(t)

	resp := postJSON(t, srv.URL+"/api/validation/scan", models.ScanRequest{
		SessionID:        "not-a-session",
		CellSerialNumber: "CELL-A",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCompleteUnknownSession(t *testing.T) {
	srv := newServer(t)

	resp := postJSON(t, srv.URL+"/api/validation/complete", models.CompleteSessionRequest{
		SessionID: "not-a-session",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestScanAgainstOtherKitsCellIsInvalid(t *testing.T) {
	srv := newServer(t)

	allocateKit(t, srv, "KIT-1", []string{"A"})
	allocateKit(t, srv, "KIT-2", []string{"B"})
	session := startSession(t, srv, "KIT-1")

	// A cell bound to another kit scans invalid, as does an unknown cell.
	out := scanCell(t, srv, session.SessionID, "B")
	assert.False(t, out.IsValid)
	out = scanCell(t, srv, session.SessionID, "Z")
	assert.False(t, out.IsValid)
	out = scanCell(t, srv, session.SessionID, "A")
	assert.True(t, out.IsValid)
	assert.Equal(t, "KIT-1", out.KitSerialNumber)
}

func TestDuplicateScansProduceDuplicateLogEntries(t *testing.T) {
	srv := newServer(t)

	allocateKit(t, srv, "KIT-1", []string{"A"})
	session := startSession(t, srv, "KIT-1")

	scanCell(t, srv, session.SessionID, "A")
	scanCell(t, srv, session.SessionID, "A")

	resp, err := http.Get(srv.URL + "/api/validation/" + session.SessionID)
	require.NoError(t, err)
	var detail models.SessionDetail
	decodeBody(t, resp, &detail)
	require.Len(t, detail.Logs, 2)
	assert.Equal(t, models.ResultValid, detail.Logs[0].ValidationResult)
	assert.Equal(t, models.ResultValid, detail.Logs[1].ValidationResult)
}

func TestCompleteIsIdempotent(t *testing.T) {
	srv := newServer(t)

	allocateKit(t, srv, "KIT-1", []string{"A"})
	session := startSession(t, srv, "KIT-1")

	for i := 0; i < 2; i++ {
		resp := postJSON(t, srv.URL+"/api/validation/complete", models.CompleteSessionRequest{
			SessionID: session.SessionID,
		})
		var out models.CompleteSessionResponse
		decodeBody(t, resp, &out)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, out.Success)
	}
}

// TestEndToEndValidationScenario walks the full operator flow: allocate,
// start, scan a mix of bound and unbound cells, complete, then read back the
// session with its ordered log.
func TestEndToEndValidationScenario(t *testing.T) {
	srv := newServer(t)

	allocateKit(t, srv, "KIT-1", []string{"A", "B", "C"})
	session := startSession(t, srv, "KIT-1")

	assert.True(t, scanCell(t, srv, session.SessionID, "A").IsValid)
	assert.False(t, scanCell(t, srv, session.SessionID, "X").IsValid)
	assert.True(t, scanCell(t, srv, session.SessionID, "B").IsValid)

	resp := postJSON(t, srv.URL+"/api/validation/complete", models.CompleteSessionRequest{
		SessionID: session.SessionID,
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	getResp, err := http.Get(srv.URL + "/api/validation/" + session.SessionID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	var detail models.SessionDetail
	decodeBody(t, getResp, &detail)

	assert.Equal(t, models.SessionCompleted, detail.Session.Status)
	require.NotNil(t, detail.Session.CompletedAt)
	assert.False(t, detail.Session.CompletedAt.Before(detail.Session.StartedAt))

	require.Len(t, detail.Logs, 3)
	assert.Equal(t, "A", detail.Logs[0].CellSerialNumber)
	assert.Equal(t, models.ResultValid, detail.Logs[0].ValidationResult)
	assert.Equal(t, "X", detail.Logs[1].CellSerialNumber)
	assert.Equal(t, models.ResultInvalid, detail.Logs[1].ValidationResult)
	assert.Equal(t, "B", detail.Logs[2].CellSerialNumber)
	assert.Equal(t, models.ResultValid, detail.Logs[2].ValidationResult)
}

func TestSessionDetailNotFound(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/api/validation/not-a-session")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var out map[string]string
	decodeBody(t, resp, &out)
	assert.Equal(t, "healthy", out["status"])
}
