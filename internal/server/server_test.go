package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iksnae/tablestream/internal"
	"github.com/iksnae/tablestream/testutil"
)

func newTestServer(t *testing.T, rows int) (*Server, *internal.Registry) {
	t.Helper()
	cfg := internal.DefaultConfig()
	cfg.Stream.ChunkSize = 10
	store := testutil.LoadedStore(t, rows)
	registry := internal.NewRegistry(cfg.Session.TTL, nil)
	t.Cleanup(registry.Close)

	srv, err := NewServer(cfg, store, registry)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv, registry
}

func postQuery(t *testing.T, srv *Server, path, sessionID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	return w
}

// sseEvent is a decoded protocol event with its payload left raw
type sseEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	for _, frame := range strings.Split(body, "\n\n") {
		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}
		if !strings.HasPrefix(frame, "data: ") {
			t.Fatalf("malformed SSE frame: %q", frame)
		}
		var ev sseEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &ev); err != nil {
			t.Fatalf("Failed to decode event %q: %v", frame, err)
		}
		events = append(events, ev)
	}
	return events
}

func eventTypes(events []sseEvent) []string {
	types := make([]string, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func TestServer_QueryStream(t *testing.T) {
	srv, _ := newTestServer(t, 25)

	w := postQuery(t, srv, "/mcp", "", map[string]string{"sql": "SELECT * FROM employees ORDER BY id"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	if w.Header().Get("Mcp-Session-Id") == "" {
		t.Error("session id header missing from response")
	}

	events := parseSSE(t, w.Body.String())
	want := []string{"query_start", "data_chunk", "data_chunk", "data_chunk", "query_complete"}
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("event types = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event types = %v, want %v", got, want)
		}
	}

	var start struct {
		Query   string   `json:"query"`
		Columns []string `json:"columns"`
	}
	if err := json.Unmarshal(events[0].Data, &start); err != nil {
		t.Fatalf("Failed to decode start data: %v", err)
	}
	if len(start.Columns) != 9 {
		t.Errorf("start columns = %v, want 9 names", start.Columns)
	}

	var chunks []struct {
		Chunk          []map[string]interface{} `json:"chunk"`
		ChunkNumber    int                      `json:"chunkNumber"`
		RowsInChunk    int                      `json:"rowsInChunk"`
		TotalRowsSoFar int                      `json:"totalRowsSoFar"`
	}
	for _, ev := range events[1:4] {
		var c struct {
			Chunk          []map[string]interface{} `json:"chunk"`
			ChunkNumber    int                      `json:"chunkNumber"`
			RowsInChunk    int                      `json:"rowsInChunk"`
			TotalRowsSoFar int                      `json:"totalRowsSoFar"`
		}
		if err := json.Unmarshal(ev.Data, &c); err != nil {
			t.Fatalf("Failed to decode chunk data: %v", err)
		}
		chunks = append(chunks, c)
	}
	wantSizes := []int{10, 10, 5}
	for i, c := range chunks {
		if c.ChunkNumber != i+1 {
			t.Errorf("chunk %d number = %d", i, c.ChunkNumber)
		}
		if c.RowsInChunk != wantSizes[i] || len(c.Chunk) != wantSizes[i] {
			t.Errorf("chunk %d size = %d (%d rows), want %d", i, c.RowsInChunk, len(c.Chunk), wantSizes[i])
		}
	}
	if chunks[2].TotalRowsSoFar != 25 {
		t.Errorf("final TotalRowsSoFar = %d, want 25", chunks[2].TotalRowsSoFar)
	}

	// Row order survives regrouping
	first := chunks[0].Chunk[0]
	if id, ok := first["id"].(float64); !ok || id != 1 {
		t.Errorf("first row id = %v, want 1", first["id"])
	}

	var complete struct {
		TotalRows   int  `json:"totalRows"`
		TotalChunks int  `json:"totalChunks"`
		Completed   bool `json:"completed"`
	}
	if err := json.Unmarshal(events[4].Data, &complete); err != nil {
		t.Fatalf("Failed to decode complete data: %v", err)
	}
	if complete.TotalRows != 25 || complete.TotalChunks != 3 || !complete.Completed {
		t.Errorf("complete data = %+v", complete)
	}
}

func TestServer_EmptyResult(t *testing.T) {
	srv, _ := newTestServer(t, 5)

	w := postQuery(t, srv, "/mcp", "", map[string]string{"sql": "SELECT * FROM employees WHERE id > 999"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := eventTypes(parseSSE(t, w.Body.String()))
	want := []string{"query_start", "query_complete"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("event types = %v, want %v", got, want)
	}
}

func TestServer_ValidationError(t *testing.T) {
	srv, _ := newTestServer(t, 5)

	tests := []struct {
		name string
		sql  string
	}{
		{name: "not a select", sql: "UPDATE employees SET salary = 0"},
		{name: "denied keyword", sql: "SELECT * FROM employees; DROP TABLE employees"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postQuery(t, srv, "/mcp", "", map[string]string{"sql": tt.sql})
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			events := parseSSE(t, w.Body.String())
			// Rejected before execution: no query_start precedes the error
			if len(events) != 1 || events[0].Type != "query_error" {
				t.Fatalf("event types = %v, want [query_error]", eventTypes(events))
			}
			var data struct {
				Error   bool   `json:"error"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(events[0].Data, &data); err != nil {
				t.Fatalf("Failed to decode error data: %v", err)
			}
			if !data.Error || data.Message == "" {
				t.Errorf("error data = %+v", data)
			}
		})
	}
}

func TestServer_ExecutionError(t *testing.T) {
	srv, _ := newTestServer(t, 5)

	w := postQuery(t, srv, "/mcp", "", map[string]string{"sql": "SELECT * FROM no_such_table"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := eventTypes(parseSSE(t, w.Body.String()))
	// Validation passed, so the sequence opens before the failure
	want := []string{"query_start", "query_error"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("event types = %v, want %v", got, want)
	}
}

func TestServer_BadRequest(t *testing.T) {
	srv, _ := newTestServer(t, 5)

	tests := []struct {
		name string
		body interface{}
	}{
		{name: "missing sql", body: map[string]string{}},
		{name: "negative limit", body: map[string]interface{}{"sql": "SELECT 1", "limit": -1}},
		{name: "limit over maximum", body: map[string]interface{}{"sql": "SELECT 1", "limit": 100001}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postQuery(t, srv, "/mcp", "", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader("{not json"))
		w := httptest.NewRecorder()
		srv.Engine().ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestServer_SessionReuse(t *testing.T) {
	srv, registry := newTestServer(t, 5)

	w1 := postQuery(t, srv, "/mcp", "", map[string]string{"sql": "SELECT id FROM employees"})
	id := w1.Header().Get("Mcp-Session-Id")
	if id == "" {
		t.Fatal("no session id on first response")
	}

	w2 := postQuery(t, srv, "/mcp", id, map[string]string{"sql": "SELECT id FROM employees"})
	if got := w2.Header().Get("Mcp-Session-Id"); got != id {
		t.Errorf("second response session id = %q, want %q", got, id)
	}
	if registry.Len() != 1 {
		t.Errorf("registry has %d sessions, want 1", registry.Len())
	}
}

func TestServer_SessionBusy(t *testing.T) {
	srv, registry := newTestServer(t, 5)

	sess, _ := registry.Resolve("")
	if err := sess.Acquire(func() {}); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer sess.Release()

	w := postQuery(t, srv, "/mcp", sess.ID, map[string]string{"sql": "SELECT id FROM employees"})
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestServer_BufferedMode(t *testing.T) {
	srv, _ := newTestServer(t, 25)

	w := postQuery(t, srv, "/mcp?mode=buffered", "", map[string]string{"sql": "SELECT * FROM employees ORDER BY id"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp struct {
		SessionID string     `json:"sessionId"`
		Events    []sseEvent `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.SessionID == "" {
		t.Error("sessionId missing")
	}
	got := eventTypes(resp.Events)
	want := []string{"query_start", "data_chunk", "data_chunk", "data_chunk", "query_complete"}
	if len(got) != len(want) {
		t.Fatalf("event types = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event types = %v, want %v", got, want)
		}
	}
}

func TestServer_Terminate(t *testing.T) {
	srv, registry := newTestServer(t, 5)

	sess, _ := registry.Resolve("")
	req := httptest.NewRequest(http.MethodDelete, "/mcp/"+sess.ID, nil)
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if registry.Len() != 0 {
		t.Errorf("registry has %d sessions after terminate", registry.Len())
	}
}

func TestServer_TerminateUnknown(t *testing.T) {
	srv, _ := newTestServer(t, 5)

	req := httptest.NewRequest(http.MethodDelete, "/mcp/no-such-session", nil)
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestServer_Health(t *testing.T) {
	srv, registry := newTestServer(t, 5)
	registry.Resolve("")
	registry.Resolve("")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.Sessions != 2 {
		t.Errorf("sessions = %d, want 2", resp.Sessions)
	}
}

func TestServer_Schema(t *testing.T) {
	srv, _ := newTestServer(t, 12)

	req := httptest.NewRequest(http.MethodGet, "/schema", nil)
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Table          string                   `json:"table"`
		Columns        []internal.Column        `json:"columns"`
		SampleRows     []map[string]interface{} `json:"sampleRows"`
		ExampleQueries []string                 `json:"exampleQueries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Table != "employees" {
		t.Errorf("table = %q", resp.Table)
	}
	if len(resp.Columns) != 9 {
		t.Errorf("columns = %d, want 9", len(resp.Columns))
	}
	if len(resp.SampleRows) != 3 {
		t.Errorf("sample rows = %d, want 3", len(resp.SampleRows))
	}
	if len(resp.ExampleQueries) == 0 {
		t.Error("no example queries")
	}
}

func TestServer_LimitApplied(t *testing.T) {
	srv, _ := newTestServer(t, 25)

	w := postQuery(t, srv, "/mcp", "", map[string]interface{}{"sql": "SELECT * FROM employees ORDER BY id", "limit": 7})
	events := parseSSE(t, w.Body.String())
	var complete struct {
		TotalRows int `json:"totalRows"`
	}
	last := events[len(events)-1]
	if last.Type != "query_complete" {
		t.Fatalf("last event = %s", last.Type)
	}
	if err := json.Unmarshal(last.Data, &complete); err != nil {
		t.Fatalf("Failed to decode complete data: %v", err)
	}
	if complete.TotalRows != 7 {
		t.Errorf("TotalRows = %d, want 7", complete.TotalRows)
	}
}

func TestServer_RateLimit(t *testing.T) {
	cfg := internal.DefaultConfig()
	cfg.Server.RateBurst = 2
	cfg.Server.RequestsPerMinute = 1
	store := testutil.LoadedStore(t, 5)
	registry := internal.NewRegistry(cfg.Session.TTL, nil)
	t.Cleanup(registry.Close)
	limited, err := NewServer(cfg, store, registry)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	var rejected bool
	for i := 0; i < 5; i++ {
		w := postQuery(t, limited, "/mcp", "", map[string]string{"sql": "SELECT id FROM employees"})
		if w.Code == http.StatusTooManyRequests {
			rejected = true
			break
		}
	}
	if !rejected {
		t.Error("no request was rate limited after burst exhaustion")
	}
}

func TestServer_ChunkDelayPacing(t *testing.T) {
	cfg := internal.DefaultConfig()
	cfg.Stream.ChunkSize = 5
	cfg.Stream.ChunkDelay = 30 * time.Millisecond
	store := testutil.LoadedStore(t, 15)
	registry := internal.NewRegistry(cfg.Session.TTL, nil)
	t.Cleanup(registry.Close)
	srv, err := NewServer(cfg, store, registry)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	start := time.Now()
	w := postQuery(t, srv, "/mcp", "", map[string]string{"sql": "SELECT * FROM employees"})
	elapsed := time.Since(start)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	// 3 chunks: pacing applies before chunks 2 and 3
	if elapsed < 60*time.Millisecond {
		t.Errorf("streamed 3 paced chunks in %s, want at least 60ms", elapsed)
	}
	if got := len(parseSSE(t, w.Body.String())); got != 5 {
		t.Errorf("got %d events, want 5", got)
	}
}
