package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bemindlab/portscope/src/internal/framework"
	"github.com/bemindlab/portscope/src/internal/monitor"
	"github.com/bemindlab/portscope/src/internal/types"
)

type fakeScanner struct {
	entries []types.PortInfo
	err     error
}

func (f *fakeScanner) ScanDevPorts(_ context.Context) ([]types.PortInfo, error) {
	return f.entries, f.err
}

func (f *fakeScanner) ScanPorts(_ context.Context, start, end int) ([]types.PortInfo, error) {
	if err := types.ValidateRange(start, end); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	var out []types.PortInfo
	for _, e := range f.entries {
		if e.Port >= start && e.Port <= end {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeScanner) GetPortInfo(_ context.Context, port int) (*types.PortInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, e := range f.entries {
		if e.Port == port {
			entry := e
			return &entry, nil
		}
	}
	return nil, nil
}

type fakeActions struct {
	killResult types.ActionResult
	openResult types.ActionResult
	killed     []int
	forced     []bool
	opened     []int
	protocols  []string
}

func (f *fakeActions) KillProcess(_ context.Context, port int, force bool) types.ActionResult {
	f.killed = append(f.killed, port)
	f.forced = append(f.forced, force)
	return f.killResult
}

func (f *fakeActions) OpenInBrowser(port int, protocol string) types.ActionResult {
	f.opened = append(f.opened, port)
	f.protocols = append(f.protocols, protocol)
	return f.openResult
}

func listener(port, pid int, name, cmdline string) types.PortInfo {
	return types.PortInfo{
		Port:        port,
		Protocol:    types.ProtocolTCP,
		PID:         pid,
		ProcessName: name,
		CommandLine: cmdline,
		State:       "LISTEN",
	}
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Detector == nil {
		detector, err := framework.NewDetector()
		require.NoError(t, err)
		opts.Detector = detector
	}
	opts.Log = zerolog.Nop()
	return New(opts)
}

func doRequest(s *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func TestListPorts_DevRanges(t *testing.T) {
	scanner := &fakeScanner{entries: []types.PortInfo{
		listener(3000, 10, "node", "node node_modules/.bin/vite"),
		listener(8000, 20, "python3", "uvicorn app.main:app"),
	}}
	s := newTestServer(t, Options{Scanner: scanner, Actions: &fakeActions{}})

	rec := doRequest(s, http.MethodGet, "/api/ports", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []types.PortInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)

	require.NotNil(t, got[0].Framework)
	assert.Equal(t, "vite", got[0].Framework.Name)
	require.NotNil(t, got[1].Framework)
	assert.Equal(t, "fastapi", got[1].Framework.Name)
}

func TestListPorts_ExplicitRange(t *testing.T) {
	scanner := &fakeScanner{entries: []types.PortInfo{
		listener(3000, 10, "node", ""),
		listener(8000, 20, "python3", ""),
	}}
	s := newTestServer(t, Options{Scanner: scanner, Actions: &fakeActions{}})

	rec := doRequest(s, http.MethodGet, "/api/ports?start=3000&end=3999", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []types.PortInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, 3000, got[0].Port)
}

func TestListPorts_BadRequests(t *testing.T) {
	s := newTestServer(t, Options{Scanner: &fakeScanner{}, Actions: &fakeActions{}})

	tests := []struct {
		name   string
		target string
	}{
		{"start without end", "/api/ports?start=3000"},
		{"non-numeric start", "/api/ports?start=abc&end=9000"},
		{"inverted range", "/api/ports?start=9000&end=3000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodGet, tt.target, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestListPorts_ScanFailure(t *testing.T) {
	scanner := &fakeScanner{err: types.NewOSQueryError("lsof", errors.New("boom"))}
	s := newTestServer(t, Options{Scanner: scanner, Actions: &fakeActions{}})

	rec := doRequest(s, http.MethodGet, "/api/ports", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetPort(t *testing.T) {
	scanner := &fakeScanner{entries: []types.PortInfo{
		listener(3000, 10, "node", "node server.js"),
	}}
	s := newTestServer(t, Options{Scanner: scanner, Actions: &fakeActions{}})

	rec := doRequest(s, http.MethodGet, "/api/ports/3000", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got types.PortInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 3000, got.Port)
	require.NotNil(t, got.Framework)
	assert.Equal(t, "node", got.Framework.Name)

	rec = doRequest(s, http.MethodGet, "/api/ports/3001", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/ports/99999", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/ports/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestKillEndpoint(t *testing.T) {
	actions := &fakeActions{killResult: types.Ok("killed node (pid 10) on port 3000")}
	s := newTestServer(t, Options{Scanner: &fakeScanner{}, Actions: actions})

	rec := doRequest(s, http.MethodPost, "/api/ports/3000/kill", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{3000}, actions.killed)
	assert.Equal(t, []bool{false}, actions.forced)

	var res types.ActionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)

	rec = doRequest(s, http.MethodPost, "/api/ports/3000/kill?force=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []bool{false, true}, actions.forced)
}

func TestKillEndpoint_FailureMapsToConflict(t *testing.T) {
	actions := &fakeActions{killResult: types.Failure("no process is listening on port 3000")}
	s := newTestServer(t, Options{Scanner: &fakeScanner{}, Actions: actions})

	rec := doRequest(s, http.MethodPost, "/api/ports/3000/kill", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestOpenEndpoint(t *testing.T) {
	actions := &fakeActions{openResult: types.Ok("opened http://localhost:3000")}
	s := newTestServer(t, Options{Scanner: &fakeScanner{}, Actions: actions})

	rec := doRequest(s, http.MethodPost, "/api/ports/3000/open", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{3000}, actions.opened)

	rec = doRequest(s, http.MethodPost, "/api/ports/3000/open?protocol=https", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"", "https"}, actions.protocols)
}

func TestActionRateLimit(t *testing.T) {
	actions := &fakeActions{killResult: types.Ok("ok")}
	s := newTestServer(t, Options{Scanner: &fakeScanner{}, Actions: actions})

	limited := 0
	for i := 0; i < 20; i++ {
		rec := doRequest(s, http.MethodPost, "/api/ports/3000/kill", nil)
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Greater(t, limited, 0, "a burst of 20 kill requests should trip the limiter")
	assert.Less(t, len(actions.killed), 20)
}

func TestMonitorEndpoints(t *testing.T) {
	scanner := &fakeScanner{entries: []types.PortInfo{
		listener(3000, 10, "node", "node server.js"),
	}}
	mon := monitor.New(scanner, zerolog.Nop())
	defer mon.Cleanup()

	s := newTestServer(t, Options{Scanner: scanner, Actions: &fakeActions{}, Monitor: mon})

	rec := doRequest(s, http.MethodPost, "/api/monitor/start", []byte(`{"intervalMs": 5000}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var startResp struct {
		Active bool             `json:"active"`
		Ports  []types.PortInfo `json:"ports"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &startResp))
	assert.True(t, startResp.Active)
	require.Len(t, startResp.Ports, 1)
	require.NotNil(t, startResp.Ports[0].Framework)

	rec = doRequest(s, http.MethodGet, "/api/monitor/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"active":true`)

	rec = doRequest(s, http.MethodPost, "/api/monitor/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, mon.IsActive())
}

func TestMonitorStart_BadInterval(t *testing.T) {
	mon := monitor.New(&fakeScanner{}, zerolog.Nop())
	defer mon.Cleanup()

	s := newTestServer(t, Options{Scanner: &fakeScanner{}, Actions: &fakeActions{}, Monitor: mon})

	rec := doRequest(s, http.MethodPost, "/api/monitor/start", []byte(`{"intervalMs": 100}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMonitorStart_NotEnabled(t *testing.T) {
	s := newTestServer(t, Options{Scanner: &fakeScanner{}, Actions: &fakeActions{}})

	rec := doRequest(s, http.MethodPost, "/api/monitor/start", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestWebSocket_SnapshotOnConnect(t *testing.T) {
	scanner := &fakeScanner{entries: []types.PortInfo{
		listener(3000, 10, "node", "node node_modules/.bin/vite"),
	}}
	s := newTestServer(t, Options{Scanner: scanner, Actions: &fakeActions{}})

	ts := httptest.NewServer(s.mux)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{
		"Origin": []string{"http://localhost:3000"},
	})
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg struct {
		Type  string           `json:"type"`
		Ports []types.PortInfo `json:"ports"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "snapshot", msg.Type)
	require.Len(t, msg.Ports, 1)
	require.NotNil(t, msg.Ports[0].Framework)
	assert.Equal(t, "vite", msg.Ports[0].Framework.Name)
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	s := newTestServer(t, Options{Scanner: &fakeScanner{}, Actions: &fakeActions{}})

	ts := httptest.NewServer(s.mux)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{
		"Origin": []string{"http://evil.example.com"},
	})
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}

func TestEventMessage_EnrichesEntries(t *testing.T) {
	s := newTestServer(t, Options{Scanner: &fakeScanner{}, Actions: &fakeActions{}})

	entry := listener(3000, 10, "node", "node node_modules/.bin/vite")
	msg := s.eventMessage(monitor.Event{Type: monitor.EventPortAdded, Entry: &entry})

	assert.Equal(t, "port-added", msg["type"])
	got, ok := msg["entry"].(types.PortInfo)
	require.True(t, ok)
	require.NotNil(t, got.Framework)
	assert.Equal(t, "vite", got.Framework.Name)

	errMsg := s.eventMessage(monitor.Event{Type: monitor.EventMonitorError, Err: errors.New("scan failed")})
	assert.Equal(t, "monitor-error", errMsg["type"])
	assert.Equal(t, "scan failed", errMsg["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, Options{Scanner: &fakeScanner{}, Actions: &fakeActions{}})

	doRequest(s, http.MethodGet, "/api/ports", nil)

	rec := doRequest(s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "portscope_api_scans_total 1")
}
