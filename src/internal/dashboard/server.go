// Package dashboard serves the local web UI boundary: a JSON API over
// the scanner and actions, a websocket stream of monitor events, and
// prometheus metrics. It binds to loopback only.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/bemindlab/portscope/src/internal/framework"
	"github.com/bemindlab/portscope/src/internal/monitor"
	"github.com/bemindlab/portscope/src/internal/types"
)

// PortScanner is the read side of the API.
type PortScanner interface {
	ScanPorts(ctx context.Context, start, end int) ([]types.PortInfo, error)
	ScanDevPorts(ctx context.Context) ([]types.PortInfo, error)
	GetPortInfo(ctx context.Context, port int) (*types.PortInfo, error)
}

// ActionRunner is the mutating side of the API.
type ActionRunner interface {
	KillProcess(ctx context.Context, port int, force bool) types.ActionResult
	OpenInBrowser(port int, protocol string) types.ActionResult
}

// clientConn wraps a websocket connection with a write mutex so the
// broadcast loop and the initial-snapshot write never interleave frames.
type clientConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *clientConn) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// The dashboard is a local tool; cross-site websocket hijacking from a
// hostile page is the one realistic attack, so only localhost origins
// (or non-browser clients with no origin) may connect.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return strings.HasPrefix(origin, "http://localhost:") ||
			strings.HasPrefix(origin, "http://127.0.0.1:") ||
			strings.HasPrefix(origin, "https://localhost:") ||
			strings.HasPrefix(origin, "https://127.0.0.1:")
	},
}

// Options configures a dashboard server.
type Options struct {
	// Port to listen on. Zero picks an ephemeral port.
	Port int

	Scanner  PortScanner
	Monitor  *monitor.Monitor
	Actions  ActionRunner
	Detector *framework.Detector
	Log      zerolog.Logger
}

// Server is one dashboard instance.
type Server struct {
	opts    Options
	log     zerolog.Logger
	mux     *http.ServeMux
	httpSrv *http.Server
	metrics *metrics

	// Mutating endpoints share one limiter; a dashboard drives human
	// actions, not bulk process management.
	actionLimiter *rate.Limiter

	clients   map[*clientConn]bool
	clientsMu sync.RWMutex

	stopChan  chan struct{}
	started   bool
	startedMu sync.Mutex

	port int
}

// New creates a dashboard server. Start must be called before it serves.
func New(opts Options) *Server {
	s := &Server{
		opts:          opts,
		log:           opts.Log.With().Str("component", "dashboard").Logger(),
		mux:           http.NewServeMux(),
		metrics:       newMetrics(),
		actionLimiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		clients:       make(map[*clientConn]bool),
		stopChan:      make(chan struct{}),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /api/ports", s.handleListPorts)
	s.mux.HandleFunc("GET /api/ports/{port}", s.handleGetPort)
	s.mux.HandleFunc("POST /api/ports/{port}/kill", s.handleKill)
	s.mux.HandleFunc("POST /api/ports/{port}/open", s.handleOpen)
	s.mux.HandleFunc("POST /api/monitor/start", s.handleMonitorStart)
	s.mux.HandleFunc("POST /api/monitor/stop", s.handleMonitorStop)
	s.mux.HandleFunc("GET /api/monitor/status", s.handleMonitorStatus)
	s.mux.HandleFunc("GET /api/ws", s.handleWebSocket)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("/", s.handleIndex)
}

// Start binds the listener and begins serving in the background. It
// returns the dashboard URL.
func (s *Server) Start() (string, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", s.opts.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to bind dashboard on %s: %w", addr, err)
	}
	s.port = listener.Addr().(*net.TCPAddr).Port

	s.httpSrv = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("dashboard server stopped unexpectedly")
		}
	}()
	go s.pumpEvents()

	s.startedMu.Lock()
	s.started = true
	s.startedMu.Unlock()

	url := fmt.Sprintf("http://localhost:%d", s.port)
	s.log.Info().Str("url", url).Msg("dashboard listening")
	return url, nil
}

// Port returns the bound port, valid after Start.
func (s *Server) Port() int {
	return s.port
}

// Stop shuts the server down and disconnects all websocket clients.
// Safe to call multiple times.
func (s *Server) Stop() error {
	s.startedMu.Lock()
	wasStarted := s.started
	s.started = false
	s.startedMu.Unlock()
	if !wasStarted {
		return nil
	}

	close(s.stopChan)

	s.clientsMu.Lock()
	for client := range s.clients {
		client.conn.Close()
	}
	s.clients = make(map[*clientConn]bool)
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

// pumpEvents forwards monitor events to every connected client, with
// framework detection applied at this boundary.
func (s *Server) pumpEvents() {
	if s.opts.Monitor == nil {
		return
	}
	for {
		select {
		case <-s.stopChan:
			return
		case ev, ok := <-s.opts.Monitor.Events():
			if !ok {
				return
			}
			s.metrics.observeEvent(ev)
			s.broadcast(s.eventMessage(ev))
		}
	}
}

func (s *Server) eventMessage(ev monitor.Event) map[string]interface{} {
	msg := map[string]interface{}{"type": string(ev.Type)}
	if ev.Entry != nil {
		entry := *ev.Entry
		if s.opts.Detector != nil {
			entry.Framework = s.opts.Detector.Detect(entry)
		}
		msg["entry"] = entry
	}
	if ev.Err != nil {
		msg["error"] = ev.Err.Error()
	}
	return msg
}

func (s *Server) broadcast(msg map[string]interface{}) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		if err := client.writeJSON(msg); err != nil {
			s.log.Debug().Err(err).Msg("websocket send failed")
		}
	}
}

func (s *Server) enrich(entries []types.PortInfo) []types.PortInfo {
	if s.opts.Detector == nil {
		return entries
	}
	return s.opts.Detector.Enrich(entries)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug().Err(err).Msg("response encoding failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	s.writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

// handleListPorts serves GET /api/ports. Without query parameters it
// scans the development ranges; start and end select an explicit range.
func (s *Server) handleListPorts(w http.ResponseWriter, r *http.Request) {
	s.metrics.scans.Inc()

	var entries []types.PortInfo
	var err error

	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	switch {
	case startStr == "" && endStr == "":
		entries, err = s.opts.Scanner.ScanDevPorts(r.Context())
	case startStr != "" && endStr != "":
		var start, end int
		if start, err = strconv.Atoi(startStr); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid start %q", startStr)
			return
		}
		if end, err = strconv.Atoi(endStr); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid end %q", endStr)
			return
		}
		entries, err = s.opts.Scanner.ScanPorts(r.Context(), start, end)
	default:
		s.writeError(w, http.StatusBadRequest, "start and end must be given together")
		return
	}

	if err != nil {
		if errors.Is(err, types.ErrInvalidRange) {
			s.writeError(w, http.StatusBadRequest, "%v", err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, "scan failed: %v", err)
		return
	}

	entries = s.enrich(entries)
	if entries == nil {
		entries = []types.PortInfo{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) portFromPath(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.PathValue("port")
	port, err := strconv.Atoi(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid port %q", raw)
		return 0, false
	}
	if err := types.ValidatePort(port); err != nil {
		s.writeError(w, http.StatusBadRequest, "%v", err)
		return 0, false
	}
	return port, true
}

// handleGetPort serves GET /api/ports/{port}.
func (s *Server) handleGetPort(w http.ResponseWriter, r *http.Request) {
	port, ok := s.portFromPath(w, r)
	if !ok {
		return
	}

	info, err := s.opts.Scanner.GetPortInfo(r.Context(), port)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "lookup failed: %v", err)
		return
	}
	if info == nil {
		s.writeError(w, http.StatusNotFound, "nothing is listening on port %d", port)
		return
	}

	entry := *info
	if s.opts.Detector != nil {
		entry.Framework = s.opts.Detector.Detect(entry)
	}
	s.writeJSON(w, http.StatusOK, entry)
}

func (s *Server) allowAction(w http.ResponseWriter) bool {
	if !s.actionLimiter.Allow() {
		s.writeError(w, http.StatusTooManyRequests, "too many action requests, slow down")
		return false
	}
	return true
}

// handleKill serves POST /api/ports/{port}/kill. The force query skips
// the graceful termination phase.
func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	port, ok := s.portFromPath(w, r)
	if !ok {
		return
	}
	if !s.allowAction(w) {
		return
	}

	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	res := s.opts.Actions.KillProcess(r.Context(), port, force)
	s.metrics.observeAction("kill", res)

	status := http.StatusOK
	if !res.Success {
		status = http.StatusConflict
	}
	s.writeJSON(w, status, res)
}

// handleOpen serves POST /api/ports/{port}/open. The protocol query
// selects http (default) or https.
func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	port, ok := s.portFromPath(w, r)
	if !ok {
		return
	}
	if !s.allowAction(w) {
		return
	}

	res := s.opts.Actions.OpenInBrowser(port, r.URL.Query().Get("protocol"))
	s.metrics.observeAction("open", res)

	status := http.StatusOK
	if !res.Success {
		status = http.StatusConflict
	}
	s.writeJSON(w, status, res)
}

// monitorStartRequest is the optional JSON body of POST /api/monitor/start.
type monitorStartRequest struct {
	IntervalMS int  `json:"intervalMs"`
	Start      *int `json:"start"`
	End        *int `json:"end"`
}

// handleMonitorStart serves POST /api/monitor/start.
func (s *Server) handleMonitorStart(w http.ResponseWriter, r *http.Request) {
	if s.opts.Monitor == nil {
		s.writeError(w, http.StatusNotImplemented, "monitoring is not enabled")
		return
	}

	// An empty body means defaults.
	var req monitorStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	opts := monitor.Options{Interval: time.Duration(req.IntervalMS) * time.Millisecond}
	if req.Start != nil && req.End != nil {
		opts.Range = &types.PortRange{Start: *req.Start, End: *req.End}
	}

	initial, err := s.opts.Monitor.Start(r.Context(), opts)
	if err != nil {
		if errors.Is(err, types.ErrInvalidInterval) || errors.Is(err, types.ErrInvalidRange) {
			s.writeError(w, http.StatusBadRequest, "%v", err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, "monitor start failed: %v", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"active": true,
		"ports":  s.enrich(initial),
	})
}

// handleMonitorStop serves POST /api/monitor/stop.
func (s *Server) handleMonitorStop(w http.ResponseWriter, r *http.Request) {
	if s.opts.Monitor == nil {
		s.writeError(w, http.StatusNotImplemented, "monitoring is not enabled")
		return
	}
	s.opts.Monitor.Stop()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"active": false})
}

// handleMonitorStatus serves GET /api/monitor/status.
func (s *Server) handleMonitorStatus(w http.ResponseWriter, r *http.Request) {
	if s.opts.Monitor == nil {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"active": false})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"active": s.opts.Monitor.IsActive(),
		"ports":  s.enrich(s.opts.Monitor.Current()),
	})
}

// handleWebSocket serves GET /api/ws: one snapshot message on connect,
// then the live event stream.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade rejected")
		return
	}

	client := &clientConn{conn: conn}

	s.clientsMu.Lock()
	s.clients[client] = true
	s.clientsMu.Unlock()
	s.metrics.clients.Inc()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client)
		s.clientsMu.Unlock()
		s.metrics.clients.Dec()
		conn.Close()
	}()

	var snapshot []types.PortInfo
	if s.opts.Monitor != nil && s.opts.Monitor.IsActive() {
		snapshot = s.opts.Monitor.Current()
	} else if entries, err := s.opts.Scanner.ScanDevPorts(r.Context()); err == nil {
		snapshot = entries
	}

	if err := client.writeJSON(map[string]interface{}{
		"type":  "snapshot",
		"ports": s.enrich(snapshot),
	}); err != nil {
		return
	}

	// Drain client messages until disconnect; the stream is one-way.
	for {
		select {
		case <-s.stopChan:
			return
		default:
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

// handleIndex serves a minimal HTML page pointing at the API. The real
// front-end is out of scope for the CLI binary.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>portscope</title><meta charset="utf-8"></head>
<body style="font-family: system-ui, sans-serif; max-width: 720px; margin: 40px auto;">
<h1>portscope</h1>
<p>Local port monitor. Endpoints:</p>
<ul>
<li><a href="/api/ports">/api/ports</a></li>
<li>/api/ports/{port}</li>
<li>/api/monitor/status</li>
<li>/api/ws (websocket event stream)</li>
<li><a href="/metrics">/metrics</a></li>
</ul>
</body>
</html>`)
}
