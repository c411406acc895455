// Package web serves the read-only status UI and session download/
// delete API over plain net/http: a small threaded HTTP server is all
// the Pi-side retrieval surface needs.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kstaniek/bbsyncer/internal/diskspace"
	"github.com/kstaniek/bbsyncer/internal/logging"
	"github.com/kstaniek/bbsyncer/internal/metrics"
	"github.com/kstaniek/bbsyncer/internal/session"
	syncpkg "github.com/kstaniek/bbsyncer/internal/sync"
)

const sessionsCacheTTL = 10 * time.Second

// captivePaths are probed by phones/laptops to detect a captive portal;
// bbsyncer answers all of them with a redirect to the index page so the
// device's "sign in to network" prompt points somewhere useful.
var captivePaths = []string{
	"/generate_204",
	"/gen_204",
	"/hotspot-detect.html",
	"/library/test/success.html",
	"/connecttest.txt",
	"/ncsi.txt",
}

const captiveHTML = `<!DOCTYPE html><html><head>` +
	`<meta http-equiv="refresh" content="0; url=/">` +
	`<title>Betaflight Blackbox Syncer</title>` +
	`</head><body>` +
	`<p>Redirecting to <a href="/">Blackbox Syncer</a>...</p>` +
	`</body></html>`

// httpError carries an HTTP status code out of a resolver function.
type httpError struct{ code int }

func (e *httpError) Error() string { return fmt.Sprintf("http %d", e.code) }

func httpErr(code int) error { return &httpError{code: code} }

func statusOf(err error) int {
	var he *httpError
	if errors.As(err, &he) {
		return he.code
	}
	return http.StatusInternalServerError
}

// Server serves the bbsyncer web UI and session API for one storage root.
type Server struct {
	storagePath string
	status      *syncpkg.Status
	logger      *slog.Logger

	cacheMu       sync.Mutex
	cacheAt       time.Time
	cacheSessions []session.Session

	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger overrides the package default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer returns a Server over storagePath, reporting sync progress
// from status.
func NewServer(storagePath string, status *syncpkg.Status, opts ...Option) *Server {
	s := &Server{
		storagePath: storagePath,
		status:      status,
		logger:      logging.L(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler builds the route table. Exposed separately from ListenAndServe
// so tests can drive it with httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /sessions", s.handleSessions)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /download/{rest...}", s.handleDownload)
	mux.HandleFunc("DELETE /sessions/{id...}", s.handleDeleteSession)
	for _, p := range captivePaths {
		mux.HandleFunc("GET "+p, s.handleCaptive)
	}
	return withMetrics(mux)
}

// withMetrics records each request's route pattern and status class so
// /metrics shows web traffic shape without needing a log scrape.
func withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.IncHTTPRequest(routeLabel(r.URL.Path), statusClass(rec.status))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// routeLabel collapses path-parameterized routes ("/download/..." and
// "/sessions/...") to a bounded-cardinality label for Prometheus.
func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/download/"):
		return "/download"
	case strings.HasPrefix(path, "/sessions"):
		return "/sessions"
	case path == "/":
		return "/"
	default:
		return path
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// ListenAndServe blocks serving addr until Shutdown is called, treating
// http.ErrServerClosed as a clean exit.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	s.httpServer = srv
	s.logger.Info("starting web server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops a running ListenAndServe call.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.getSessions()
	if err != nil {
		s.logger.Error("failed to list sessions", "error", err)
		writeError(w, http.StatusInternalServerError)
		return
	}
	usedGB, freeGB, err := diskspace.UsedAndFreeGB(s.storagePath)
	if err != nil {
		usedGB, freeGB = 0, 0
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, renderIndex(sessions, usedGB, freeGB))
}

func (s *Server) handleCaptive(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, captiveHTML)
}

// sessionJSON is the wire shape for /sessions, independent of the
// internal session.Session struct so storage-layout details don't leak.
type sessionJSON struct {
	SessionID string           `json:"session_id"`
	FCDir     string           `json:"fc_dir"`
	SessionDir string          `json:"session_dir"`
	BBLPath   string           `json:"bbl_path,omitempty"`
	Manifest  session.Manifest `json:"manifest"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.getSessions()
	if err != nil {
		s.logger.Error("failed to list sessions", "error", err)
		writeError(w, http.StatusInternalServerError)
		return
	}
	out := make([]sessionJSON, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionJSON{
			SessionID:  sess.SessionID,
			FCDir:      sess.FCDir,
			SessionDir: sess.SessionDir,
			BBLPath:    sess.BBLPath,
			Manifest:   sess.Manifest,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Get())
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	rest := r.PathValue("rest")
	sessionID, filename, err := splitDownloadPath(rest)
	if err != nil {
		writeError(w, statusOf(err))
		return
	}
	path, err := resolveSessionFile(s.storagePath, sessionID, filename)
	if err != nil {
		writeError(w, statusOf(err))
		return
	}
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeContent(w, r, filename, info.ModTime(), f)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	path, err := resolveSessionPath(s.storagePath, sessionID)
	if err != nil {
		writeError(w, statusOf(err))
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound)
		return
	}
	if err := os.RemoveAll(path); err != nil {
		s.logger.Error("failed to delete session", "path", path, "error", err)
		writeError(w, http.StatusInternalServerError)
		return
	}
	s.invalidateCache()
	s.logger.Info("deleted session", "path", path)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "session_id": sessionID})
}

func (s *Server) getSessions() ([]session.Session, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheSessions != nil && time.Since(s.cacheAt) < sessionsCacheTTL {
		return s.cacheSessions, nil
	}
	sessions, err := session.ListSessions(s.storagePath)
	if err != nil {
		return nil, err
	}
	s.cacheSessions = sessions
	s.cacheAt = time.Now()
	return sessions, nil
}

func (s *Server) invalidateCache() {
	s.cacheMu.Lock()
	s.cacheAt = time.Time{}
	s.cacheMu.Unlock()
}

// splitDownloadPath splits "<session_id>/<filename>" for the two
// filenames a session ever exposes for download.
func splitDownloadPath(rest string) (sessionID, filename string, err error) {
	for _, name := range []string{session.RawFlashFilename, session.ManifestFilename} {
		if suffix := "/" + name; strings.HasSuffix(rest, suffix) {
			return strings.TrimSuffix(rest, suffix), name, nil
		}
	}
	return "", "", httpErr(http.StatusNotFound)
}

// resolveSessionPath safely resolves a session_id like
// "fc_BTFL_uid-abc/2026-02-26_143012" to a path under storageRoot,
// rejecting anything that isn't exactly two path components or that
// would escape storageRoot.
func resolveSessionPath(storageRoot, sessionID string) (string, error) {
	parts := strings.Split(sessionID, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", httpErr(http.StatusBadRequest)
	}
	for _, p := range parts {
		if strings.Contains(p, "..") {
			return "", httpErr(http.StatusBadRequest)
		}
	}
	candidate := filepath.Join(storageRoot, parts[0], parts[1])

	absRoot, err := filepath.Abs(storageRoot)
	if err != nil {
		return "", httpErr(http.StatusBadRequest)
	}
	absCandidate, err := filepath.Abs(candidate)
	if err != nil {
		return "", httpErr(http.StatusBadRequest)
	}
	rel, err := filepath.Rel(absRoot, absCandidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", httpErr(http.StatusBadRequest)
	}
	return candidate, nil
}

func resolveSessionFile(storageRoot, sessionID, filename string) (string, error) {
	sessionPath, err := resolveSessionPath(storageRoot, sessionID)
	if err != nil {
		return "", err
	}
	filePath := filepath.Join(sessionPath, filename)
	if _, err := os.Stat(filePath); err != nil {
		return "", httpErr(http.StatusNotFound)
	}
	return filePath, nil
}

func writeError(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	fmt.Fprintf(w, "%d Error\n", code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}
