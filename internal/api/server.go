// Package api exposes the capture engine over HTTP: live window
// enumeration, snapshot session lifecycle, and PNG delivery of frozen
// surfaces. A websocket pushes session lifecycle events.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/stillcap/stillcap/internal/capture"
	"github.com/stillcap/stillcap/internal/config"
	"github.com/stillcap/stillcap/internal/logger"
	"github.com/stillcap/stillcap/internal/snapshot"
	"github.com/stillcap/stillcap/internal/xconn"
	"github.com/stillcap/stillcap/internal/xwin"
)

// DisplayInfo reports the connection's identity and which X extensions
// it negotiated; *xconn.Display satisfies it.
type DisplayInfo interface {
	Name() string
	CompositeEnabled() bool
	XFixesEnabled() bool
	RandREnabled() bool
}

// Server is the HTTP API over one display connection.
type Server struct {
	router    *mux.Router
	display   DisplayInfo
	windows   snapshot.WindowLister
	snapshots *snapshot.Manager
	configMgr *config.Manager
	upgrader  websocket.Upgrader

	httpSrv *http.Server
}

// NewServer creates an API server around the snapshot manager.
func NewServer(display DisplayInfo, windows snapshot.WindowLister, snapshots *snapshot.Manager, configMgr *config.Manager) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		display:   display,
		windows:   windows,
		snapshots: snapshots,
		configMgr: configMgr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Live window state
	api.HandleFunc("/windows", s.handleGetWindows).Methods("GET")

	// Snapshot session lifecycle
	api.HandleFunc("/session", s.handleStartSession).Methods("POST")
	api.HandleFunc("/session", s.handleSessionStatus).Methods("GET")
	api.HandleFunc("/session", s.handleEndSession).Methods("DELETE")

	// Frozen surfaces
	api.HandleFunc("/session/desktop.png", s.handleDesktopPNG).Methods("GET")
	api.HandleFunc("/session/area.png", s.handleAreaPNG).Methods("GET")
	api.HandleFunc("/session/window-at.png", s.handleWindowAtPNG).Methods("GET")
	api.HandleFunc("/session/windows/{id}.png", s.handleWindowPNG).Methods("GET")

	// Lifecycle events
	api.HandleFunc("/ws", s.handleEvents)

	// Configuration
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/config", s.handleUpdateConfig).Methods("PUT")

	// Health check
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.PathPrefix("/").HandlerFunc(s.handleIndex)
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpSrv = &http.Server{Addr: addr, Handler: s.Handler()}

	logger.WithComponent("api").Info().Str("addr", addr).Msg("Starting HTTP server")
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HTTP Handlers

func (s *Server) handleGetWindows(w http.ResponseWriter, r *http.Request) {
	windows, err := s.windows.Enumerate()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if r.URL.Query().Get("all") == "" {
		cfg := s.configMgr.Get()
		desk, known := s.windows.CurrentDesktop()
		windows = xwin.FilterForCapture(windows, xwin.FilterOptions{
			MinSize:      cfg.Capture.MinWindowSize,
			Desktop:      desk,
			DesktopKnown: known,
		})
	}

	writeJSON(w, http.StatusOK, windows)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	// The session outlives this request; its captures must not be tied
	// to the request context.
	sess, err := s.snapshots.StartSession(context.Background())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, statusOf(sess))
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, statusOf(sess))
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	s.snapshots.EndSession()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDesktopPNG(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w)
	if !ok {
		return
	}

	surface, err := sess.Desktop(r.Context())
	if err != nil {
		s.surfaceError(w, err, http.StatusInternalServerError)
		return
	}
	s.writePNG(w, r, surface)
}

func (s *Server) handleAreaPNG(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w)
	if !ok {
		return
	}

	rect, err := queryRect(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	surface, err := sess.Area(r.Context(), rect)
	if err != nil {
		s.surfaceError(w, err, http.StatusBadRequest)
		return
	}
	s.writePNG(w, r, surface)
}

func (s *Server) handleWindowAtPNG(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w)
	if !ok {
		return
	}

	x, err := queryInt(r, "x")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	y, err := queryInt(r, "y")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	surface, info, err := sess.WindowAt(r.Context(), x, y)
	if err != nil {
		s.surfaceError(w, err, http.StatusInternalServerError)
		return
	}
	if info != nil {
		w.Header().Set("X-Window-Id", strconv.FormatUint(uint64(info.Handle.ID()), 10))
		w.Header().Set("X-Window-Title", info.Title)
	}
	s.writePNG(w, r, surface)
}

func (s *Server) handleWindowPNG(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w)
	if !ok {
		return
	}

	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		http.Error(w, "invalid window id", http.StatusBadRequest)
		return
	}

	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		s.surfaceError(w, err, http.StatusInternalServerError)
		return
	}
	surface, _, err := snap.Window(uint32(id))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.writePNG(w, r, surface)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithComponent("api").Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	events := s.snapshots.Subscribe()
	defer s.snapshots.Unsubscribe(events)

	// Send the current session state so clients need no initial poll.
	if sess, ok := s.snapshots.Current(); ok {
		if err := conn.WriteJSON(statusOf(sess)); err != nil {
			return
		}
	}

	for event := range events {
		if err := conn.WriteJSON(event); err != nil {
			logger.WithComponent("api").Debug().Err(err).Msg("WebSocket write failed")
			return
		}
	}
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.configMgr.Get()
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg config.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.configMgr.Update(&cfg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"display": s.display.Name(),
		"extensions": map[string]bool{
			"composite": s.display.CompositeEnabled(),
			"xfixes":    s.display.XFixesEnabled(),
			"randr":     s.display.RandREnabled(),
		},
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	html := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>stillcap</title>
    <style>
        body { font-family: sans-serif; max-width: 720px; margin: 50px auto; padding: 20px; }
        code { background: #f5f5f5; padding: 2px 6px; border-radius: 3px; }
        li { line-height: 1.8; }
    </style>
</head>
<body>
    <h1>stillcap</h1>
    <p>Temporally consistent X11 screen capture.</p>
    <ul>
        <li><code>GET /api/health</code> - server and extension status</li>
        <li><code>GET /api/windows</code> - capturable windows (<code>?all=1</code> for every window)</li>
        <li><code>POST /api/session</code> - freeze a snapshot</li>
        <li><code>GET /api/session/desktop.png</code> - the frozen desktop</li>
        <li><code>GET /api/session/area.png?x=&amp;y=&amp;w=&amp;h=</code> - crop of the frozen desktop</li>
        <li><code>GET /api/session/window-at.png?x=&amp;y=</code> - frozen window under a point</li>
        <li><code>DELETE /api/session</code> - discard the snapshot</li>
    </ul>
</body>
</html>`

	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(html))
}

// Helpers

type sessionStatus struct {
	State   string     `json:"state"`
	Partial bool       `json:"partial,omitempty"`
	Windows int        `json:"windows,omitempty"`
	TakenAt *time.Time `json:"taken_at,omitempty"`
}

func statusOf(sess *snapshot.Session) sessionStatus {
	st := sessionStatus{State: sess.State().String()}
	select {
	case <-sess.Done():
		if snap, err := sess.Snapshot(context.Background()); err == nil {
			st.Partial = snap.Partial
			st.Windows = len(snap.Windows)
			st.TakenAt = &snap.TakenAt
		}
	default:
	}
	return st
}

func (s *Server) requireSession(w http.ResponseWriter) (*snapshot.Session, bool) {
	sess, ok := s.snapshots.Current()
	if !ok {
		http.Error(w, "no active session", http.StatusConflict)
		return nil, false
	}
	return sess, true
}

// surfaceError maps snapshot read failures onto HTTP statuses. A wait
// abandoned by the client writes nothing.
func (s *Server) surfaceError(w http.ResponseWriter, err error, fallback int) {
	switch {
	case errors.Is(err, snapshot.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	default:
		http.Error(w, err.Error(), fallback)
	}
}

func (s *Server) writePNG(w http.ResponseWriter, r *http.Request, surface *capture.Surface) {
	var img image.Image = surface.RGBA()
	if tw := r.URL.Query().Get("thumb"); tw != "" {
		width, err := strconv.Atoi(tw)
		if err != nil || width <= 0 {
			http.Error(w, "invalid thumb width", http.StatusBadRequest)
			return
		}
		img = surface.Thumbnail(width)
	}

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		logger.WithComponent("api").Debug().Err(err).Msg("PNG write aborted")
	}
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, fmt.Errorf("missing query parameter %q", name)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("query parameter %q is not a number", name)
	}
	return n, nil
}

func queryRect(r *http.Request) (xconn.Rect, error) {
	var rect xconn.Rect
	var err error
	if rect.X, err = queryInt(r, "x"); err != nil {
		return rect, err
	}
	if rect.Y, err = queryInt(r, "y"); err != nil {
		return rect, err
	}
	if rect.Width, err = queryInt(r, "w"); err != nil {
		return rect, err
	}
	if rect.Height, err = queryInt(r, "h"); err != nil {
		return rect, err
	}
	if rect.Width <= 0 || rect.Height <= 0 {
		return rect, errors.New("area width and height must be positive")
	}
	return rect, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
