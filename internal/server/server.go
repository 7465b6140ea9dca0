// Package server serves the UI and the ipc websocket.
package server

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/svg"

	"github.com/soar/joyctrl/internal/hub"
)

// Media types minified when the frontend is loaded, by file extension.
var minifiable = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".svg":  "image/svg+xml",
}

type Server struct {
	hub        *hub.Hub
	assets     map[string][]byte
	loadedAt   time.Time
	addr       string
	logger     *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
}

// New loads the frontend from frontendFS, minifying what it can.
func New(h *hub.Hub, frontendFS fs.FS, addr string, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		hub:      h,
		addr:     addr,
		loadedAt: time.Now(),
		logger:   logger.With("component", "server"),
	}
	assets, err := loadAssets(frontendFS)
	if err != nil {
		return nil, err
	}
	s.assets = assets
	return s, nil
}

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("application/javascript", js.Minify)
	m.AddFunc("application/json", json.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	return m
}

func loadAssets(fsys fs.FS) (map[string][]byte, error) {
	m := newMinifier()
	assets := make(map[string][]byte)
	err := fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		if mediatype, ok := minifiable[path.Ext(name)]; ok {
			small, err := m.Bytes(mediatype, data)
			if err != nil {
				return fmt.Errorf("minify %s: %w", name, err)
			}
			data = small
		}
		assets[name] = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load frontend: %w", err)
	}
	return assets, nil
}

// Handler returns the HTTP handler: the websocket on /ws and the frontend
// everywhere else. ctx bounds the websocket clients.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket(ctx))

	// Static files (frontend)
	mux.HandleFunc("/", s.serveAsset)
	return mux
}

func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if name == "" {
		name = "index.html"
	}
	data, ok := s.assets[name]
	if !ok {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, name, s.loadedAt, bytes.NewReader(data))
}

// ListenAndServe serves until Shutdown. It returns http.ErrServerClosed after
// a clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
	return srv.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv != nil {
		s.logger.Info("shutting down HTTP server")
		return srv.Shutdown(ctx)
	}
	return nil
}

func originHost(origin string) string {
	u, err := url.Parse(origin)
	if err != nil {
		return ""
	}
	return u.Host
}
