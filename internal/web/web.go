package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/cors"
	tpltools "github.com/xdoubleu/essentia/v2/pkg/tpl"

	"eventstoday/internal/config"
	"eventstoday/internal/format"
	appLog "eventstoday/internal/log"
	"eventstoday/internal/model"
	"eventstoday/internal/today"
)

//go:embed templates/*.html
var htmlTemplates embed.FS

// Panel is what the server needs from the today pipeline.
type Panel interface {
	Load(ctx context.Context, retry int) today.View
	Retry(ctx context.Context) today.View
}

// Server serves the today's-events page, its HTML fragment and a JSON view.
type Server struct {
	cfg   *config.Config
	panel Panel
	tpl   *template.Template
	mux   *http.ServeMux
}

// pageData is the template context for page.html and the panel fragment.
type pageData struct {
	Title        string
	View         today.View
	WhatsOnLink  string
	EmptyMessage string
	Async        bool
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, panel Panel) *Server {
	s := &Server{
		cfg:   cfg,
		panel: panel,
		tpl:   parseTemplates(cfg.Display.Currency),
		mux:   http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

func parseTemplates(defaultCurrency string) *template.Template {
	funcs := template.FuncMap{
		"priceLabel": func(d model.DisplayEvent) string {
			cur := d.PriceCurrency
			if cur == "" {
				cur = defaultCurrency
			}
			return format.PriceLabel(d.Price, cur)
		},
		"deref": func(n *int) int {
			if n == nil {
				return 0
			}
			return *n
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(htmlTemplates, "templates/*.html"))
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return requestIDMiddleware(accessLogMiddleware(h))
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg *config.Config, panel Panel) error {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           NewServer(cfg, panel).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("stopping HTTP server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /today", s.handleToday)
	s.mux.HandleFunc("GET /partials/today", s.handlePartial)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)

	api := cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
	s.mux.Handle("/api/events/today", api(http.HandlerFunc(s.handleEventsToday)))
	s.mux.Handle("/api/events/today/retry", api(http.HandlerFunc(s.handleEventsRetry)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleIndex renders the page shell in the loading state; the embedded
// script swaps in /partials/today once it arrives.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.render(w, "page.html", s.pageData(today.Loading(0), true))
}

// handleToday renders the complete page synchronously.
func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	v := s.panel.Load(r.Context(), retryParam(r))
	s.render(w, "page.html", s.pageData(v, false))
}

// handlePartial renders only the panel for the async shell.
func (s *Server) handlePartial(w http.ResponseWriter, r *http.Request) {
	v := s.panel.Load(r.Context(), retryParam(r))
	w.Header().Set("Cache-Control", "no-store")
	s.render(w, "panel", s.pageData(v, false))
}

// handlePreview serves the last captured screenshot of the page.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.cfg.PreviewPath == "" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, s.cfg.PreviewPath)
}

// eventsResponse is the JSON shape for /api/events/today.
type eventsResponse struct {
	State        today.State          `json:"state"`
	Content      today.Content        `json:"content"`
	Date         string               `json:"date"`
	RetryCount   int                  `json:"retry_count"`
	Events       []model.DisplayEvent `json:"events"`
	Error        string               `json:"error,omitempty"`
	Announcement string               `json:"announcement"`
}

// handleEventsToday returns the panel view model.
//
// GET /api/events/today?retry=N
//   - retry: a count not seen before forces one fresh upstream fetch
func (s *Server) handleEventsToday(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(s.panel.Load(r.Context(), retryParam(r))))
}

// handleEventsRetry bumps the retry counter and reloads.
func (s *Server) handleEventsRetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(s.panel.Retry(r.Context())))
}

func toResponse(v today.View) eventsResponse {
	resp := eventsResponse{
		State:        v.State,
		Content:      v.Content,
		Date:         v.Date,
		RetryCount:   v.RetryCount,
		Events:       v.Events,
		Announcement: v.Announcement(),
	}
	if resp.Events == nil {
		resp.Events = []model.DisplayEvent{}
	}
	if v.Err != nil {
		// Upstream details stay in the logs.
		resp.Error = "events are temporarily unavailable"
	}
	return resp
}

func (s *Server) pageData(v today.View, async bool) pageData {
	return pageData{
		Title:        "Today's Events",
		View:         v,
		WhatsOnLink:  s.cfg.Display.WhatsOnLink,
		EmptyMessage: today.EmptyMessage,
		Async:        async,
	}
}

func (s *Server) render(w http.ResponseWriter, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	tpltools.RenderWithPanic(s.tpl, w, name, data)
}

func retryParam(r *http.Request) int {
	n := parseIntDefault(r.URL.Query().Get("retry"), 0)
	if n < 0 {
		return 0
	}
	return n
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
