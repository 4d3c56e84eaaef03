package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"voicecleaner/core/pipeline"
	"voicecleaner/logger"
)

// Options wires the status API.
type Options struct {
	Orchestrator  *pipeline.Orchestrator
	Health        HealthChecker
	Lookup        RunLookup // optional, e.g. the Redis report cache
	DefaultPreset string
	MaxRuns       int
}

// Server is the HTTP status API.
type Server struct {
	handler *APIHandler
	hub     *EventHub
	router  *mux.Router
	cancel  context.CancelFunc
}

// New creates the server and subscribes it to orchestrator events.
func New(opts Options) *Server {
	hub := NewEventHub()
	ctx, cancel := context.WithCancel(context.Background())
	h := &APIHandler{
		orch:          opts.Orchestrator,
		health:        opts.Health,
		lookup:        opts.Lookup,
		runs:          newRunStore(opts.MaxRuns),
		hub:           hub,
		defaultPreset: opts.DefaultPreset,
		baseCtx:       ctx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	opts.Orchestrator.OnRecord(hub.RecordListener)
	opts.Orchestrator.AddSink(hub)

	s := &Server{handler: h, hub: hub, cancel: cancel}
	s.router = s.routes()
	go hub.Run()
	return s
}

func (s *Server) routes() *mux.Router {
	h := s.handler
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	// OPTIONS 需要匹配路由，中间件才会处理预检请求
	router.HandleFunc("/api/health", h.HealthHandler).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/presets", h.PresetsHandler).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/runs", h.StartRunHandler).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/runs/{id}", h.GetRunHandler).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/ws/runs", h.EventsHandler).Methods(http.MethodGet)
	return router
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close cancels runs started through the API and stops the event hub.
func (s *Server) Close() {
	s.cancel()
	s.hub.Stop()
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	// 设置服务器超时
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("status API listening", logger.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down status API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}
