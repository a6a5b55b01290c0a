// Package debug hosts the eino devops debugging plugin behind a
// config flag. When enabled it serves the devops inspection UI on the
// configured port, with a small health endpoint one port above it.
package debug

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/cloudwego/eino-ext/devops"

	"github.com/dyike/tradecycle/config"
)

// Server wires the eino devops plugin plus a health endpoint. A
// disabled server is a no-op, so callers can start it unconditionally.
type Server struct {
	config *config.Config
	health *http.Server
}

// NewServer creates a debug server bound to the given configuration.
func NewServer(cfg *config.Config) *Server {
	return &Server{config: cfg}
}

// Start initializes the devops plugin and the health endpoint. It
// returns immediately when debugging is disabled.
func (s *Server) Start(ctx context.Context) error {
	if !s.config.EinoDebugEnabled {
		return nil
	}

	if err := devops.Init(ctx); err != nil {
		return fmt.Errorf("initialize eino debug plugin: %w", err)
	}
	log.Printf("[Debug] eino debugger listening at %s", s.URL())

	s.startHealthServer()
	return nil
}

func (s *Server) startHealthServer() {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("tradecycle debug server is running"))
	})

	s.health = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.EinoDebugPort+1),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.health.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[Debug] health server error: %v", err)
		}
	}()
}

// Enabled reports whether the debugger was configured on.
func (s *Server) Enabled() bool {
	return s.config.EinoDebugEnabled
}

// URL returns the devops UI address, empty when disabled.
func (s *Server) URL() string {
	if !s.config.EinoDebugEnabled {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", s.config.EinoDebugPort)
}

// Close shuts down the health endpoint. The devops plugin itself has
// no shutdown hook.
func (s *Server) Close() error {
	if s.health == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.health.Shutdown(ctx)
}
