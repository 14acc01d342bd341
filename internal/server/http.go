package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"mcpd/internal/protocol"
	"mcpd/internal/version"
)

// maxRequestBytes bounds a single HTTP request body.
const maxRequestBytes = 4 * 1024 * 1024

// HTTPServer exposes the dispatcher over HTTP: POST / carries one
// JSON-RPC request per call, GET /healthz reports liveness.
type HTTPServer struct {
	dispatcher *protocol.Dispatcher
	logger     *zap.Logger
	srv        *http.Server
}

// NewHTTPServer constructs an HTTP binding listening on addr.
func NewHTTPServer(dispatcher *protocol.Dispatcher, addr string, logger *zap.Logger) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &HTTPServer{dispatcher: dispatcher, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handleRPC)
	mux.HandleFunc("/healthz", h.handleHealth)

	h.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return h
}

// Run serves until the context is canceled, then drains with a short
// shutdown grace period.
func (h *HTTPServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (h *HTTPServer) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if len(body) > maxRequestBytes {
		http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
		return
	}

	resp := h.dispatcher.HandleRaw(r.Context(), body)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"server":  version.ServerName,
		"version": version.Version,
	})
}
