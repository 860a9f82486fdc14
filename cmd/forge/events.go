package main

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/forgebuild/forge/internal/events/sse"
)

// serveSSE starts an SSE endpoint at addr in the background. A failure to
// bind is logged, not fatal: the build proceeds without the live dashboard.
func serveSSE(addr string, handler *sse.Handler, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/events", handler)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("events server stopped", zap.Error(err))
		}
	}()
}
