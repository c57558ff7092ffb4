// Package api serves the pipeline over a small JSON HTTP surface so a
// scheduler or dashboard can trigger batch runs and read state.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/eladdeutch/jobtracker/internal/ops"
)

// maxBodyBytes bounds request bodies. Every POST body is a small options object.
const maxBodyBytes = 1 << 20

// NewServer creates the HTTP server for the jobtracker API.
func NewServer(p *ops.Pipeline, version, bind string, port int) *http.Server {
	h := &Handlers{p: p, version: version}

	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("GET /{$}", h.HandleIndex)
	mux.HandleFunc("POST /api/scan", h.HandleScan)
	mux.HandleFunc("POST /api/auto-process", h.HandleAutoProcess)
	mux.HandleFunc("POST /api/reminders/auto-create", h.HandleAutoReminders)
	mux.HandleFunc("POST /api/applications/reject-stale", h.HandleRejectStale)
	mux.HandleFunc("POST /api/applications/dedupe", h.HandleDedupe)
	mux.HandleFunc("GET /api/applications", h.HandleListApplications)
	mux.HandleFunc("GET /api/applications/{id}", h.HandleGetApplication)
	mux.HandleFunc("GET /api/applications/{id}/interviews", h.HandleListInterviews)
	mux.HandleFunc("GET /api/interviews/upcoming", h.HandleUpcomingInterviews)
	mux.HandleFunc("GET /api/emails", h.HandleListEmails)
	mux.HandleFunc("GET /api/reminders/due", h.HandleDueReminders)
	mux.HandleFunc("GET /api/stats", h.HandleStats)
	mux.HandleFunc("GET /api/report", h.HandleReport)
	mux.Handle("GET /metrics", p.Metrics.Handler())

	handler := securityHeaders(accessLog(p.Log, mux))

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// accessLog logs one line per request at debug level, or warn for 5xx.
func accessLog(log *zap.Logger, next http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		}
		if rec.status >= 500 {
			log.Warn("request failed", fields...)
			return
		}
		log.Debug("request", fields...)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("jobtracker API listening", zap.String("addr", "http://"+srv.Addr))

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		log.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
