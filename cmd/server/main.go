// Package main runs the treasury service: the HTTP API, the contract event
// poller, the journal reconciler and periodic report exports.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"soroban-dao/internal/api"
	"soroban-dao/internal/app"
	"soroban-dao/internal/config"
	"soroban-dao/internal/observability"
	"soroban-dao/internal/reporting"
)

// Server holds the running components.
type Server struct {
	app            *app.App
	addr           string
	outputDir      string
	reportInterval time.Duration
	reportLimit    int
	logger         *log.Logger

	mu            sync.Mutex
	started       time.Time
	lastReportRun time.Time
	reportRuns    int
	reportRunning bool
	lastPoll      time.Time
	polledEvents  int
	reconciled    int
}

func main() {
	envFile := flag.String("env-file", ".env", "Path to .env file (skipped if missing)")
	addr := flag.String("addr", "", "HTTP listen address (default HTTP_ADDR)")
	outputDir := flag.String("output-dir", "", "Output directory for reports (default OUTPUT_DIR)")
	reportInterval := flag.Duration("report-interval", time.Hour, "Report export interval, 0 disables")
	reportLimit := flag.Int("report-limit", 1000, "Maximum operations and events per report")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*envFile)
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	if *addr == "" {
		*addr = cfg.Server.Addr
	}
	if *outputDir == "" {
		*outputDir = cfg.Server.OutputDir
	}

	ctx, cancel := context.WithCancel(context.Background())

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to start: %v", err)
	}
	defer a.Close()

	server := &Server{
		app:            a,
		addr:           *addr,
		outputDir:      *outputDir,
		reportInterval: *reportInterval,
		reportLimit:    *reportLimit,
		logger:         logger,
		started:        time.Now(),
	}

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// Run starts every component and blocks until ctx ends or one fails.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Printf("Starting server (network %q, local %v)...",
		s.app.Config.RPC.NetworkPassphrase, s.app.Config.Local)

	errCh := make(chan error, 5)
	run := func(name string, fn func(context.Context) error) {
		go func() {
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	run("http", s.serveHTTP)
	run("session", s.app.Session.Watch)
	run("events", s.runPoller)
	run("reconciler", s.runReconciler)
	if s.reportInterval > 0 {
		run("reports", s.runReportScheduler)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) runPoller(ctx context.Context) error {
	poller := s.app.Poller()
	interval := s.app.Config.Server.EventPollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		n, err := poller.PollOnce(ctx)
		if err != nil && ctx.Err() == nil {
			s.logger.Printf("WARN: event poll failed: %v", err)
		}
		s.mu.Lock()
		s.lastPoll = time.Now()
		s.polledEvents += n
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Server) runReconciler(ctx context.Context) error {
	reconciler := s.app.Reconciler()
	interval := s.app.Config.Server.ReconcileInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		n, err := reconciler.ReconcileOnce(ctx)
		if err != nil && ctx.Err() == nil {
			s.logger.Printf("WARN: reconcile failed: %v", err)
		}
		if n > 0 {
			s.mu.Lock()
			s.reconciled += n
			s.mu.Unlock()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Server) runReportScheduler(ctx context.Context) error {
	s.logger.Printf("Starting report scheduler (interval: %v)...", s.reportInterval)

	ticker := time.NewTicker(s.reportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runReport(ctx)
		}
	}
}

func (s *Server) runReport(ctx context.Context) {
	s.mu.Lock()
	if s.reportRunning {
		s.mu.Unlock()
		s.logger.Println("Report generation already running, skipping...")
		return
	}
	s.reportRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.reportRunning = false
		s.lastReportRun = time.Now()
		s.reportRuns++
		s.mu.Unlock()
	}()

	start := time.Now()
	report, err := s.app.Reports.Generate(ctx, s.reportLimit)
	if err != nil {
		s.logger.Printf("Report generation error: %v", err)
		return
	}
	files, err := reporting.WriteFiles(s.outputDir, report)
	if err != nil {
		s.logger.Printf("Report export error: %v", err)
		return
	}
	s.logger.Printf("Reports generated in %v: %v", time.Since(start), files)
}

func (s *Server) serveHTTP(ctx context.Context) error {
	handler := api.New(api.Options{
		RPC:      s.app.RPC,
		Clients:  s.app.Clients,
		Session:  s.app.Session,
		Journal:  s.app.Journal,
		Activity: s.app.Activity,
		Reports:  s.app.Reports,
		Logger:   log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lshortfile),
	}).Handler()

	mux := http.NewServeMux()
	mux.Handle("/api/", handler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)

	srv := &http.Server{Addr: s.addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Printf("Starting HTTP server on %s", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status        string    `json:"status"`
	Uptime        string    `json:"uptime"`
	Started       time.Time `json:"started"`
	Wallet        string    `json:"wallet,omitempty"`
	LastPoll      time.Time `json:"last_poll,omitempty"`
	PolledEvents  int       `json:"polled_events"`
	Reconciled    int       `json:"reconciled"`
	LastReportRun time.Time `json:"last_report_run,omitempty"`
	ReportRuns    int       `json:"report_runs"`
	ReportRunning bool      `json:"report_running"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	address, _ := s.app.Session.Address()

	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:        "running",
		Uptime:        time.Since(s.started).String(),
		Started:       s.started,
		Wallet:        address,
		LastPoll:      s.lastPoll,
		PolledEvents:  s.polledEvents,
		Reconciled:    s.reconciled,
		LastReportRun: s.lastReportRun,
		ReportRuns:    s.reportRuns,
		ReportRunning: s.reportRunning,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
