package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"intake/internal/adapters/gemini"
	httpadapter "intake/internal/adapters/http"
	"intake/internal/adapters/memory"
	pg "intake/internal/adapters/postgres"
	"intake/internal/config"
	"intake/internal/ports"
	approvalsvc "intake/internal/services/approvals"
	archivesvc "intake/internal/services/archive"
	"intake/internal/services/branches"
	"intake/internal/services/intake"
	"intake/internal/services/reconcile"
	"intake/internal/workers/importrunner"
)

type stores struct {
	archive   ports.ArchiveRepository
	approvals ports.TypeApprovalRepository
	sessions  ports.SessionPersister
	jobs      ports.ImportJobRepository
	ping      func(context.Context) error
	close     func()
}

func main() {
	cfg, cfgErr := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, cfgErr, logger)
	if err != nil {
		logger.Fatal("storage", zap.Error(err))
	}
	defer st.close()

	extractor, policy := aiBackends(ctx, cfg, logger)

	catalogue := branches.New(cfg.Branches)
	archive := archivesvc.New(st.archive)
	approvals := approvalsvc.New(st.approvals, st.jobs, logger.Named("approvals"))
	reconciler := reconcile.New(extractor, policy, logger.Named("reconcile"))
	sessions := intake.New(st.sessions, reconciler, archive, catalogue, logger.Named("intake"))

	srv := httpadapter.New(sessions, archive, approvals, catalogue, st.jobs, logger.Named("http"), httpadapter.Options{
		CORSOrigins:    cfg.CORSOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Ping:           st.ping,
	})
	httpServer := &http.Server{
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Fatal("listen", zap.String("addr", cfg.ListenAddr), zap.Error(err))
	}
	if cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConns)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr), zap.Int("max_conns", cfg.MaxConns))
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return sessions.RunEviction(gctx, cfg.SessionIdleTTL, time.Minute)
	})
	// Optional background import workers
	if cfg.ImportWorkers > 0 {
		g.Go(func() error {
			logger.Info("import workers started", zap.Int("workers", cfg.ImportWorkers))
			return importrunner.Run(gctx, st.jobs, approvals, cfg.ImportWorkers, 500*time.Millisecond, logger.Named("importrunner"))
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.Development() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// openStores connects to Postgres and migrates it, or falls back to
// in-memory adapters when no database is configured.
func openStores(ctx context.Context, cfg config.Config, cfgErr error, logger *zap.Logger) (stores, error) {
	if errors.Is(cfgErr, config.ErrNoDatabase) {
		logger.Warn("DATABASE_URL not set; using in-memory storage, data is lost on restart")
		return stores{
			archive:   memory.NewArchive(),
			approvals: memory.NewTypeApprovals(),
			sessions:  memory.NewSessions(),
			jobs:      memory.NewImportJobs(),
			close:     func() {},
		}, nil
	}
	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return stores{}, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return stores{}, err
	}
	return stores{
		archive:   db,
		approvals: db.TypeApprovals(),
		sessions:  db,
		jobs:      db,
		ping:      db.Ping,
		close:     db.Close,
	}, nil
}

// aiBackends builds the Gemini extractor and policy. Without an API key
// every scan fails with a service-unavailable error.
func aiBackends(ctx context.Context, cfg config.Config, logger *zap.Logger) (ports.Extractor, ports.DecisionPolicy) {
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY not set; scans are disabled")
		return gemini.Unavailable{}, gemini.Unavailable{}
	}
	client, err := gemini.NewClient(ctx, gemini.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel}, logger.Named("gemini"))
	if err != nil {
		logger.Warn("gemini client unavailable; scans are disabled", zap.Error(err))
		return gemini.Unavailable{}, gemini.Unavailable{}
	}
	return gemini.NewExtractor(client), gemini.NewPolicy(client)
}
