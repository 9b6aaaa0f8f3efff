package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/znz-systems/leadbridge/internal/auth"
	"github.com/znz-systems/leadbridge/internal/blob"
	"github.com/znz-systems/leadbridge/internal/config"
	"github.com/znz-systems/leadbridge/internal/database"
	"github.com/znz-systems/leadbridge/internal/intake"
	"github.com/znz-systems/leadbridge/internal/metrics"
	"github.com/znz-systems/leadbridge/internal/ratelimit"
	"github.com/znz-systems/leadbridge/internal/store"
	"github.com/znz-systems/leadbridge/internal/store/memory"
	"github.com/znz-systems/leadbridge/internal/store/postgres"
	"github.com/znz-systems/leadbridge/internal/vendormail"
	"github.com/znz-systems/leadbridge/internal/web"
	"github.com/znz-systems/leadbridge/internal/web/handlers"
	"github.com/znz-systems/leadbridge/migrations"
	"golang.org/x/sync/errgroup"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := printToken(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg); err != nil {
		slog.Error("leadbridge exited with error", "error", err)
		os.Exit(1)
	}
}

// printToken generates an intake API token together with the bcrypt hash to
// put in INTAKE_API_TOKEN.
func printToken() error {
	token, err := auth.GenerateToken()
	if err != nil {
		return err
	}
	hash, err := auth.HashToken(token)
	if err != nil {
		return err
	}
	fmt.Printf("token: %s\nINTAKE_API_TOKEN=%s\n", token, hash)
	return nil
}

func setupLogger(level, format string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store
	var gateway store.Gateway
	switch cfg.StoreBackend {
	case "memory":
		slog.Warn("using in-memory store, records are lost on restart")
		gateway = memory.NewGateway()
	default:
		db, err := postgres.NewDB(ctx, cfg.DatabaseURL, postgres.PoolOptions{})
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		if err := metrics.RegisterDBStats(db, "leadbridge"); err != nil {
			slog.Warn("failed to register database metrics", "error", err)
		}
		if cfg.MigrateOnStart {
			if err := database.RunMigrations(migrations.FS, cfg.DatabaseURL); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
		}
		gateway = postgres.NewGateway(db)
	}

	// Parsing
	grammar, err := vendormail.LoadGrammar(cfg.GrammarPath)
	if err != nil {
		return fmt.Errorf("load grammar: %w", err)
	}
	classifier := vendormail.NewClassifier(cfg.TrustedSenderDomains)
	loc, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		return fmt.Errorf("load default timezone: %w", err)
	}

	// Archive
	archiveStore, err := blob.NewFromConfig(ctx, blob.Config{
		Backend:           cfg.ArchiveBackend,
		FSRoot:            cfg.ArchiveFSRoot,
		S3Bucket:          cfg.ArchiveS3Bucket,
		S3Region:          cfg.ArchiveS3Region,
		S3Endpoint:        cfg.ArchiveS3Endpoint,
		S3AccessKeyID:     cfg.ArchiveS3AccessKeyID,
		S3SecretAccessKey: cfg.ArchiveS3SecretAccessKey,
		S3ForcePathStyle:  cfg.ArchiveS3ForcePathStyle,
	})
	if err != nil {
		return fmt.Errorf("configure archive: %w", err)
	}

	service := intake.NewService(gateway, classifier, grammar, blob.NewArchive(archiveStore), intake.Options{
		PersistTimeout:  cfg.PersistTimeout,
		TxTimeout:       cfg.TxTimeout,
		DefaultLocation: loc,
	})

	verifier := auth.NewTokenVerifier(cfg.IntakeAPIToken)
	if !verifier.Enabled() {
		slog.Warn("INTAKE_API_TOKEN not set, notification endpoint is unauthenticated")
	}

	router := web.NewRouter(web.RouterDeps{
		NotificationHandler: handlers.NewNotificationHandler(service, cfg.MaxBodyBytes),
		HealthHandler:       handlers.NewHealthHandler(gateway),
		TokenVerifier:       verifier,
		Limiter:             ratelimit.NewLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("leadbridge starting", "addr", addr, "store", cfg.StoreBackend, "archive", archiveStore != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	var smtpSrv *intake.Server
	if cfg.InboundSMTPEnabled {
		smtpSrv = intake.NewServer(cfg.InboundSMTPAddr, cfg.InboundSMTPDomain, service, intake.ServerOptions{})
		g.Go(func() error {
			if err := smtpSrv.Start(); err != nil {
				return fmt.Errorf("inbound smtp server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if smtpSrv != nil {
			if err := smtpSrv.Shutdown(); err != nil {
				errs = append(errs, fmt.Errorf("smtp shutdown: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
