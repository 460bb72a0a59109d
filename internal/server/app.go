// Package server initializes and runs the application server. It opens
// the database, runs migrations, wires the SII protocol client and the
// services behind the HTTP API, and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mfuentesc/siidte/internal/logging"
	"github.com/mfuentesc/siidte/internal/server/config"
	"github.com/mfuentesc/siidte/internal/server/httpapi"
	"github.com/mfuentesc/siidte/internal/server/repositories/repomanager"
	"github.com/mfuentesc/siidte/internal/server/services"
	"github.com/mfuentesc/siidte/internal/sii"
	"github.com/mfuentesc/siidte/internal/xmldsig"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	router http.Handler
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	signer, err := signerFromConfig(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	var client *sii.Client
	if cfg.SIIBaseURL != "" {
		client = sii.NewClientWithBaseURL(cfg.SIIBaseURL, cfg.SIITimeout, signer, logger)
	} else {
		client = sii.NewClient(cfg.SIIEnvironment, cfg.SIITimeout, signer, logger)
	}

	certSvc := services.NewCertificateService(db, rm, logger)
	authSvc := services.NewSIIAuthService(db, rm, client, logger)
	subSvc := services.NewSubmissionService(db, rm, signer, client, cfg, logger)

	h := httpapi.NewHandler(certSvc, authSvc, subSvc, []byte(cfg.SecretKey), logger)

	return &App{
		config: cfg,
		logger: logger,
		db:     db,
		router: httpapi.NewRouter(h),
	}, nil
}

func signerFromConfig(cfg *config.Config) (*xmldsig.Signer, error) {
	switch cfg.SignatureAlg {
	case "rsa-sha1":
		return xmldsig.New(xmldsig.RSASHA1), nil
	case "rsa-sha256":
		return xmldsig.New(xmldsig.RSASHA256), nil
	default:
		return nil, fmt.Errorf("unknown signature algorithm: %q", cfg.SignatureAlg)
	}
}

// Run serves the HTTP API until the context is cancelled or a termination
// signal arrives, then drains in-flight requests.
func (app *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sigs
		cancel()
	}()

	srv := &http.Server{
		Addr:    app.config.EndpointAddrHTTP,
		Handler: app.router,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "http server listening", "addr", app.config.EndpointAddrHTTP)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return app.db.Close()
}
