// Package main provides the pixelock binary entry point: a PIN-protected,
// single-use image sharing service. It loads configuration from the
// environment, opens the ticket database and object directory, wires the
// lifecycle service, background janitor and metrics manager, and serves
// HTTP until interrupted.
package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pixelock/pixelock/internal/app"
	"github.com/pixelock/pixelock/internal/config"
	"github.com/pixelock/pixelock/internal/httpx"
	"github.com/pixelock/pixelock/internal/janitor"
	"github.com/pixelock/pixelock/internal/media"
	"github.com/pixelock/pixelock/internal/metrics"
	"github.com/pixelock/pixelock/internal/store/sqlite"

	_ "github.com/mattn/go-sqlite3"
)

// realClock implements app.Clock using time.Now.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

func loadConfig() *config.Config {
	// A local .env is a development convenience; absence is not an error.
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "err", err)
		os.Exit(2)
	}
	return cfg
}

// ensureDataDir creates the data directory and its objects subdirectory.
func ensureDataDir(dir string) (string, string, error) {
	if st, err := os.Stat(dir); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return "", "", err
		}
		if mkErr := os.MkdirAll(dir, 0o700); mkErr != nil {
			return "", "", mkErr
		}
	} else if !st.IsDir() {
		return "", "", errors.New("data path is not a directory")
	}
	objectsDir := filepath.Join(dir, "objects")
	if err := os.MkdirAll(objectsDir, 0o700); err != nil {
		return "", "", err
	}
	return dir, objectsDir, nil
}

func openDatabase(cfg *config.Config) (*sql.DB, *sqlite.Store, error) {
	db, err := sql.Open("sqlite3", cfg.SQLiteDSN())
	if err != nil {
		return nil, nil, err
	}
	tickets, err := sqlite.New(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, tickets, nil
}

// signingKey returns the configured key or a fresh random one. An ephemeral
// key invalidates outstanding signed URLs across restarts, hence the warning.
func signingKey(cfg *config.Config) ([]byte, error) {
	if cfg.SigningKey != "" {
		return []byte(cfg.SigningKey), nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	slog.Warn("no signing key configured, generated ephemeral key", "hint", "set PIXELOCK_SIGNING_KEY to survive restarts")
	return key, nil
}

func buildService(tickets app.TicketStore, objects app.MediaStore, cfg *config.Config, clock app.Clock, rec app.MetricsRecorder) *app.Service {
	return &app.Service{
		Tickets:        tickets,
		Media:          objects,
		Clock:          clock,
		Metrics:        rec,
		LinkTTL:        cfg.LinkTTL,
		RevealSeconds:  cfg.RevealSeconds,
		MaxAttempts:    cfg.MaxAttempts,
		SignedURLTTL:   cfg.SignedURLTTL,
		MaxUploadBytes: int64(cfg.MaxUploadBytes),
	}
}

// mediaGateway pairs object reads with signature verification for the
// retrieval endpoint.
type mediaGateway struct {
	*media.Store
	*media.Signer
}

func buildHandler(cfg *config.Config, svc *app.Service, gw httpx.MediaGateway, db *sql.DB, objectsDir string, clock app.Clock, mgr *metrics.Manager) http.Handler {
	h := httpx.New(svc, gw, clock, int64(cfg.MaxUploadBytes))
	h.Readiness = func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		if _, err := os.ReadDir(objectsDir); err != nil {
			return err
		}
		return nil
	}
	if mgr != nil {
		h.Metrics = metrics.Handler(mgr, cfg.MetricsToken)
	}
	return h.Router()
}

func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func run() error {
	cfg := loadConfig()
	_, objectsDir, err := ensureDataDir(cfg.DataDir)
	if err != nil {
		slog.Error("prepare data directory", "dir", cfg.DataDir, "err", err)
		os.Exit(3)
	}
	db, tickets, err := openDatabase(cfg)
	if err != nil {
		slog.Error("open ticket database", "err", err)
		os.Exit(4)
	}
	defer db.Close()

	key, err := signingKey(cfg)
	if err != nil {
		return err
	}
	clock := realClock{}
	signer := media.NewSigner(key, cfg.BaseURL)
	objects, err := media.New(objectsDir, signer, clock)
	if err != nil {
		slog.Error("init object storage", "dir", objectsDir, "err", err)
		os.Exit(5)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr := metrics.New(db, metrics.Config{})
	if err := mgr.InitSchema(ctx); err != nil {
		return err
	}
	mgr.Start(ctx)
	defer mgr.Stop(context.Background())

	svc := buildService(tickets, objects, cfg, clock, mgr)
	jan := janitor.New(tickets, objects, mgr, janitor.Config{
		Interval: cfg.JanitorInterval,
		Grace:    cfg.PurgeGrace,
	})
	jan.Start(ctx)
	defer jan.Stop()

	gw := mediaGateway{Store: objects, Signer: signer}
	srv := newServer(cfg, buildHandler(cfg, svc, gw, db, objectsDir, clock, mgr))

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.Addr, "pid", os.Getpid())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func main() {
	if err := run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
