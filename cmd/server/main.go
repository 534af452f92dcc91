package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-learn/internal/activity"
	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/course"
	"github.com/p-n-ai/pai-learn/internal/discussion"
	"github.com/p-n-ai/pai-learn/internal/enrollment"
	"github.com/p-n-ai/pai-learn/internal/grade"
	"github.com/p-n-ai/pai-learn/internal/httpapi"
	"github.com/p-n-ai/pai-learn/internal/platform/auth"
	"github.com/p-n-ai/pai-learn/internal/platform/cache"
	"github.com/p-n-ai/pai-learn/internal/platform/config"
	"github.com/p-n-ai/pai-learn/internal/platform/database"
	"github.com/p-n-ai/pai-learn/internal/progress"
	"github.com/p-n-ai/pai-learn/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	svc := newServices(b.store)
	svc.Activity = b.activity
	if cfg.CatalogPath != "" {
		if err := seedCatalog(ctx, cfg.CatalogPath, svc); err != nil {
			return err
		}
	}

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      httpapi.New(svc, verifier, b.checks).Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "store", cfg.Store.Driver, "cache", cfg.Cache.Enabled)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	return nil
}

// newLogger builds the process logger. Format "text" selects the text
// handler; anything else logs JSON.
func newLogger(w io.Writer, c config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Level)}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// backend is the document store and the dependencies behind it.
type backend struct {
	store    store.Store
	activity activity.Logger
	checks   map[string]httpapi.Check
	closers  []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	b := &backend{activity: activity.NopLogger{}, checks: map[string]httpapi.Check{}}

	switch cfg.Store.Driver {
	case config.StorePostgres:
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		b.closers = append(b.closers, db.Close)
		b.checks["database"] = db.HealthCheck

		pg, err := store.NewPostgresStore(ctx, db.Pool)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("preparing document store: %w", err)
		}
		b.store = pg

		events, err := activity.NewPostgresLogger(ctx, db.Pool)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("preparing activity log: %w", err)
		}
		b.activity = events
		slog.Info("using postgres document store")
	default:
		b.store = store.NewMemoryStore()
		slog.Warn("using in-memory document store; data is lost on restart")
	}

	if cfg.Cache.Enabled {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("connecting to cache: %w", err)
		}
		b.closers = append(b.closers, func() { c.Close() })
		b.checks["cache"] = c.HealthCheck
		b.store = store.NewCachedStore(b.store, c, cfg.Cache.TTL, course.Collection, grade.Collection, progress.Collection)
		slog.Info("document cache enabled", "ttl", cfg.Cache.TTL)
	}

	return b, nil
}

func newServices(st store.Store) httpapi.Services {
	courses := course.NewService(st)
	return httpapi.Services{
		Courses:     courses,
		Grades:      grade.NewService(st, courses),
		Enrollment:  enrollment.NewLedger(st),
		Progress:    progress.NewTracker(st),
		Discussions: discussion.NewService(st, nil),
	}
}

func seedCatalog(ctx context.Context, path string, svc httpapi.Services) error {
	l, err := catalog.NewLoader(path)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	res, err := catalog.Seed(ctx, l, svc.Grades, svc.Courses)
	if err != nil {
		return fmt.Errorf("seeding catalog: %w", err)
	}
	slog.Info("catalog seeded",
		"path", path,
		"grades", res.Grades,
		"courses", res.Courses,
		"existing", res.Existing,
		"invalid", res.Invalid,
	)
	return nil
}
