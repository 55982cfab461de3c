package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/isdelr/ender-auth/internal/api"
	"github.com/isdelr/ender-auth/internal/auth"
	"github.com/isdelr/ender-auth/internal/config"
	"github.com/isdelr/ender-auth/internal/database"
	"github.com/isdelr/ender-auth/internal/logger"
	"github.com/isdelr/ender-auth/internal/services"
	"github.com/isdelr/ender-auth/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/samber/oops"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := logger.Init(cfg.LogLevel, !cfg.IsProduction()); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	// A missing signing key is fatal here, never per request.
	issuer, err := auth.NewIssuer(auth.IssuerConfig{
		SigningKey: cfg.Token.Secret,
		Algorithm:  cfg.Token.Algorithm,
		TTL:        cfg.Token.TTL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure token issuer")
	}

	ctx := context.Background()

	// Set up storage
	users, events, closeDB, err := openStore(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("Failed to initialize database")
	}
	defer closeDB()

	// Set up services
	eventService := services.NewEventService(events)
	userService, err := services.NewUserService(users, newHasher(cfg.Password), eventService)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize user service")
	}

	// Set up router
	router := api.NewRouter(api.RouterConfig{
		AllowedOrigins: cfg.CORSOrigins,
		SecureCookies:  cfg.IsProduction(),
	}, issuer, userService, eventService)

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("hasher", cfg.Password.Hasher).Msg("Server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}

// openStore connects to the configured backend, applies the schema and
// returns its repositories with a close function.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (store.UserRepository, store.EventRepository, func(), error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := database.NewPostgres(ctx, cfg.URL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return store.NewPostgresUserRepository(pool), store.NewPostgresEventRepository(pool), pool.Close, nil

	default:
		// Ensure the directory holding the database file exists
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, nil, nil, oops.Code("DB_OPEN_FAILED").With("path", cfg.Path).Wrap(err)
		}
		db, err := database.New(cfg.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.Migrate(db); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return store.NewSQLiteUserRepository(db), store.NewSQLiteEventRepository(db), closer(db), nil
	}
}

func closer(db *sql.DB) func() {
	return func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}
}

// newHasher hashes with the configured algorithm but still verifies hashes
// written under the other one.
func newHasher(cfg config.PasswordConfig) *auth.MultiHasher {
	if cfg.Hasher == "argon2id" {
		return auth.NewMultiHasher(auth.NewArgon2idHasher(auth.Argon2idParams{
			Time:    cfg.Argon2Time,
			Memory:  cfg.Argon2Memory,
			Threads: cfg.Argon2Threads,
		}))
	}
	return auth.NewMultiHasher(auth.NewBcryptHasher(cfg.BcryptCost))
}
