// Package main is the entry point for the volunteerhub API server.
//
// main stays minimal:
//  1. load configuration
//  2. build the logger
//  3. open the store selected by STORE_DRIVER
//  4. hand everything to internal/server and block in Start
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/sakif/volunteerhub/internal/auth"
	"github.com/sakif/volunteerhub/internal/config"
	"github.com/sakif/volunteerhub/internal/logging"
	"github.com/sakif/volunteerhub/internal/repository"
	"github.com/sakif/volunteerhub/internal/repository/mongostore"
	"github.com/sakif/volunteerhub/internal/repository/sqlite"
	"github.com/sakif/volunteerhub/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "volunteerhub:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Server.Env)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	store, err := openStore(cfg.Store, logger)
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret)
	if err != nil {
		store.Close(context.Background())
		return err
	}

	srv, err := server.New(server.Config{
		Port:              cfg.Server.Port,
		Production:        cfg.IsProduction(),
		StrictOwnership:   cfg.Server.StrictOwnership,
		CORSOrigins:       cfg.Server.CORSOrigins,
		AuthRatePerSec:    cfg.Auth.RatePerSec,
		AuthRateBurst:     cfg.Auth.RateBurst,
		ReconcileSchedule: cfg.Scheduler.ReconcileSchedule,
	}, store, tokens, logger)
	if err != nil {
		store.Close(context.Background())
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Start()
}

// openStore connects to the configured backend. For Mongo the indexes the
// submission path relies on (unique postId+applicantEmail, unique email) are
// created before the server takes traffic.
func openStore(cfg config.StoreConfig, logger *zap.Logger) (repository.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		db, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("store ready", zap.String("driver", cfg.Driver), zap.String("path", cfg.SQLitePath))
		return db, nil

	default:
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		store, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, err
		}
		if err := mongostore.EnsureIndexes(ctx, store.Database()); err != nil {
			store.Close(context.Background())
			return nil, fmt.Errorf("ensuring indexes: %w", err)
		}
		logger.Info("store ready", zap.String("driver", cfg.Driver), zap.String("database", cfg.MongoDatabase))
		return store, nil
	}
}
