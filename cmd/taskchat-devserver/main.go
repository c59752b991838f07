package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"taskchat/pkg/banner"
	"taskchat/pkg/config"
	"taskchat/pkg/devserver"
	"taskchat/pkg/devserver/storage"
	"taskchat/pkg/logger"
	"taskchat/pkg/shutdown"
)

// build metadata - set via ldflags during release
var version = "dev"

func main() {
	_ = godotenv.Load(".env")
	_, _, _, cfgVal, setFlags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])
	cfg, _, err := config.LoadEffective(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.InitWithLevel(cfg.Logging.Level)

	dbPath := cfg.DevServer.DBPath
	if dbPath == "" {
		dbPath = "./.database"
	}
	st, err := storage.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open storage at %s: %v", dbPath, err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("storage_close_failed", "error", err)
		}
	}()

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if cfg.DevServer.Retention.Enabled {
		stopRetention, err := devserver.StartRetention(ctx, st, cfg.DevServer.Retention.Cron, cfg.RetentionTTL())
		if err != nil {
			log.Fatalf("failed to start retention: %v", err)
		}
		defer stopRetention()
	}

	srv := devserver.New(st, devserver.Options{
		Token:     cfg.DevServer.Token,
		RateRPS:   cfg.DevServer.RateLimit.RPS,
		RateBurst: cfg.DevServer.RateLimit.Burst,
	})
	addr := cfg.DevAddr()
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	banner.Print(addr, dbPath, version, cfg.DevServer.Retention.Enabled)
	logger.Info("devserver_starting", "addr", addr, "db", dbPath, "version", version)

	errC := make(chan error, 1)
	go func() { errC <- httpSrv.ListenAndServe() }()

	select {
	case err := <-errC:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	case <-ctx.Done():
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutCancel()
		if err := httpSrv.Shutdown(shutCtx); err != nil {
			logger.Error("shutdown_failed", "error", err)
		}
		logger.Info("devserver_stopped")
	}
}
