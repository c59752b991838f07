package devserver

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"taskchat/pkg/devserver/storage"
	"taskchat/pkg/logger"
	"taskchat/pkg/telemetry"
)

// StartRetention starts a cron-scheduled sweeper that physically removes
// tombstoned messages whose deletion is older than ttl. Returns a cancel
// func; a disabled/empty schedule yields a no-op cancel.
func StartRetention(ctx context.Context, st *storage.Store, cronExpr string, ttl time.Duration) (context.CancelFunc, error) {
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", cronExpr)
		return nil, fmt.Errorf("invalid retention cron expression: %s", cronExpr)
	}

	logger.Info("retention_enabled", "cron", cronExpr, "ttl", ttl)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, st, cronExpr, ttl)
	return cancel, nil
}

// RunRetentionOnce triggers a single sweep immediately (tests, admin use).
func RunRetentionOnce(st *storage.Store, ttl time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-ttl).UnixNano()
	n, err := st.PurgeDeleted(cutoff)
	if err != nil {
		return n, err
	}
	if n > 0 {
		telemetry.RetentionPurged.Add(float64(n))
		logger.Info("retention_purged", "count", n)
	}
	return n, nil
}

// runScheduler computes the next cron tick via gronx and sleeps until it.
func runScheduler(ctx context.Context, st *storage.Store, cronExpr string, ttl time.Duration) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait < time.Second {
			wait = time.Second
		}
		select {
		case <-time.After(wait):
			if _, err := RunRetentionOnce(st, ttl); err != nil {
				logger.Error("retention_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}
