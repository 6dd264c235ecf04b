package sqlite

import (
	"context"
	"github.com/medcircle/medresident/internal/errors"
	"log/slog"
	"time"
)

// startOptimizer runs PRAGMA optimize every interval until ctx is done.
// See https://www.sqlite.org/pragma.html#pragma_optimize.
func (db *Database) startOptimizer(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			db.optimize(ctx)
		}
	}
}

func (db *Database) optimize(ctx context.Context) {
	start := time.Now()
	if _, err := db.ReadWrite.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
		db.logger.LogAttrs(ctx, slog.LevelError, "optimize database failed",
			errors.SlogError(errors.Wrap(err, "optimize database")))
		return
	}
	db.logger.LogAttrs(ctx, slog.LevelDebug, "optimized database", slog.Duration("duration", time.Since(start)))
}
