package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"kestrel/internal/config"
	"kestrel/internal/database"
	"kestrel/internal/support"
)

const retentionLockKey = "kestrel:leader:event_retention"

// StartRetentionRoutine prunes suspicious events past the configured
// horizon. Leader-gated so only one instance sweeps; block records and
// audit entries are never touched.
func StartRetentionRoutine(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	err := support.RunWithLeader(ctx, retentionLockKey, support.DefaultLeadershipTTL, runRetentionLoop)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Event retention routine stopped", "error", err)
	}
}

func runRetentionLoop(ctx context.Context) {
	interval := config.GetConfig().Retention.SweepTimer.Duration()
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOnce(ctx)
		}
	}
}

func sweepOnce(ctx context.Context) {
	horizonDays := config.GetConfig().Retention.EventHorizonDays
	if horizonDays == 0 {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -int(horizonDays))
	removed, err := database.PruneEventsBefore(ctx, cutoff)
	if err != nil {
		log.Error("Event retention sweep failed", "error", err)
		return
	}

	if removed > 0 {
		log.Info("Event retention sweep completed", "removed", removed, "cutoff", cutoff)
	}
}
