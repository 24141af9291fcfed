package service

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StartSessionSweeper expires idle sessions on a cron schedule. Expiry only
// forgets the in-memory ledger; orphaned vouchers are already journaled.
func StartSessionSweeper(store *SessionStore, schedule string, log *zap.Logger) (*cron.Cron, error) {
	if schedule == "" {
		schedule = "@every 1m"
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	_, err := c.AddFunc(schedule, func() {
		if n := store.Sweep(); n > 0 {
			log.Info("[SESSION-SWEEPER] expired idle sessions",
				zap.Int("expired", n),
				zap.Int("open", store.Len()),
			)
		}
	})
	if err != nil {
		return nil, err
	}
	log.Info("[SESSION-SWEEPER] started",
		zap.String("schedule", schedule),
		zap.Duration("ttl", store.TTL()),
	)
	c.Start()
	return c, nil
}
