// Package housekeeping runs the retention purge: terminal notifications
// older than the configured window are deleted on a cron schedule.
package housekeeping

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/wb-go/wbf/zlog"
)

type notificationService interface {
	PurgeExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Cleaner wraps a cron engine with the single purge job.
type Cleaner struct {
	engine    *cron.Cron
	service   notificationService
	spec      string // cron expression, e.g. "0 3 * * *"
	retention time.Duration
}

func NewCleaner(s notificationService, spec string, retention time.Duration) *Cleaner {
	return &Cleaner{
		engine:    cron.New(cron.WithLocation(time.Local)),
		service:   s,
		spec:      spec,
		retention: retention,
	}
}

// Start registers the purge job and starts the cron engine.
func (c *Cleaner) Start() error {
	_, err := c.engine.AddFunc(c.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		purged, err := c.service.PurgeExpired(ctx, c.retention)
		if err != nil {
			zlog.Logger.Error().Err(err).Msg("retention purge failed")
			return
		}

		zlog.Logger.Info().Int64("purged", purged).Msg("retention purge completed")
	})
	if err != nil {
		return err
	}

	c.engine.Start()
	zlog.Logger.Info().Str("spec", c.spec).Dur("retention", c.retention).Msg("housekeeping started")
	return nil
}

// Stop halts the cron engine and waits for a running job to finish.
func (c *Cleaner) Stop() {
	ctx := c.engine.Stop()
	<-ctx.Done()
	zlog.Logger.Info().Msg("housekeeping stopped")
}
