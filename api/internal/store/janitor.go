package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Purger deletes audit rows older than a retention period.
type Purger interface {
	PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error)
}

// RunJanitor purges rows older than retention once at start and then every
// interval, until ctx is done.
func RunJanitor(ctx context.Context, p Purger, interval, retention time.Duration, log zerolog.Logger) {
	purge := func() {
		qctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		n, err := p.PurgeOlderThan(qctx, retention)
		if err != nil {
			log.Warn().Err(err).Msg("purge generations")
			return
		}
		if n > 0 {
			log.Info().Int64("deleted", n).Dur("retention", retention).Msg("purged old generations")
		}
	}

	purge()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			purge()
		}
	}
}
