package coordinator

import (
	"fmt"
	"math/rand"
	"time"

	"gitlab.com/tinyland/lab/ikup/pkg/iddb"
)

// Cleanup purges id database rows older than the configured max age, and
// the least-recently-accessed rows beyond the configured max id count, then
// purges the transcode cache entries belonging to whatever was removed so
// the cache doesn't keep bytes for content no id can reach anymore.
func (c *Coordinator) Cleanup(now time.Time) ([]iddb.RemovedInstance, error) {
	removed, err := c.db.Cleanup(now, c.cfg.IDDatabase.MaxDBAge.Duration, c.cfg.IDDatabase.MaxNumIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: cleanup: %v", ErrIO, err)
	}
	for _, r := range removed {
		c.cache.Purge(r.Fingerprint)
	}
	return removed, nil
}

// MaybeCleanup runs Cleanup with the configured probability instead of on
// a fixed schedule: cheap enough to evaluate on every coordinator
// operation, and avoids needing any cross-process scheduling or a
// background goroutine no caller asked for.
func (c *Coordinator) MaybeCleanup(now time.Time) ([]iddb.RemovedInstance, error) {
	p := c.cfg.IDDatabase.CleanupProbability
	if p <= 0 || rand.Float64() >= p {
		return nil, nil
	}
	return c.Cleanup(now)
}
