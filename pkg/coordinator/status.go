package coordinator

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"gitlab.com/tinyland/lab/ikup/pkg/iddb"
)

// Status is a read-only snapshot of this terminal's id database and
// transcode cache, used by the `status` operation to report what state a
// caller would otherwise have to reconstruct from several separate
// inspection commands.
type Status struct {
	TerminalName string
	DatabasePath string

	InstanceCount int
	UploadedCount int
	OldestAccess  time.Time
	NewestAccess  time.Time

	CacheEntries int
	CacheBytes   int64
}

// Status reports the current state of this coordinator's id database and
// transcode cache.
func (c *Coordinator) Status() (Status, error) {
	instances, err := c.db.List()
	if err != nil {
		return Status{}, fmt.Errorf("%w: list instances: %v", ErrIO, err)
	}

	st := Status{
		TerminalName: c.identity.DBName(),
		DatabasePath: c.dbPath,
	}

	space, err := c.cfg.IDDatabase.Space()
	if err == nil {
		for _, inst := range instances {
			if inst.IDSpace != space {
				continue
			}
			st.InstanceCount++
			if st.OldestAccess.IsZero() || inst.AccessedAt.Before(st.OldestAccess) {
				st.OldestAccess = inst.AccessedAt
			}
			if inst.AccessedAt.After(st.NewestAccess) {
				st.NewestAccess = inst.AccessedAt
			}

			status, statusErr := c.db.Status(c.terminalKey(), space, inst.ID)
			if statusErr == nil && status.State == iddb.StateUploaded && status.UploadedFingerprint == inst.Fingerprint {
				st.UploadedCount++
			}
		}
	}

	entries, totalBytes := c.cache.Stats()
	st.CacheEntries = entries
	st.CacheBytes = totalBytes

	return st, nil
}

// String renders a human-readable one-paragraph summary, the format the
// `status` CLI operation prints directly.
func (s Status) String() string {
	age := "never"
	if !s.OldestAccess.IsZero() {
		age = humanize.Time(s.OldestAccess)
	}
	return fmt.Sprintf(
		"terminal %s (%s)\n  instances: %d (%d uploaded)\n  oldest access: %s\n  cache: %d entries, %s",
		s.TerminalName, s.DatabasePath, s.InstanceCount, s.UploadedCount, age,
		s.CacheEntries, humanize.Bytes(uint64(s.CacheBytes)),
	)
}
