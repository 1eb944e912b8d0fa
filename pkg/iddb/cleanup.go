package iddb

import (
	"fmt"
	"time"

	"gitlab.com/tinyland/lab/ikup/pkg/idspace"
)

// RemovedInstance identifies an instance purged by Cleanup, so callers can
// also evict any transcode-cache entries keyed on the same id.
type RemovedInstance struct {
	Fingerprint string
	IDSpace     idspace.Space
	ID          uint32
}

// Cleanup purges instances older than maxAge (by access time) and, if the
// remaining count still exceeds maxIDs, the least-recently-accessed
// instances until it no longer does. Pass maxAge <= 0 or maxIDs <= 0 to skip
// that half of the rule.
func (db *DB) Cleanup(now time.Time, maxAge time.Duration, maxIDs int) ([]RemovedInstance, error) {
	tx, err := db.sqlDB.Begin()
	if err != nil {
		return nil, fmt.Errorf("iddb: begin cleanup: %w", err)
	}
	defer tx.Rollback()

	var removed []RemovedInstance

	if maxAge > 0 {
		cutoff := now.Add(-maxAge).UnixNano()
		rows, err := tx.Query(`SELECT fingerprint, id_space, id FROM instances WHERE accessed_at_ns < ?`, cutoff)
		if err != nil {
			return nil, fmt.Errorf("iddb: cleanup age scan: %w", err)
		}
		aged, err := collectRemoved(rows)
		if err != nil {
			return nil, err
		}
		removed = append(removed, aged...)
		if _, err := tx.Exec(`DELETE FROM instances WHERE accessed_at_ns < ?`, cutoff); err != nil {
			return nil, fmt.Errorf("iddb: cleanup age delete: %w", err)
		}
	}

	if maxIDs > 0 {
		var count int
		if err := tx.QueryRow(`SELECT COUNT(1) FROM instances`).Scan(&count); err != nil {
			return nil, fmt.Errorf("iddb: cleanup count: %w", err)
		}
		if excess := count - maxIDs; excess > 0 {
			rows, err := tx.Query(`SELECT fingerprint, id_space, id FROM instances
				ORDER BY accessed_at_ns ASC LIMIT ?`, excess)
			if err != nil {
				return nil, fmt.Errorf("iddb: cleanup lru scan: %w", err)
			}
			lru, err := collectRemoved(rows)
			if err != nil {
				return nil, err
			}
			removed = append(removed, lru...)
			for _, r := range lru {
				if _, err := tx.Exec(`DELETE FROM instances WHERE fingerprint = ?`, r.Fingerprint); err != nil {
					return nil, fmt.Errorf("iddb: cleanup lru delete: %w", err)
				}
			}
		}
	}

	for _, r := range removed {
		if _, err := tx.Exec(`DELETE FROM upload_status WHERE id_space = ? AND id = ?`,
			r.IDSpace.String(), r.ID); err != nil {
			return nil, fmt.Errorf("iddb: cleanup upload status: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("iddb: commit cleanup: %w", err)
	}
	return removed, nil
}

func collectRemoved(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
	Close() error
}) ([]RemovedInstance, error) {
	defer rows.Close()
	var out []RemovedInstance
	for rows.Next() {
		var r RemovedInstance
		var spaceStr string
		if err := rows.Scan(&r.Fingerprint, &spaceStr, &r.ID); err != nil {
			return nil, fmt.Errorf("iddb: scan removed instance: %w", err)
		}
		space, err := idspace.ParseSpace(spaceStr)
		if err != nil {
			return nil, err
		}
		r.IDSpace = space
		out = append(out, r)
	}
	return out, rows.Err()
}
