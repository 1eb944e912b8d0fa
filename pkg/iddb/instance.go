package iddb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gitlab.com/tinyland/lab/ikup/pkg/idspace"
)

// Instance is one row of the instances table: an id bound to the content
// and display parameters that produced it.
type Instance struct {
	Fingerprint   string
	ID            uint32
	IDSpace       idspace.Space
	Path          string
	MtimeNS       int64
	ByteSize      int64
	Cols, Rows    int
	Format        string
	Quality       int
	ChosenQuality *int
	ContentMode   string
	CreatedAt     time.Time
	AccessedAt    time.Time
}

// AssignPolicy controls how Assign picks an id when no existing instance
// matches the fingerprint.
type AssignPolicy struct {
	// ForceID, when non-nil, requires that exact id be used, stealing it
	// from whatever other fingerprint currently holds it in this space.
	ForceID *uint32
	Space   idspace.Space
	Subspace *idspace.Subspace
}

// LookupByFingerprint returns the instance previously assigned to fp, or
// ErrNotFound.
func (db *DB) LookupByFingerprint(fp string) (Instance, error) {
	row := db.sqlDB.QueryRow(`SELECT fingerprint, id, id_space, path, mtime_ns, byte_size,
		cols, rows, format, quality, chosen_quality, content_mode, created_at_ns, accessed_at_ns
		FROM instances WHERE fingerprint = ?`, fp)
	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Instance{}, ErrNotFound
	}
	if err != nil {
		return Instance{}, fmt.Errorf("iddb: lookup %s: %w", fp, err)
	}
	return inst, nil
}

// Assign returns the id bound to fp, creating a new instance row (and, for
// ForceID, stealing the id from its prior owner) when none exists yet.
// An existing row has its accessed_at refreshed before it is returned.
func (db *DB) Assign(fp string, inst Instance, policy AssignPolicy) (Instance, error) {
	if existing, err := db.LookupByFingerprint(fp); err == nil {
		if err := db.touch(fp); err != nil {
			return Instance{}, err
		}
		existing.AccessedAt = time.Now()
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Instance{}, err
	}

	now := time.Now()
	inst.Fingerprint = fp
	inst.IDSpace = policy.Space
	inst.CreatedAt = now
	inst.AccessedAt = now

	tx, err := db.sqlDB.Begin()
	if err != nil {
		return Instance{}, fmt.Errorf("iddb: begin assign: %w", err)
	}
	defer tx.Rollback()

	if policy.ForceID != nil {
		inst.ID = *policy.ForceID
		if err := stealID(tx, policy.Space, inst.ID); err != nil {
			return Instance{}, err
		}
	} else {
		id, err := idspace.RandomID(policy.Space, policy.Subspace)
		if err != nil {
			return Instance{}, fmt.Errorf("iddb: generate id: %w", err)
		}
		// Rejection-sample around any id already live in this space: with
		// the id spaces' bit widths a collision is rare, but the database
		// is the source of truth, not the RNG.
		for attempt := 0; attempt < 16; attempt++ {
			if !idTaken(tx, policy.Space, id) {
				break
			}
			id, err = idspace.RandomID(policy.Space, policy.Subspace)
			if err != nil {
				return Instance{}, fmt.Errorf("iddb: generate id: %w", err)
			}
		}
		inst.ID = id
	}

	if err := insertInstance(tx, inst); err != nil {
		return Instance{}, err
	}
	if err := tx.Commit(); err != nil {
		return Instance{}, fmt.Errorf("iddb: commit assign: %w", err)
	}
	return inst, nil
}

func idTaken(tx *sql.Tx, space idspace.Space, id uint32) bool {
	var n int
	_ = tx.QueryRow(`SELECT COUNT(1) FROM instances WHERE id_space = ? AND id = ?`,
		space.String(), id).Scan(&n)
	return n > 0
}

// stealID reassigns id away from whatever fingerprint currently holds it.
// Every terminal that had recorded an upload status for (space, id) has that
// status moved to DIRTY rather than dropped: the id's bound content just
// changed, so any terminal that believes it already holds a matching upload
// needs to be told otherwise before its next display.
func stealID(tx *sql.Tx, space idspace.Space, id uint32) error {
	if _, err := tx.Exec(`DELETE FROM instances WHERE id_space = ? AND id = ?`, space.String(), id); err != nil {
		return fmt.Errorf("iddb: steal id %d: %w", id, err)
	}
	_, err := tx.Exec(`UPDATE upload_status SET state = ?, dirty_reason = ?, last_progress_at_ns = ?
		WHERE id_space = ? AND id = ?`,
		string(StateDirty), "description changed", time.Now().UnixNano(), space.String(), id)
	if err != nil {
		return fmt.Errorf("iddb: steal id %d upload status: %w", id, err)
	}
	return nil
}

func insertInstance(tx *sql.Tx, inst Instance) error {
	_, err := tx.Exec(`INSERT INTO instances
		(fingerprint, id, id_space, path, mtime_ns, byte_size, cols, rows, format, quality,
		 chosen_quality, content_mode, created_at_ns, accessed_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.Fingerprint, inst.ID, inst.IDSpace.String(), inst.Path, inst.MtimeNS, inst.ByteSize,
		inst.Cols, inst.Rows, inst.Format, inst.Quality, inst.ChosenQuality, inst.ContentMode,
		inst.CreatedAt.UnixNano(), inst.AccessedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("iddb: insert instance: %w", err)
	}
	return nil
}

func (db *DB) touch(fp string) error {
	_, err := db.sqlDB.Exec(`UPDATE instances SET accessed_at_ns = ? WHERE fingerprint = ?`,
		time.Now().UnixNano(), fp)
	if err != nil {
		return fmt.Errorf("iddb: touch %s: %w", fp, err)
	}
	return nil
}

// SetChosenQuality records the quality level the transcode cache settled on
// to hit a max_bytes target, so a later display of the same instance can
// skip straight to it instead of re-running the binary search.
func (db *DB) SetChosenQuality(fp string, quality int) error {
	res, err := db.sqlDB.Exec(`UPDATE instances SET chosen_quality = ? WHERE fingerprint = ?`, quality, fp)
	if err != nil {
		return fmt.Errorf("iddb: set chosen quality: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Forget removes an instance (and its upload status rows) by fingerprint.
func (db *DB) Forget(fp string) error {
	tx, err := db.sqlDB.Begin()
	if err != nil {
		return fmt.Errorf("iddb: begin forget: %w", err)
	}
	defer tx.Rollback()

	var id uint32
	var space string
	err = tx.QueryRow(`SELECT id, id_space FROM instances WHERE fingerprint = ?`, fp).Scan(&id, &space)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("iddb: forget lookup: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM instances WHERE fingerprint = ?`, fp); err != nil {
		return fmt.Errorf("iddb: forget instance: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM upload_status WHERE id_space = ? AND id = ?`, space, id); err != nil {
		return fmt.Errorf("iddb: forget upload status: %w", err)
	}
	return tx.Commit()
}

// List returns every known instance, ordered most-recently-accessed first.
func (db *DB) List() ([]Instance, error) {
	rows, err := db.sqlDB.Query(`SELECT fingerprint, id, id_space, path, mtime_ns, byte_size,
		cols, rows, format, quality, chosen_quality, content_mode, created_at_ns, accessed_at_ns
		FROM instances ORDER BY accessed_at_ns DESC`)
	if err != nil {
		return nil, fmt.Errorf("iddb: list: %w", err)
	}
	defer rows.Close()

	var out []Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("iddb: list scan: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInstance(s scanner) (Instance, error) {
	var inst Instance
	var spaceStr string
	var createdNS, accessedNS int64
	var chosenQuality sql.NullInt64
	if err := s.Scan(&inst.Fingerprint, &inst.ID, &spaceStr, &inst.Path, &inst.MtimeNS, &inst.ByteSize,
		&inst.Cols, &inst.Rows, &inst.Format, &inst.Quality, &chosenQuality, &inst.ContentMode,
		&createdNS, &accessedNS); err != nil {
		return Instance{}, err
	}
	space, err := idspace.ParseSpace(spaceStr)
	if err != nil {
		return Instance{}, err
	}
	inst.IDSpace = space
	inst.CreatedAt = time.Unix(0, createdNS)
	inst.AccessedAt = time.Unix(0, accessedNS)
	if chosenQuality.Valid {
		q := int(chosenQuality.Int64)
		inst.ChosenQuality = &q
	}
	return inst, nil
}
