package iddb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gitlab.com/tinyland/lab/ikup/pkg/idspace"
)

// UploadState is one state of the per-terminal upload status machine.
type UploadState string

const (
	StateNeedsUpload UploadState = "NEEDS_UPLOAD"
	StateInProgress  UploadState = "IN_PROGRESS"
	StateUploaded    UploadState = "UPLOADED"
	StateDirty       UploadState = "DIRTY"
)

// UploadStatus is the upload_status row for one (terminal, id) pair.
type UploadStatus struct {
	TerminalID          string
	IDSpace             idspace.Space
	ID                  uint32
	State               UploadState
	Transport           string
	StartedAt           time.Time
	LastProgressAt      time.Time
	BytesSent           int64
	TotalBytes          int64
	UploadedAt          time.Time
	UploadedFingerprint string
	DirtyReason         string
}

// IsStalled reports whether an IN_PROGRESS upload has gone silent for
// longer than stallTimeout.
func (s UploadStatus) IsStalled(now time.Time, stallTimeout time.Duration) bool {
	return s.State == StateInProgress && !s.LastProgressAt.IsZero() && now.Sub(s.LastProgressAt) > stallTimeout
}

// Status returns the upload status for (terminalID, space, id), or
// StateNeedsUpload with a zero-value row if none has ever been recorded —
// every id implicitly needs upload to a terminal it has never been sent to.
func (db *DB) Status(terminalID string, space idspace.Space, id uint32) (UploadStatus, error) {
	row := db.sqlDB.QueryRow(`SELECT terminal_id, id_space, id, state, transport, started_at_ns,
		last_progress_at_ns, bytes_sent, total_bytes, uploaded_at_ns, uploaded_fingerprint, dirty_reason
		FROM upload_status WHERE terminal_id = ? AND id_space = ? AND id = ?`,
		terminalID, space.String(), id)
	s, err := scanUploadStatus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return UploadStatus{TerminalID: terminalID, IDSpace: space, ID: id, State: StateNeedsUpload}, nil
	}
	if err != nil {
		return UploadStatus{}, fmt.Errorf("iddb: upload status: %w", err)
	}
	return s, nil
}

// MarkInProgress transitions (terminal, id) to IN_PROGRESS, recording the
// transport and total size of the upload about to begin.
func (db *DB) MarkInProgress(terminalID string, space idspace.Space, id uint32, transport string, totalBytes int64) error {
	now := time.Now().UnixNano()
	_, err := db.sqlDB.Exec(`INSERT INTO upload_status
		(terminal_id, id_space, id, state, transport, started_at_ns, last_progress_at_ns, bytes_sent, total_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(terminal_id, id_space, id) DO UPDATE SET
			state = excluded.state, transport = excluded.transport, started_at_ns = excluded.started_at_ns,
			last_progress_at_ns = excluded.last_progress_at_ns, bytes_sent = 0, total_bytes = excluded.total_bytes,
			uploaded_at_ns = NULL, uploaded_fingerprint = NULL, dirty_reason = NULL`,
		terminalID, space.String(), id, string(StateInProgress), transport, now, now, totalBytes)
	if err != nil {
		return fmt.Errorf("iddb: mark in progress: %w", err)
	}
	return nil
}

// Progress records forward progress on an in-flight upload, refreshing the
// stall-detection timestamp.
func (db *DB) Progress(terminalID string, space idspace.Space, id uint32, bytesSent int64) error {
	res, err := db.sqlDB.Exec(`UPDATE upload_status SET bytes_sent = ?, last_progress_at_ns = ?
		WHERE terminal_id = ? AND id_space = ? AND id = ? AND state = ?`,
		bytesSent, time.Now().UnixNano(), terminalID, space.String(), id, string(StateInProgress))
	if err != nil {
		return fmt.Errorf("iddb: progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkUploaded transitions (terminal, id) to UPLOADED, recording the
// fingerprint of the content that was actually sent so a later `display`
// of the same fingerprint can skip re-upload.
func (db *DB) MarkUploaded(terminalID string, space idspace.Space, id uint32, uploadedFingerprint string) error {
	now := time.Now().UnixNano()
	_, err := db.sqlDB.Exec(`INSERT INTO upload_status
		(terminal_id, id_space, id, state, uploaded_at_ns, uploaded_fingerprint, last_progress_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(terminal_id, id_space, id) DO UPDATE SET
			state = excluded.state, uploaded_at_ns = excluded.uploaded_at_ns,
			uploaded_fingerprint = excluded.uploaded_fingerprint, last_progress_at_ns = excluded.last_progress_at_ns,
			dirty_reason = NULL`,
		terminalID, space.String(), id, string(StateUploaded), now, uploadedFingerprint, now)
	if err != nil {
		return fmt.Errorf("iddb: mark uploaded: %w", err)
	}
	return nil
}

// MarkDirty transitions (terminal, id) to DIRTY, meaning the terminal's
// copy of the image is known stale and must be re-uploaded before its next
// display.
func (db *DB) MarkDirty(terminalID string, space idspace.Space, id uint32, reason string) error {
	now := time.Now().UnixNano()
	_, err := db.sqlDB.Exec(`INSERT INTO upload_status
		(terminal_id, id_space, id, state, dirty_reason, last_progress_at_ns)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(terminal_id, id_space, id) DO UPDATE SET
			state = excluded.state, dirty_reason = excluded.dirty_reason, last_progress_at_ns = excluded.last_progress_at_ns`,
		terminalID, space.String(), id, string(StateDirty), reason, now)
	if err != nil {
		return fmt.Errorf("iddb: mark dirty: %w", err)
	}
	return nil
}

// ListForTerminal returns every upload status row recorded for terminalID.
func (db *DB) ListForTerminal(terminalID string) ([]UploadStatus, error) {
	rows, err := db.sqlDB.Query(`SELECT terminal_id, id_space, id, state, transport, started_at_ns,
		last_progress_at_ns, bytes_sent, total_bytes, uploaded_at_ns, uploaded_fingerprint, dirty_reason
		FROM upload_status WHERE terminal_id = ?`, terminalID)
	if err != nil {
		return nil, fmt.Errorf("iddb: list for terminal: %w", err)
	}
	defer rows.Close()

	var out []UploadStatus
	for rows.Next() {
		s, err := scanUploadStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("iddb: list for terminal scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanUploadStatus(s scanner) (UploadStatus, error) {
	var st UploadStatus
	var spaceStr string
	var transport, uploadedFP, dirtyReason sql.NullString
	var startedNS, lastProgressNS, uploadedNS sql.NullInt64
	var bytesSent, totalBytes sql.NullInt64

	if err := s.Scan(&st.TerminalID, &spaceStr, &st.ID, &st.State, &transport, &startedNS,
		&lastProgressNS, &bytesSent, &totalBytes, &uploadedNS, &uploadedFP, &dirtyReason); err != nil {
		return UploadStatus{}, err
	}
	space, err := idspace.ParseSpace(spaceStr)
	if err != nil {
		return UploadStatus{}, err
	}
	st.IDSpace = space
	st.Transport = transport.String
	st.BytesSent = bytesSent.Int64
	st.TotalBytes = totalBytes.Int64
	st.UploadedFingerprint = uploadedFP.String
	st.DirtyReason = dirtyReason.String
	if startedNS.Valid {
		st.StartedAt = time.Unix(0, startedNS.Int64)
	}
	if lastProgressNS.Valid {
		st.LastProgressAt = time.Unix(0, lastProgressNS.Int64)
	}
	if uploadedNS.Valid {
		st.UploadedAt = time.Unix(0, uploadedNS.Int64)
	}
	return st, nil
}
