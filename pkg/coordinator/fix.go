package coordinator

import (
	"fmt"
	"io"
	"os"

	"gitlab.com/tinyland/lab/ikup/pkg/iddb"
	"gitlab.com/tinyland/lab/ikup/pkg/idspace"
)

// FixQuery is one (id, path, display parameters) row of a `fix` request:
// the caller's record of what it last displayed, to be reconciled against
// the id database and terminal state.
type FixQuery struct {
	ID uint32
	AssignIDOptions
}

// FixResult reports what Fix did for one query row.
type FixResult struct {
	Query    FixQuery
	Instance iddb.Instance
	Uploaded bool
	Err      error
}

// Fix reconciles each query's believed (id, path) binding against the id
// database: if the terminal's upload status for that id already matches a
// description equal to what the query declares, it's left alone; otherwise
// it's uploaded fresh. A query whose path no longer exists on disk fails
// with ErrPathGone when the id database has no instance recorded for that
// id, or when the recorded instance's parameters differ from what the caller
// declared — an id whose file vanished but whose last-known parameters still
// match is left as-is, since nothing has actually changed from the
// terminal's point of view.
func (c *Coordinator) Fix(w io.Writer, queries []FixQuery) []FixResult {
	results := make([]FixResult, 0, len(queries))
	for _, q := range queries {
		results = append(results, c.fixOne(w, q))
	}
	return results
}

func (c *Coordinator) fixOne(w io.Writer, q FixQuery) FixResult {
	space, _, err := c.resolveSpace(q.AssignIDOptions)
	if err != nil {
		return FixResult{Query: q, Err: err}
	}

	if _, statErr := os.Stat(q.Path); statErr != nil && os.IsNotExist(statErr) {
		known, lookupErr := c.knownInstanceForID(space, q.ID)
		if lookupErr != nil {
			return FixResult{Query: q, Err: fmt.Errorf("%w: %s", ErrPathGone, q.Path)}
		}
		if instanceDiffers(known, q) {
			return FixResult{Query: q, Instance: known, Err: fmt.Errorf("%w: %s", ErrPathGone, q.Path)}
		}
		return FixResult{Query: q, Instance: known}
	}

	inst, err := c.AssignID(q.AssignIDOptions)
	if err != nil {
		return FixResult{Query: q, Err: err}
	}

	status, err := c.db.Status(c.terminalKey(), space, inst.ID)
	if err != nil {
		return FixResult{Query: q, Instance: inst, Err: fmt.Errorf("%w: upload status: %v", ErrIO, err)}
	}
	if status.State == iddb.StateUploaded && status.UploadedFingerprint == inst.Fingerprint {
		return FixResult{Query: q, Instance: inst}
	}

	uploaded, err := c.Upload(w, UploadOptions{AssignIDOptions: q.AssignIDOptions})
	if err != nil {
		return FixResult{Query: q, Instance: inst, Err: err}
	}
	return FixResult{Query: q, Instance: uploaded, Uploaded: true}
}

// knownInstanceForID looks up whatever instance the id database last
// recorded for (space, id), scanning List since there is no direct
// (space, id) lookup index — Fix is not a hot path, so an O(n) scan over
// the known-instance set is an acceptable cost here.
func (c *Coordinator) knownInstanceForID(space idspace.Space, id uint32) (iddb.Instance, error) {
	instances, err := c.db.List()
	if err != nil {
		return iddb.Instance{}, fmt.Errorf("%w: list instances: %v", ErrIO, err)
	}
	for _, inst := range instances {
		if inst.IDSpace == space && inst.ID == id {
			return inst, nil
		}
	}
	return iddb.Instance{}, fmt.Errorf("coordinator: no known instance for id %d: %w", id, iddb.ErrNotFound)
}

// instanceDiffers reports whether known's recorded display parameters
// disagree with what the query declares, meaning the caller's belief about
// this id's content has drifted from what the id database last assigned it.
func instanceDiffers(known iddb.Instance, q FixQuery) bool {
	return known.Cols != q.Cols ||
		known.Rows != q.Rows ||
		known.Format != q.Format ||
		known.ContentMode != q.ContentMode
}
