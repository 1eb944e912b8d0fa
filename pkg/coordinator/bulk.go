package coordinator

import (
	"fmt"
	"io"

	"gitlab.com/tinyland/lab/ikup/pkg/iddb"
	"gitlab.com/tinyland/lab/ikup/pkg/idspace"
)

// Reupload uploads opts unconditionally, bypassing the upload decision
// table's no-op paths even if the terminal's copy already matches.
func (c *Coordinator) Reupload(w io.Writer, opts UploadOptions) (iddb.Instance, error) {
	opts.ForceUpload = true
	return c.Upload(w, opts)
}

// IDSelector names the ids a bulk Dirty/Forget call applies to: either an
// explicit list, or every id currently known in the resolved id space.
type IDSelector struct {
	IDs   []uint32
	All   bool
	Space *idspace.Space
}

// Dirty marks every selected id DIRTY for this terminal, meaning the next
// upload/display of it cannot take the no-op path even if the terminal's
// last-known copy otherwise matches.
func (c *Coordinator) Dirty(sel IDSelector, reason string) error {
	space, err := c.resolveSelectorSpace(sel)
	if err != nil {
		return err
	}
	ids, err := c.resolveSelectorIDs(sel, space)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := c.db.MarkDirty(c.terminalKey(), space, id, reason); err != nil {
			return fmt.Errorf("%w: mark dirty id %d: %v", ErrIO, id, err)
		}
	}
	return nil
}

// Forget removes every selected id's instance and upload-status rows from
// the id database entirely, and purges any transcode cache entries for
// their fingerprints, so a later display of the same content mints a fresh
// id rather than rebinding the old one.
func (c *Coordinator) Forget(sel IDSelector) error {
	space, err := c.resolveSelectorSpace(sel)
	if err != nil {
		return err
	}
	instances, err := c.db.List()
	if err != nil {
		return fmt.Errorf("%w: list instances: %v", ErrIO, err)
	}

	ids, err := c.resolveSelectorIDs(sel, space)
	if err != nil {
		return err
	}
	want := make(map[uint32]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	for _, inst := range instances {
		if inst.IDSpace != space || !want[inst.ID] {
			continue
		}
		if err := c.db.Forget(inst.Fingerprint); err != nil {
			return fmt.Errorf("%w: forget id %d: %v", ErrIO, inst.ID, err)
		}
		c.cache.Purge(inst.Fingerprint)
	}
	return nil
}

// MarkUploaded records id as UPLOADED for fingerprint without performing a
// transport upload, for callers that know by other means (a cooperating
// process, a prior run of the same command) that the terminal already holds
// a matching copy.
func (c *Coordinator) MarkUploaded(id uint32, fingerprint string, space *idspace.Space) error {
	sp, err := c.resolveSelectorSpace(IDSelector{Space: space})
	if err != nil {
		return err
	}
	if err := c.db.MarkUploaded(c.terminalKey(), sp, id, fingerprint); err != nil {
		return fmt.Errorf("%w: mark uploaded id %d: %v", ErrIO, id, err)
	}
	return nil
}

func (c *Coordinator) resolveSelectorSpace(sel IDSelector) (idspace.Space, error) {
	if sel.Space != nil {
		return *sel.Space, nil
	}
	space, err := c.cfg.IDDatabase.Space()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArg, err)
	}
	return space, nil
}

func (c *Coordinator) resolveSelectorIDs(sel IDSelector, space idspace.Space) ([]uint32, error) {
	if !sel.All {
		return sel.IDs, nil
	}
	instances, err := c.db.List()
	if err != nil {
		return nil, fmt.Errorf("%w: list instances: %v", ErrIO, err)
	}
	var ids []uint32
	for _, inst := range instances {
		if inst.IDSpace == space {
			ids = append(ids, inst.ID)
		}
	}
	return ids, nil
}
