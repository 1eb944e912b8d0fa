package coordinator

import (
	"fmt"
	"os"

	"gitlab.com/tinyland/lab/ikup/pkg/fingerprint"
	"gitlab.com/tinyland/lab/ikup/pkg/iddb"
	"gitlab.com/tinyland/lab/ikup/pkg/idspace"
)

// AssignIDOptions describes the (path, display parameters) pair an id is
// wanted for. Space and Subspace, when nil, default to the coordinator's
// configured id space.
type AssignIDOptions struct {
	Path        string
	Cols, Rows  int
	Format      string
	Quality     int
	ContentMode string

	ForceID  *uint32
	Space    *idspace.Space
	Subspace *idspace.Subspace
}

func (c *Coordinator) resolveSpace(opts AssignIDOptions) (idspace.Space, *idspace.Subspace, error) {
	if opts.Space != nil {
		return *opts.Space, opts.Subspace, nil
	}
	space, err := c.cfg.IDDatabase.Space()
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrInvalidArg, err)
	}
	if opts.Subspace != nil {
		return space, opts.Subspace, nil
	}
	sub, err := c.cfg.IDDatabase.Subspace()
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrInvalidArg, err)
	}
	return space, sub, nil
}

// AssignID binds opts to an id, reusing a prior assignment when the
// fingerprint of this exact (path, mtime, size, display parameters) tuple
// has already been assigned one, or minting a fresh one otherwise. It does
// not transcode or upload anything.
func (c *Coordinator) AssignID(opts AssignIDOptions) (iddb.Instance, error) {
	if opts.Path == "" {
		return iddb.Instance{}, fmt.Errorf("%w: empty path", ErrInvalidArg)
	}

	info, err := os.Stat(opts.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return iddb.Instance{}, fmt.Errorf("%w: %s", ErrPathGone, opts.Path)
		}
		return iddb.Instance{}, fmt.Errorf("%w: stat %s: %v", ErrIO, opts.Path, err)
	}

	space, subspace, err := c.resolveSpace(opts)
	if err != nil {
		return iddb.Instance{}, err
	}

	contentMode := opts.ContentMode
	if contentMode == "" {
		contentMode = "file"
	}

	params := fingerprint.Params{
		Cols:        opts.Cols,
		Rows:        opts.Rows,
		Format:      opts.Format,
		Quality:     opts.Quality,
		ContentMode: contentMode,
	}
	fp := fingerprint.Compute(opts.Path, info.ModTime().UnixNano(), info.Size(), params)

	inst := iddb.Instance{
		Path:        opts.Path,
		MtimeNS:     info.ModTime().UnixNano(),
		ByteSize:    info.Size(),
		Cols:        opts.Cols,
		Rows:        opts.Rows,
		Format:      opts.Format,
		Quality:     opts.Quality,
		ContentMode: contentMode,
	}
	policy := iddb.AssignPolicy{
		ForceID:  opts.ForceID,
		Space:    space,
		Subspace: subspace,
	}

	assigned, err := c.db.Assign(fp.String(), inst, policy)
	if err != nil {
		return iddb.Instance{}, fmt.Errorf("%w: assign id: %v", ErrIO, err)
	}
	return assigned, nil
}
