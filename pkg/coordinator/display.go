package coordinator

import (
	"fmt"
	"io"

	"gitlab.com/tinyland/lab/ikup/pkg/formula"
	"gitlab.com/tinyland/lab/ikup/pkg/iddb"
	"gitlab.com/tinyland/lab/ikup/pkg/placeholder"
)

// DisplayOptions extends UploadOptions with the Unicode placeholder
// rendering parameters.
type DisplayOptions struct {
	UploadOptions

	Cursor   placeholder.CursorMode
	Advance  placeholder.Advance
	Position string
	Vars     formula.Vars
}

// Display uploads inst (unless NoUpload is set) and writes the Unicode
// placeholder escape sequence that draws it.
func (c *Coordinator) Display(w io.Writer, opts DisplayOptions) (iddb.Instance, error) {
	if err := opts.UploadOptions.Validate(); err != nil {
		return iddb.Instance{}, err
	}

	var inst iddb.Instance
	var err error

	if opts.NoUpload {
		inst, err = c.AssignID(opts.AssignIDOptions)
	} else {
		opts.UploadOptions.Display = true
		inst, err = c.Upload(w, opts.UploadOptions)
	}
	if err != nil {
		return iddb.Instance{}, err
	}

	space, _, err := c.resolveSpace(opts.AssignIDOptions)
	if err != nil {
		return iddb.Instance{}, err
	}

	out, err := placeholder.Render(placeholder.Placement{
		ID:       inst.ID,
		Space:    space,
		Cols:     inst.Cols,
		Rows:     inst.Rows,
		Cursor:   opts.Cursor,
		Advance:  opts.Advance,
		Position: opts.Position,
		Vars:     opts.Vars,
	})
	if err != nil {
		return iddb.Instance{}, fmt.Errorf("%w: render placeholder: %v", ErrInvalidArg, err)
	}

	if _, err := io.WriteString(w, out); err != nil {
		return iddb.Instance{}, fmt.Errorf("%w: write placeholder: %v", ErrIO, err)
	}
	return inst, nil
}
