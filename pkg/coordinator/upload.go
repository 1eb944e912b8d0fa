package coordinator

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"gitlab.com/tinyland/lab/ikup/pkg/config"
	"gitlab.com/tinyland/lab/ikup/pkg/iddb"
	"gitlab.com/tinyland/lab/ikup/pkg/idspace"
	"gitlab.com/tinyland/lab/ikup/pkg/terminal"
	"gitlab.com/tinyland/lab/ikup/pkg/transcode"
	"gitlab.com/tinyland/lab/ikup/pkg/transport"
)

// UploadOptions extends AssignIDOptions with the upload-transport decision
// inputs: which transport to use, and whether to bypass or force the
// decision table's no-op paths.
type UploadOptions struct {
	AssignIDOptions

	Transport   transport.Kind
	ForceUpload bool
	NoUpload    bool
	MaxBytes    int64
	OnProgress  func(sentBytes int64) error

	// Display sets the wire a= action to "transmit and display" (T) instead
	// of "transmit only" (t). Upload callers leave this false; Display sets
	// it before delegating to Upload.
	Display bool
}

// Validate rejects option combinations that can never be jointly honored.
func (opts UploadOptions) Validate() error {
	if opts.ForceUpload && opts.NoUpload {
		return fmt.Errorf("%w: --force-upload and --no-upload are mutually exclusive", ErrInvalidArg)
	}
	return nil
}

// Upload assigns opts an id (see AssignID) and then, following the upload
// decision table, sends it to the terminal only when the terminal's copy
// does not already match: already UPLOADED with a matching fingerprint, or
// IN_PROGRESS and not stalled, are both no-ops. Everything else (DIRTY,
// NEEDS_UPLOAD, a stalled IN_PROGRESS, or a fingerprint mismatch meaning the
// id's content changed underneath it) triggers a fresh upload.
func (c *Coordinator) Upload(w io.Writer, opts UploadOptions) (iddb.Instance, error) {
	if err := opts.Validate(); err != nil {
		return iddb.Instance{}, err
	}

	inst, err := c.AssignID(opts.AssignIDOptions)
	if err != nil {
		return iddb.Instance{}, err
	}

	space, _, err := c.resolveSpace(opts.AssignIDOptions)
	if err != nil {
		return iddb.Instance{}, err
	}

	if !opts.ForceUpload {
		status, err := c.db.Status(c.terminalKey(), space, inst.ID)
		if err != nil {
			return iddb.Instance{}, fmt.Errorf("%w: upload status: %v", ErrIO, err)
		}

		matches := status.UploadedFingerprint == inst.Fingerprint
		switch {
		case matches && status.State == iddb.StateUploaded:
			return inst, nil
		case matches && status.State == iddb.StateInProgress && !status.IsStalled(time.Now(), c.cfg.Upload.StallTimeout.Duration):
			return inst, nil
		}
	}

	if err := c.performUpload(w, inst, space, opts); err != nil {
		return iddb.Instance{}, err
	}
	return inst, nil
}

// performUpload transcodes inst's source image to fit opts.MaxBytes (using
// the cache when a matching entry already exists), then hands the bytes to
// the configured transport.
//
// The wire transmission format is always PNG regardless of what format the
// transcode cache entry is stored as: PNG is the only container format the
// Kitty graphics protocol's f= key actually defines for compressed payloads,
// so jpeg/gif/bmp transcode results (useful for the local on-disk cache
// budget) are re-encoded to PNG bytes for the wire, not sent as-is.
func (c *Coordinator) performUpload(w io.Writer, inst iddb.Instance, space idspace.Space, opts UploadOptions) error {
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = sizeCapForTransport(opts.Transport, c.cfg)
	}

	key := transcode.Key{
		Fingerprint: inst.Fingerprint,
		Format:      "png",
		Cols:        inst.Cols,
		Rows:        inst.Rows,
		Quality:     0,
	}
	if inst.ChosenQuality != nil {
		key.Quality = *inst.ChosenQuality
	}

	data, _, err := c.cache.Get(key)
	if err != nil {
		img, err := imaging.Open(inst.Path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: %s", ErrPathGone, inst.Path)
			}
			return fmt.Errorf("%w: decode %s: %v", ErrIO, inst.Path, err)
		}

		size := terminal.GetSize()
		cellW, cellH := size.CellW, size.CellH

		res, err := transcode.Convert(c.encoder, img, transcode.ConvertOptions{
			Format:   "png",
			Cols:     inst.Cols,
			Rows:     inst.Rows,
			CellW:    cellW,
			CellH:    cellH,
			MaxBytes: maxBytes,
		})
		if err != nil {
			return fmt.Errorf("%w: transcode: %v", ErrIO, err)
		}
		data = res.Data
		key.Quality = res.Quality

		if res.Quality != 0 {
			_ = c.db.SetChosenQuality(inst.Fingerprint, res.Quality)
		}
		if _, err := c.cache.Put(key, data); err != nil {
			c.logger.Warn("transcode cache put failed", "error", err)
		}
	}

	kind := opts.Transport
	if kind == "" {
		kind, _ = c.cfg.Upload.TransportKind()
	}

	tr, err := transport.New(kind, c.uploadDir())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransportUnsupported, err)
	}

	if err := c.db.MarkInProgress(c.terminalKey(), space, inst.ID, string(kind), int64(len(data))); err != nil {
		return fmt.Errorf("%w: mark in progress: %v", ErrIO, err)
	}

	progress := func(sent int64) error {
		if err := c.db.Progress(c.terminalKey(), space, inst.ID, sent); err != nil {
			return err
		}
		if opts.OnProgress != nil {
			return opts.OnProgress(sent)
		}
		return nil
	}

	uploadErr := tr.Upload(w, data, transport.UploadOptions{
		ID:         inst.ID,
		Format:     transport.FormatPNG,
		Cols:       inst.Cols,
		Rows:       inst.Rows,
		Display:    opts.Display,
		OnProgress: progress,
	})
	if uploadErr != nil {
		if errors.Is(uploadErr, transport.ErrUnsupported) {
			return fmt.Errorf("%w: %v", ErrTransportUnsupported, uploadErr)
		}
		return fmt.Errorf("%w: upload: %v", ErrIO, uploadErr)
	}

	if err := c.db.MarkUploaded(c.terminalKey(), space, inst.ID, inst.Fingerprint); err != nil {
		return fmt.Errorf("%w: mark uploaded: %v", ErrIO, err)
	}
	return nil
}

func sizeCapForTransport(kind transport.Kind, cfg *config.Config) int64 {
	switch kind {
	case transport.KindFile:
		return cfg.Upload.FileMaxSize
	case transport.KindDirect, transport.KindStream:
		return cfg.Upload.StreamMaxSize
	default:
		return 0
	}
}

// uploadDir is where the file transport writes the real files it hands off
// to the terminal; it lives alongside the transcode cache rather than
// needing its own config knob.
func (c *Coordinator) uploadDir() string {
	return filepath.Join(c.cfg.Cache.Dir, "uploads")
}
