package transport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// ErrUnsupported is returned by Transport implementations that decline to
// perform an upload (currently only the "temp" transport kind).
var ErrUnsupported = errors.New("transport: unsupported transport kind")

// Kind names one of the upload transports a coordinator can pick between.
type Kind string

const (
	// KindFile has ikup write the encoded image to a real file on disk and
	// tells the terminal to read it directly (`t=f`) — fastest for a
	// terminal sharing ikup's filesystem, at the cost of leaving a file
	// behind until the terminal reads it.
	KindFile Kind = "file"

	// KindDirect inlines the image as base64 chunks in the escape sequence
	// stream itself (`t=d`) — works over any connection, including a
	// remote SSH session with no shared filesystem.
	KindDirect Kind = "direct"

	// KindStream is an alias of KindDirect: it emits the same chunked
	// `t=d` bytes.
	KindStream Kind = "stream"

	// KindTemp would hand the terminal a path under its own temp-file
	// convention and rely on the terminal to delete it; ikup does not
	// implement it (see Temp.Upload).
	KindTemp Kind = "temp"
)

// UploadOptions carries the per-upload parameters a Transport needs beyond
// the raw bytes.
type UploadOptions struct {
	ID     uint32
	Format Format
	Cols   int
	Rows   int
	// Display, when true, has the terminal transmit-and-display the image
	// immediately (`a=T`) instead of only transmitting it for a later
	// placeholder reference (`a=t`).
	Display bool
	// OnProgress is called after each unit of work is sent, with the
	// cumulative byte count, so a caller can refresh a stall-detection
	// timestamp. May be nil.
	OnProgress func(sentBytes int64) error
}

// Transport writes the APC escape sequences needed to upload data for id to
// w, which the caller has already connected to the target terminal.
type Transport interface {
	Upload(w io.Writer, data []byte, opts UploadOptions) error
}

// baseFields builds the `i,t,q,a,U,f,r,c` fields shared by both transports,
// in the fixed emission order the wire format documents (`m` is inserted
// after `q` by transmissionHeader itself since it varies per chunk).
func baseFields(opts UploadOptions, transmission byte, quiet byte) []field {
	action := byte('t')
	if opts.Display {
		action = 'T'
	}
	fields := []field{
		{"i", strconv.FormatUint(uint64(opts.ID), 10)},
		{"t", string(transmission)},
		{"q", string(quiet)},
		{"a", string(action)},
		{"U", "1"},
		{"f", strconv.Itoa(int(opts.Format))},
		{"r", strconv.Itoa(opts.Rows)},
		{"c", strconv.Itoa(opts.Cols)},
	}
	return fields
}

// Direct implements KindDirect/KindStream: the encoded image is inlined as
// base64 chunks in the escape sequence stream (`t=d`).
type Direct struct {
	// Synchronous is true for KindDirect and false for KindStream. It does
	// not change the emitted bytes: both send q=2 and write every chunk
	// without waiting for a terminal response.
	Synchronous bool
}

// Upload implements Transport.
func (d Direct) Upload(w io.Writer, data []byte, opts UploadOptions) error {
	quiet := byte('2') // suppress OK responses but keep error responses
	fields := baseFields(opts, 'd', quiet)
	return writeChunked(w, fields, data, opts.OnProgress)
}

// File implements KindFile: the encoded image is written to disk under dir
// and the terminal is told to read it directly (`t=f`). The file is left
// in place for the terminal to consume; callers that want it removed after
// an ack should do so themselves once upload completes.
type File struct {
	Dir string
}

// Upload implements Transport.
func (f File) Upload(w io.Writer, data []byte, opts UploadOptions) error {
	if f.Dir == "" {
		return fmt.Errorf("transport: File.Dir is required")
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("transport: mkdir %s: %w", f.Dir, err)
	}

	tmp, err := os.CreateTemp(f.Dir, fmt.Sprintf("ikup-%d-*.bin", opts.ID))
	if err != nil {
		return fmt.Errorf("transport: create upload file: %w", err)
	}
	path := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(path)
		return fmt.Errorf("transport: write upload file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("transport: close upload file: %w", err)
	}

	fields := baseFields(opts, 'f', '2')
	encodedPath := pathToHex(filepath.Clean(path))

	if err := writeSingle(w, fields, encodedPath); err != nil {
		return err
	}
	if opts.OnProgress != nil {
		return opts.OnProgress(int64(len(data)))
	}
	return nil
}

func writeSingle(w io.Writer, fields []field, hexPayload string) error {
	chunk := apcStart + transmissionHeader(fields, false) + ";" + hexPayload + apcEnd
	_, err := io.WriteString(w, chunk)
	if err != nil {
		return fmt.Errorf("transport: write file-transport escape: %w", err)
	}
	return nil
}

func pathToHex(path string) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 0, len(path)*2)
	for i := 0; i < len(path); i++ {
		b := path[i]
		out = append(out, hexDigits[b>>4], hexDigits[b&0x0f])
	}
	return string(out)
}

// Temp is the declined KindTemp transport: the Kitty protocol's `t=t`
// temp-file convention requires deleting the file out from under the
// terminal once it has read it, with no portable signal for when that is
// safe; ikup does not implement it and always returns ErrUnsupported.
type Temp struct{}

// Upload implements Transport; it always fails.
func (Temp) Upload(io.Writer, []byte, UploadOptions) error {
	return ErrUnsupported
}

// New returns the Transport for kind, or ErrUnsupported for KindTemp. dir is
// only consulted for KindFile.
func New(kind Kind, dir string) (Transport, error) {
	switch kind {
	case KindDirect:
		return Direct{Synchronous: true}, nil
	case KindStream:
		return Direct{Synchronous: false}, nil
	case KindFile:
		return File{Dir: dir}, nil
	case KindTemp:
		return Temp{}, ErrUnsupported
	default:
		return nil, fmt.Errorf("transport: unknown kind %q", kind)
	}
}
