// Package transport implements the Kitty graphics protocol upload
// transports: writing image bytes to the terminal via a real file, via
// inline chunked base64, or declining with a sentinel error for the one
// transport kind ikup does not implement.
package transport

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// field is one key=value pair of an APC transmission header. Using an
// ordered slice instead of a map keeps emitted token order deterministic,
// matching the fixed `i,t,q,m,a,U,f,r,c` sequence terminals are tested
// against.
type field struct {
	key, value string
}

const (
	apcStart = "\x1b_G"
	apcEnd   = "\x1b\\"

	// ChunkSize is the maximum base64-encoded payload size per APC escape,
	// matching the Kitty protocol's documented chunk limit.
	ChunkSize = 4096
)

// Format is the Kitty `f=` transmission format key.
type Format int

const (
	FormatRGBA32 Format = 32
	FormatRGB24  Format = 24
	FormatPNG    Format = 100
)

// transmissionHeader builds the comma-separated `key=value` control data for
// one APC chunk of a multi-chunk transmission, in the fixed token order
// `i,t,q,m,a,U,f,r,c` (continuation chunks pass a nil fields slice and carry
// only `m`).
func transmissionHeader(fields []field, more bool) string {
	m := "m=0"
	if more {
		m = "m=1"
	}
	parts := make([]string, 0, len(fields)+1)
	placed := false
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s=%s", f.key, f.value))
		if f.key == "q" {
			parts = append(parts, m)
			placed = true
		}
	}
	if !placed {
		parts = append(parts, m)
	}
	return strings.Join(parts, ",")
}

// writeChunked base64-encodes data and emits it across as many
// ChunkSize-bounded APC escapes as needed, calling onChunk after each one is
// written so a caller can track upload progress for stall detection.
func writeChunked(w io.Writer, baseFields []field, data []byte, onChunk func(sentBytes int64) error) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	if len(encoded) == 0 {
		// Still emit one empty chunk so the terminal sees a complete,
		// zero-byte transmission rather than nothing at all.
		if _, err := io.WriteString(w, apcStart+transmissionHeader(baseFields, false)+apcEnd); err != nil {
			return fmt.Errorf("transport: write chunk: %w", err)
		}
		if onChunk != nil {
			return onChunk(0)
		}
		return nil
	}

	var sent int64
	for offset := 0; offset < len(encoded); offset += ChunkSize {
		end := offset + ChunkSize
		if end > len(encoded) {
			end = len(encoded)
		}
		more := end < len(encoded)

		fields := baseFields
		if offset > 0 {
			// Continuation chunks carry only the payload and the `m` flag;
			// `a`/`f`/`i` etc. are only meaningful on the first chunk.
			fields = nil
		}

		chunk := apcStart + transmissionHeader(fields, more) + ";" + encoded[offset:end] + apcEnd
		if _, err := io.WriteString(w, chunk); err != nil {
			return fmt.Errorf("transport: write chunk: %w", err)
		}
		sent += int64(end - offset)
		if onChunk != nil {
			if err := onChunk(sent); err != nil {
				return err
			}
		}
	}
	return nil
}
