// Package fingerprint computes the 128-bit content+parameter fingerprint
// used to recognize when a (path, display parameters) pair has already been
// assigned an id, so repeat displays of the same image reuse it instead of
// burning a fresh one.
package fingerprint

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/zeebo/xxh3"
)

// Fingerprint is a 128-bit content+parameter digest, printed as 32 lowercase
// hex characters.
type Fingerprint [16]byte

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// IsZero reports whether f is the zero value (never produced by Compute; a
// convenience for callers distinguishing "no fingerprint yet").
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// Params is the set of display parameters that change a placeholder's
// rendering, and therefore distinguish otherwise-identical content.
type Params struct {
	Cols, Rows  int
	Format      string // e.g. "auto", "png", "jpeg"
	Quality     int    // 0 = unspecified/lossless
	ContentMode string // "file" or "bytes" / "stdin"
}

// Compute derives a Fingerprint from the canonical absolute path, the file's
// modification time and size (its content-change proxy), and the display
// Params. Two distinct files that happen to produce identical encoded bytes
// still fingerprint differently, because path/mtime/size are part of the
// digest input — the fingerprint identifies "this exact source as last
// seen", not merely "these exact pixels".
func Compute(path string, mtimeUnixNano int64, byteSize int64, p Params) Fingerprint {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	abs = filepath.Clean(abs)

	var buf []byte
	buf = appendString(buf, abs)
	buf = appendInt64(buf, mtimeUnixNano)
	buf = appendInt64(buf, byteSize)
	buf = appendInt64(buf, int64(p.Cols))
	buf = appendInt64(buf, int64(p.Rows))
	buf = appendString(buf, p.Format)
	buf = appendInt64(buf, int64(p.Quality))
	buf = appendString(buf, p.ContentMode)

	h := xxh3.Hash128(buf)
	var fp Fingerprint
	binary.BigEndian.PutUint64(fp[0:8], h.Hi)
	binary.BigEndian.PutUint64(fp[8:16], h.Lo)
	return fp
}

func appendString(buf []byte, s string) []byte {
	buf = appendInt64(buf, int64(len(s)))
	return append(buf, s...)
}

func appendInt64(buf []byte, v int64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(v))
	return append(buf, tmp[:]...)
}

// Parse decodes a fingerprint previously rendered by String.
func Parse(s string) (Fingerprint, error) {
	var fp Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil {
		return fp, err
	}
	if len(b) != len(fp) {
		return fp, fmt.Errorf("fingerprint: decoded value has %d bytes, want %d", len(b), len(fp))
	}
	copy(fp[:], b)
	return fp, nil
}
