// Package coordinator wires the id space, fingerprint, id database, transcode
// cache, transport, and placeholder packages together into the top-level
// operations a caller actually wants: assign an id, upload an image, display
// it, and keep its terminal-side state in sync as files change on disk.
package coordinator

import "errors"

// Sentinel errors realizing the error-kind table: coordinator operations
// wrap their failures in one of these (with context via fmt.Errorf), so
// callers can distinguish recoverable conditions with errors.Is. CacheCheck
// is the exception: it returns pkg/transcode's cache errors unwrapped.
var (
	ErrInvalidArg           = errors.New("coordinator: invalid argument")
	ErrResourceBusy         = errors.New("coordinator: resource busy")
	ErrUploadStalled        = errors.New("coordinator: upload stalled")
	ErrTransportUnsupported = errors.New("coordinator: transport unsupported")
	ErrCacheMiss            = errors.New("coordinator: cache miss")
	ErrCacheCorrupt         = errors.New("coordinator: cache entry corrupt")
	ErrPathGone             = errors.New("coordinator: source path no longer exists")
	ErrIO                   = errors.New("coordinator: I/O error")
)
