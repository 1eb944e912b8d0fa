package transcode

// CheckOptions describes what a caller requires of a cached entry for it to
// be reused instead of re-encoding.
type CheckOptions struct {
	Format     string // "" or "auto" accepts any cached format
	Cols, Rows int    // 0 disables the corresponding dimension check
	MaxBytes   int64  // 0 disables the byte-size check
}

// Check reports whether entry satisfies opts: same format (unless the
// caller didn't care), exact equality on whichever dimension(s) the caller
// specified (other dimensions unconstrained, no tolerance), and byte size
// within the requested cap.
func Check(entry Entry, opts CheckOptions) bool {
	if opts.Format != "" && opts.Format != "auto" && entry.Key.Format != opts.Format {
		return false
	}
	if opts.Cols > 0 && entry.Key.Cols != opts.Cols {
		return false
	}
	if opts.Rows > 0 && entry.Key.Rows != opts.Rows {
		return false
	}
	if opts.MaxBytes > 0 && entry.ByteSize > opts.MaxBytes {
		return false
	}
	return true
}
