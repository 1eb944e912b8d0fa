package coordinator

import (
	"fmt"
	"image"

	"gitlab.com/tinyland/lab/ikup/pkg/transcode"
)

// CacheConvert transcodes img directly into the cache under key, returning
// the resulting Entry, without going through a terminal upload at all.
// This backs the `cache convert` CLI surface used for pre-warming or
// inspecting the cache independently of any particular display.
func (c *Coordinator) CacheConvert(img image.Image, opts transcode.ConvertOptions) (transcode.Entry, error) {
	res, err := transcode.Convert(c.encoder, img, opts)
	if err != nil {
		return transcode.Entry{}, fmt.Errorf("%w: transcode: %v", ErrIO, err)
	}
	key := transcode.Key{Format: res.Format, Cols: res.Cols, Rows: res.Rows, Quality: res.Quality}
	entry, err := c.cache.Put(key, res.Data)
	if err != nil {
		return transcode.Entry{}, fmt.Errorf("%w: cache put: %v", ErrIO, err)
	}
	if res.Impossible {
		entry.Impossible = true
		if err := c.cache.MarkImpossible(key); err != nil {
			return transcode.Entry{}, fmt.Errorf("%w: mark impossible: %v", ErrIO, err)
		}
	}
	return entry, nil
}

// CacheCheck reports whether a cached entry for key already satisfies opts.
// err distinguishes a plain cache miss (transcode.ErrCacheMiss) from the
// entry being on record but unreadable (transcode.ErrMissing,
// transcode.ErrCorrupt); a non-matching-but-present entry is reported via
// the bool return with a nil error.
func (c *Coordinator) CacheCheck(key transcode.Key, opts transcode.CheckOptions) (transcode.Entry, bool, error) {
	_, entry, err := c.cache.Get(key)
	if err != nil {
		return transcode.Entry{}, false, err
	}
	return entry, transcode.Check(entry, opts), nil
}

// CacheList returns every cached transcode entry, most-recently-used first.
func (c *Coordinator) CacheList() []transcode.Entry {
	return c.cache.List()
}

// CacheRemove deletes a single cached entry, ignoring a miss.
func (c *Coordinator) CacheRemove(key transcode.Key) error {
	if err := c.cache.Remove(key); err != nil {
		return fmt.Errorf("%w: cache remove: %v", ErrIO, err)
	}
	return nil
}

// CachePurge removes every cached entry for fingerprint, returning how many
// were removed.
func (c *Coordinator) CachePurge(fingerprint string) int {
	return c.cache.Purge(fingerprint)
}

// CacheStatus reports the cache's current entry count and total byte size.
func (c *Coordinator) CacheStatus() (entries int, totalBytes int64) {
	return c.cache.Stats()
}
