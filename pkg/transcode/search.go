package transcode

import (
	"fmt"
	"image"
)

// ConvertOptions describes the target rendering for Convert.
type ConvertOptions struct {
	Format           string
	Cols, Rows       int
	CellW, CellH     int
	MaxBytes         int64 // 0 = no cap; encode once at the given quality
	PreferredQuality int   // quality for uncapped encodes and the dimension search (0 = encoder default, 85 for jpeg); the quality search spans 5-95 regardless
}

// Result is the outcome of a Convert call: the encoded bytes plus whatever
// quality/dimensions were actually used to hit the byte-size target.
type Result struct {
	Data       []byte
	Format     string
	Cols, Rows int
	Quality    int // quality passed to the encoder; 0 = encoder default; lossless formats ignore it

	// Impossible is set when even a 1x1 encoding exceeds MaxBytes: Data still
	// holds that 1x1 encoding (the best available), but no rendering of this
	// image can satisfy the requested cap.
	Impossible bool
}

const (
	minSearchQuality = 5
	maxSearchQuality = 95
	minScaleSteps    = 10 // binary-search iterations when shrinking dimensions
)

func isLossy(format string) bool {
	switch format {
	case "jpeg", "jpg":
		return true
	default:
		return false
	}
}

// Convert encodes img per opts, and when MaxBytes is set, searches for the
// highest-quality (lossy formats) or largest-dimension (all formats)
// encoding that still fits the cap. Lossy formats are tried by quality
// first; if even the lowest quality still overflows the cap, the search
// falls through to shrinking dimensions, same as a lossless format would.
func Convert(enc Encoder, img image.Image, opts ConvertOptions) (Result, error) {
	if opts.CellW <= 0 {
		opts.CellW = 8
	}
	if opts.CellH <= 0 {
		opts.CellH = 16
	}

	if opts.MaxBytes <= 0 {
		data, err := enc.Encode(img, opts.Format, opts.Cols, opts.Rows, opts.CellW, opts.CellH, opts.PreferredQuality)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: data, Format: opts.Format, Cols: opts.Cols, Rows: opts.Rows, Quality: opts.PreferredQuality}, nil
	}

	if isLossy(opts.Format) {
		if res, ok, err := searchQuality(enc, img, opts); err != nil {
			return Result{}, err
		} else if ok {
			return res, nil
		}
		// Even the lowest quality overflows the cap: shrink dimensions too.
	}

	return searchScale(enc, img, opts)
}

// searchQuality binary-searches the jpeg quality knob for the highest value
// whose encoded size still fits opts.MaxBytes. ok is false if no quality in
// range fits, meaning the caller must also shrink dimensions.
func searchQuality(enc Encoder, img image.Image, opts ConvertOptions) (Result, bool, error) {
	lo, hi := minSearchQuality, maxSearchQuality
	best := -1
	var bestData []byte

	for lo <= hi {
		mid := (lo + hi) / 2
		data, err := enc.Encode(img, opts.Format, opts.Cols, opts.Rows, opts.CellW, opts.CellH, mid)
		if err != nil {
			return Result{}, false, fmt.Errorf("transcode: encode at quality %d: %w", mid, err)
		}
		if int64(len(data)) <= opts.MaxBytes {
			best = mid
			bestData = data
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	if best == -1 {
		return Result{}, false, nil
	}
	return Result{Data: bestData, Format: opts.Format, Cols: opts.Cols, Rows: opts.Rows, Quality: best}, true, nil
}

// searchScale binary-searches a linear shrink factor on cols/rows for the
// largest rendering that still fits opts.MaxBytes, falling back to a single
// 1x1 cell if no size in the search range fits.
func searchScale(enc Encoder, img image.Image, opts ConvertOptions) (Result, error) {
	quality := opts.PreferredQuality
	if quality <= 0 && isLossy(opts.Format) {
		quality = minSearchQuality
	}

	loScale, hiScale := 0.05, 1.0
	var best Result
	haveBest := false

	for i := 0; i < minScaleSteps; i++ {
		mid := (loScale + hiScale) / 2
		cols := maxInt(1, int(float64(opts.Cols)*mid))
		rows := maxInt(1, int(float64(opts.Rows)*mid))

		data, err := enc.Encode(img, opts.Format, cols, rows, opts.CellW, opts.CellH, quality)
		if err != nil {
			return Result{}, fmt.Errorf("transcode: encode at scale %.3f: %w", mid, err)
		}
		if int64(len(data)) <= opts.MaxBytes {
			best = Result{Data: data, Format: opts.Format, Cols: cols, Rows: rows, Quality: quality}
			haveBest = true
			loScale = mid
		} else {
			hiScale = mid
		}
	}

	if haveBest {
		return best, nil
	}

	// Nothing in the search range fit. Fall through to the absolute floor: a
	// single cell. If even that overflows the cap, the request is simply
	// impossible to satisfy at this content; return the 1x1 encoding anyway
	// (the best available) with Impossible set, rather than fail outright.
	data, err := enc.Encode(img, opts.Format, 1, 1, opts.CellW, opts.CellH, quality)
	if err != nil {
		return Result{}, fmt.Errorf("transcode: encode at minimum scale: %w", err)
	}
	return Result{
		Data: data, Format: opts.Format, Cols: 1, Rows: 1, Quality: quality,
		Impossible: int64(len(data)) > opts.MaxBytes,
	}, nil
}
