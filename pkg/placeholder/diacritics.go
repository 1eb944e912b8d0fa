package placeholder

import "fmt"

// basePlaceholder is the Unicode Private Use Area codepoint the Kitty
// graphics protocol repurposes as "this cell is part of an image
// placeholder"; terminals that understand the extension render it as one
// cell of whatever image the accompanying diacritics and foreground colour
// identify, instead of its nominal (unassigned) glyph.
const basePlaceholder rune = '\U0010EEEE'

// diacritics is the ordered table of combining marks used to encode a
// small integer (a row index, a column index, or the id byte carried by the
// third diacritic) as a mark stacked on basePlaceholder. It draws from the
// Unicode combining-mark blocks: Combining Diacritical Marks, their Extended
// block, their Supplement, the Marks for Symbols block, and Combining Half
// Marks, in that order. 297 entries covers every column a terminal can
// realistically have plus the full 0-255 byte range.
var diacritics = buildDiacritics()

func buildDiacritics() []rune {
	var out []rune
	appendRange := func(lo, hi rune) {
		for r := lo; r <= hi; r++ {
			out = append(out, r)
		}
	}
	appendRange(0x0300, 0x0357) // Combining Diacritical Marks, first half
	appendRange(0x035D, 0x036F) // Combining Diacritical Marks, remainder
	appendRange(0x1AB0, 0x1AFF) // Combining Diacritical Marks Extended
	appendRange(0x1DC0, 0x1DFF) // Combining Diacritical Marks Supplement
	appendRange(0x20D0, 0x20EF) // Combining Diacritical Marks for Symbols
	appendRange(0xFE20, 0xFE2F) // Combining Half Marks

	const want = 297
	if len(out) > want {
		out = out[:want]
	}
	return out
}

// Diacritic returns the combining mark encoding the non-negative integer n.
func Diacritic(n int) (rune, error) {
	if n < 0 || n >= len(diacritics) {
		return 0, fmt.Errorf("placeholder: index %d out of diacritic table range [0,%d)", n, len(diacritics))
	}
	return diacritics[n], nil
}

// MaxEncodable is the largest integer Diacritic can encode.
func MaxEncodable() int {
	return len(diacritics) - 1
}
