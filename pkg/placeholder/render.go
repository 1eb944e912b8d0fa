package placeholder

import (
	"fmt"
	"strconv"
	"strings"

	"gitlab.com/tinyland/lab/ikup/pkg/formula"
	"gitlab.com/tinyland/lab/ikup/pkg/idspace"
)

// CursorMode selects whether drawing a placeholder grid leaves the cursor
// where the caller left it (the terminal is expected to have scrolled/moved
// it as each placeholder row is written) or saves and restores cursor
// position around the draw so text following the image resumes exactly
// where the caller's cursor was before the call.
type CursorMode int

const (
	// CursorAuto behaves like CursorSave: ikup has no reliable way to probe
	// a terminal's actual cursor-save-stack depth, so the safer default
	// (never leaving the cursor somewhere the caller didn't expect) wins.
	CursorAuto CursorMode = iota
	CursorSave
	CursorNoSave
)

// Advance selects how the cursor moves from one placeholder row to the next
// while a grid is being emitted.
type Advance int

const (
	// AdvanceNewline writes a newline between rows, letting the terminal's
	// own line-wrap/scroll handling place the cursor — the only option that
	// behaves sanely when the image's last row would otherwise run off the
	// bottom of the screen.
	AdvanceNewline Advance = iota
	// AdvanceCursorMove emits an explicit cursor-position escape before each
	// row instead of relying on a newline, for callers drawing into a
	// region where line-wrap is undesirable (e.g. a fixed status area).
	AdvanceCursorMove
)

const (
	csi = "\x1b["
	sgr = "m"
)

// Placement describes one placeholder grid to draw.
type Placement struct {
	ID       uint32
	Space    idspace.Space
	Cols     int
	Rows     int
	Cursor   CursorMode
	Advance  Advance
	Position string // optional formula.Eval expression for absolute placement
	Vars     formula.Vars
}

// Render returns the full escape sequence that draws one placeholder grid:
// an optional absolute cursor move, an optional cursor save, Rows lines of
// Cols placeholder cells each carrying the row/column/colour diacritics and
// foreground-colour SGR for id, and an optional cursor restore.
func Render(p Placement) (string, error) {
	if p.Cols <= 0 || p.Rows <= 0 {
		return "", fmt.Errorf("placeholder: grid must be at least 1x1, got %dx%d", p.Cols, p.Rows)
	}
	if p.Cols-1 > MaxEncodable() || p.Rows-1 > MaxEncodable() {
		return "", fmt.Errorf("placeholder: grid %dx%d exceeds the %d indices the diacritic table can encode", p.Cols, p.Rows, MaxEncodable()+1)
	}

	colour := idspace.IDToCellColour(p.ID, p.Space)
	fg, err := foregroundSGR(colour)
	if err != nil {
		return "", err
	}

	var b strings.Builder

	if p.Position != "" {
		row, col, err := evalPosition(p.Position, p.Vars)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%s%d;%dH", csi, row, col)
	}
	if p.Cursor != CursorNoSave {
		b.WriteString(csi + "s") // SCOSC: ANSI.SYS-style cursor save
	}

	b.WriteString(fg)
	for r := 0; r < p.Rows; r++ {
		rowDiacritic, err := Diacritic(r)
		if err != nil {
			return "", err
		}
		if r > 0 {
			if p.Advance == AdvanceNewline {
				b.WriteByte('\n')
			} else {
				fmt.Fprintf(&b, "%s%dB%s%dG", csi, 1, csi, 1)
			}
		}
		for c := 0; c < p.Cols; c++ {
			colDiacritic, err := Diacritic(c)
			if err != nil {
				return "", err
			}
			b.WriteRune(basePlaceholder)
			b.WriteRune(rowDiacritic)
			b.WriteRune(colDiacritic)
			if colour.Diacritic != nil {
				thirdDiacritic, err := Diacritic(int(*colour.Diacritic))
				if err != nil {
					return "", err
				}
				b.WriteRune(thirdDiacritic)
			}
		}
	}
	b.WriteString(csi + "0" + sgr) // reset SGR so trailing text isn't coloured

	if p.Cursor != CursorNoSave {
		b.WriteString(csi + "u") // SCORC: ANSI.SYS-style cursor restore
	}
	return b.String(), nil
}

// foregroundSGR builds the SGR escape selecting the foreground colour a
// placeholder cell's base character must be drawn in for the terminal to
// recognise which image/cell it names.
func foregroundSGR(c idspace.CellColour) (string, error) {
	switch c.Mode {
	case idspace.ColourIndexed256:
		return csi + "38;5;" + strconv.Itoa(int(c.Index256)) + sgr, nil
	case idspace.ColourDirectRGB:
		return csi + "38;2;" + strconv.Itoa(int(c.RGB[0])) + ";" + strconv.Itoa(int(c.RGB[1])) + ";" + strconv.Itoa(int(c.RGB[2])) + sgr, nil
	default:
		return "", fmt.Errorf("placeholder: unknown colour mode %v", c.Mode)
	}
}

// evalPosition evaluates a position formula pair "rowExpr,colExpr" against
// vars, rounding each to the nearest terminal cell.
func evalPosition(expr string, vars formula.Vars) (row, col int, err error) {
	parts := strings.SplitN(expr, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("placeholder: position %q must be \"rowExpr,colExpr\"", expr)
	}
	rowF, err := formula.Eval(strings.TrimSpace(parts[0]), vars)
	if err != nil {
		return 0, 0, fmt.Errorf("placeholder: position row: %w", err)
	}
	colF, err := formula.Eval(strings.TrimSpace(parts[1]), vars)
	if err != nil {
		return 0, 0, fmt.Errorf("placeholder: position col: %w", err)
	}
	return int(rowF + 0.5), int(colF + 0.5), nil
}
