package placeholder

import (
	"strings"
	"testing"

	"gitlab.com/tinyland/lab/ikup/pkg/formula"
	"gitlab.com/tinyland/lab/ikup/pkg/idspace"
)

func TestDiacriticBounds(t *testing.T) {
	if _, err := Diacritic(-1); err == nil {
		t.Fatal("expected error for negative index")
	}
	if _, err := Diacritic(MaxEncodable() + 1); err == nil {
		t.Fatal("expected error for out-of-range index")
	}
	if _, err := Diacritic(0); err != nil {
		t.Fatalf("Diacritic(0): %v", err)
	}
	if _, err := Diacritic(MaxEncodable()); err != nil {
		t.Fatalf("Diacritic(max): %v", err)
	}
}

func TestDiacriticsAreDistinct(t *testing.T) {
	seen := make(map[rune]bool, len(diacritics))
	for _, r := range diacritics {
		if seen[r] {
			t.Fatalf("duplicate diacritic rune %U", r)
		}
		seen[r] = true
	}
}

func TestRenderEmitsGridOfExpectedSize(t *testing.T) {
	out, err := Render(Placement{ID: 0x01020304, Space: idspace.Space32Bit, Cols: 3, Rows: 2})
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(out, string(basePlaceholder)); got != 3*2 {
		t.Fatalf("expected %d placeholder cells, got %d", 3*2, got)
	}
}

func TestRenderRejectsEmptyGrid(t *testing.T) {
	if _, err := Render(Placement{ID: 1, Cols: 0, Rows: 1}); err == nil {
		t.Fatal("expected error for zero-width grid")
	}
}

func TestRenderRejectsGridLargerThanDiacriticTable(t *testing.T) {
	_, err := Render(Placement{ID: 1, Cols: MaxEncodable() + 2, Rows: 1})
	if err == nil {
		t.Fatal("expected error for a grid wider than the diacritic table")
	}
}

func TestRenderIndexedColourUsesIndexedSGR(t *testing.T) {
	out, err := Render(Placement{ID: 0xAB, Space: idspace.Space8Bit, Cols: 1, Rows: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "38;5;171") { // 0xAB == 171
		t.Fatalf("expected indexed-colour SGR for index 171, got %q", out)
	}
}

func TestRenderDirectRGBUsesTrueColourSGR(t *testing.T) {
	out, err := Render(Placement{ID: 0x00102030, Space: idspace.Space24Bit, Cols: 1, Rows: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "38;2;16;32;48") {
		t.Fatalf("expected direct RGB SGR 16;32;48, got %q", out)
	}
}

func TestRenderCursorSaveRestoreWrapsOutput(t *testing.T) {
	saved, err := Render(Placement{ID: 1, Cols: 1, Rows: 1, Cursor: CursorSave})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(saved, "\x1b[s") || !strings.HasSuffix(saved, "\x1b[u") {
		t.Fatalf("expected cursor save/restore wrapping, got %q", saved)
	}

	unsaved, err := Render(Placement{ID: 1, Cols: 1, Rows: 1, Cursor: CursorNoSave})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(unsaved, "\x1b[s") {
		t.Fatalf("CursorNoSave should not emit a save escape, got %q", unsaved)
	}
}

func TestRenderAdvanceNewlineBetweenRows(t *testing.T) {
	out, err := Render(Placement{ID: 1, Cols: 1, Rows: 2, Advance: AdvanceNewline})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "\n") {
		t.Fatal("expected a newline between placeholder rows")
	}
}

func TestRenderPositionEvaluatesFormula(t *testing.T) {
	out, err := Render(Placement{
		ID: 1, Cols: 1, Rows: 1,
		Position: "tr/2, tc/2",
		Vars:     formula.Vars{TR: 10, TC: 20},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "\x1b[5;10H") {
		t.Fatalf("expected cursor move to row 5 col 10, got %q", out)
	}
}

func TestRenderRejectsMalformedPosition(t *testing.T) {
	_, err := Render(Placement{ID: 1, Cols: 1, Rows: 1, Position: "tr"})
	if err == nil {
		t.Fatal("expected error for a position missing the column half")
	}
}
