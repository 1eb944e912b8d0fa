package fingerprint

import "testing"

func TestComputeDeterministic(t *testing.T) {
	p := Params{Cols: 10, Rows: 5, Format: "auto", ContentMode: "file"}
	a := Compute("/tmp/img.png", 123, 456, p)
	b := Compute("/tmp/img.png", 123, 456, p)
	if a != b {
		t.Fatalf("same inputs produced different fingerprints: %s vs %s", a, b)
	}
}

func TestComputeSensitiveToEachField(t *testing.T) {
	base := Params{Cols: 10, Rows: 5, Format: "auto", ContentMode: "file"}
	ref := Compute("/tmp/img.png", 100, 200, base)

	variants := []Fingerprint{
		Compute("/tmp/other.png", 100, 200, base),
		Compute("/tmp/img.png", 101, 200, base),
		Compute("/tmp/img.png", 100, 201, base),
		Compute("/tmp/img.png", 100, 200, Params{Cols: 11, Rows: 5, Format: "auto", ContentMode: "file"}),
		Compute("/tmp/img.png", 100, 200, Params{Cols: 10, Rows: 6, Format: "auto", ContentMode: "file"}),
		Compute("/tmp/img.png", 100, 200, Params{Cols: 10, Rows: 5, Format: "png", ContentMode: "file"}),
		Compute("/tmp/img.png", 100, 200, Params{Cols: 10, Rows: 5, Format: "auto", Quality: 80, ContentMode: "file"}),
		Compute("/tmp/img.png", 100, 200, Params{Cols: 10, Rows: 5, Format: "auto", ContentMode: "bytes"}),
	}
	for i, v := range variants {
		if v == ref {
			t.Errorf("variant %d unexpectedly matched the reference fingerprint", i)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	fp := Compute("/tmp/img.png", 1, 2, Params{})
	s := fp.String()
	back, err := Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	if back != fp {
		t.Fatalf("round trip mismatch: %s vs %s", back, fp)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	if _, err := Parse("not-hex"); err == nil {
		t.Fatal("expected error for non-hex input")
	}
	if _, err := Parse("abcd"); err == nil {
		t.Fatal("expected error for short input")
	}
}
