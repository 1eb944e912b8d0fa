package coordinator

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/ikup/pkg/config"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.IDDatabase.Dir = t.TempDir()
	cfg.Cache.Dir = t.TempDir()

	c, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// writeTestPNG writes a tiny solid-colour PNG to dir and returns its path.
func writeTestPNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return path
}

func TestAssignIDCreatesAndReusesInstance(t *testing.T) {
	c := newTestCoordinator(t)
	path := writeTestPNG(t, t.TempDir(), "a.png")

	opts := AssignIDOptions{Path: path, Cols: 10, Rows: 5, Format: "png", ContentMode: "file"}
	first, err := c.AssignID(opts)
	if err != nil {
		t.Fatalf("AssignID: %v", err)
	}
	if first.ID == 0 {
		t.Fatal("expected non-zero id")
	}

	second, err := c.AssignID(opts)
	if err != nil {
		t.Fatalf("AssignID (reuse): %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected reused id %d, got %d", first.ID, second.ID)
	}
}

func TestAssignIDRejectsMissingPath(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.AssignID(AssignIDOptions{Path: filepath.Join(t.TempDir(), "missing.png"), Cols: 1, Rows: 1})
	if err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestUploadWritesEscapeSequenceAndMarksUploaded(t *testing.T) {
	c := newTestCoordinator(t)
	path := writeTestPNG(t, t.TempDir(), "a.png")

	var buf bytes.Buffer
	inst, err := c.Upload(&buf, UploadOptions{
		AssignIDOptions: AssignIDOptions{Path: path, Cols: 10, Rows: 5, Format: "png", ContentMode: "file"},
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected upload to write an APC escape sequence")
	}
	if !bytes.Contains(buf.Bytes(), []byte("\x1b_G")) {
		t.Fatalf("output does not contain an APC escape: %q", buf.String())
	}

	space, err := c.cfg.IDDatabase.Space()
	if err != nil {
		t.Fatal(err)
	}
	status, err := c.db.Status(c.terminalKey(), space, inst.ID)
	if err != nil {
		t.Fatal(err)
	}
	if status.UploadedFingerprint != inst.Fingerprint {
		t.Fatalf("expected uploaded fingerprint to match instance fingerprint")
	}
}

func TestUploadIsNoOpWhenAlreadyUploadedWithMatchingFingerprint(t *testing.T) {
	c := newTestCoordinator(t)
	path := writeTestPNG(t, t.TempDir(), "a.png")
	opts := UploadOptions{AssignIDOptions: AssignIDOptions{Path: path, Cols: 10, Rows: 5, Format: "png", ContentMode: "file"}}

	var first bytes.Buffer
	if _, err := c.Upload(&first, opts); err != nil {
		t.Fatalf("first Upload: %v", err)
	}

	var second bytes.Buffer
	if _, err := c.Upload(&second, opts); err != nil {
		t.Fatalf("second Upload: %v", err)
	}
	if second.Len() != 0 {
		t.Fatalf("expected second upload to be a no-op, got %d bytes", second.Len())
	}
}

func TestUploadForceUploadBypassesNoOp(t *testing.T) {
	c := newTestCoordinator(t)
	path := writeTestPNG(t, t.TempDir(), "a.png")
	opts := UploadOptions{AssignIDOptions: AssignIDOptions{Path: path, Cols: 10, Rows: 5, Format: "png", ContentMode: "file"}}

	var first bytes.Buffer
	if _, err := c.Upload(&first, opts); err != nil {
		t.Fatalf("first Upload: %v", err)
	}

	opts.ForceUpload = true
	var second bytes.Buffer
	if _, err := c.Upload(&second, opts); err != nil {
		t.Fatalf("forced Upload: %v", err)
	}
	if second.Len() == 0 {
		t.Fatal("expected forced upload to write bytes even though already uploaded")
	}
}

func TestUploadRejectsForceAndNoUploadTogether(t *testing.T) {
	c := newTestCoordinator(t)
	path := writeTestPNG(t, t.TempDir(), "a.png")
	opts := UploadOptions{
		AssignIDOptions: AssignIDOptions{Path: path, Cols: 10, Rows: 5, Format: "png", ContentMode: "file"},
		ForceUpload:     true,
		NoUpload:        true,
	}

	var buf bytes.Buffer
	if _, err := c.Upload(&buf, opts); !errors.Is(err, ErrInvalidArg) {
		t.Fatalf("expected ErrInvalidArg, got %v", err)
	}
}

func TestDisplayRejectsForceAndNoUploadTogether(t *testing.T) {
	c := newTestCoordinator(t)
	path := writeTestPNG(t, t.TempDir(), "a.png")

	var buf bytes.Buffer
	_, err := c.Display(&buf, DisplayOptions{
		UploadOptions: UploadOptions{
			AssignIDOptions: AssignIDOptions{Path: path, Cols: 10, Rows: 5, Format: "png", ContentMode: "file"},
			ForceUpload:     true,
			NoUpload:        true,
		},
	})
	if !errors.Is(err, ErrInvalidArg) {
		t.Fatalf("expected ErrInvalidArg, got %v", err)
	}
}

func TestDisplayUsesTransmitAndDisplayAction(t *testing.T) {
	c := newTestCoordinator(t)
	path := writeTestPNG(t, t.TempDir(), "a.png")

	var buf bytes.Buffer
	_, err := c.Display(&buf, DisplayOptions{
		UploadOptions: UploadOptions{AssignIDOptions: AssignIDOptions{Path: path, Cols: 10, Rows: 5, Format: "png", ContentMode: "file"}},
	})
	if err != nil {
		t.Fatalf("Display: %v", err)
	}
	out := buf.String()
	if !bytes.Contains([]byte(out), []byte("a=T")) {
		t.Fatalf("expected a=T action in upload escape, got %q", out)
	}
	if !bytes.Contains([]byte(out), []byte("\U0010EEEE")) {
		t.Fatalf("expected placeholder grid in output, got %q", out)
	}
}

func TestDisplayNoUploadSkipsTransmission(t *testing.T) {
	c := newTestCoordinator(t)
	path := writeTestPNG(t, t.TempDir(), "a.png")

	var buf bytes.Buffer
	_, err := c.Display(&buf, DisplayOptions{
		UploadOptions: UploadOptions{
			AssignIDOptions: AssignIDOptions{Path: path, Cols: 10, Rows: 5, Format: "png", ContentMode: "file"},
			NoUpload:        true,
		},
	})
	if err != nil {
		t.Fatalf("Display: %v", err)
	}
	if bytes.Contains(buf.Bytes(), []byte("\x1b_G")) {
		t.Fatalf("expected no APC escape with NoUpload set, got %q", buf.String())
	}
}

func TestFixUploadsWhenNotUploaded(t *testing.T) {
	c := newTestCoordinator(t)
	path := writeTestPNG(t, t.TempDir(), "a.png")

	results := c.Fix(&bytes.Buffer{}, []FixQuery{
		{AssignIDOptions: AssignIDOptions{Path: path, Cols: 10, Rows: 5, Format: "png", ContentMode: "file"}},
	})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	if !results[0].Uploaded {
		t.Fatal("expected Fix to upload an instance with no prior upload status")
	}
}

func TestFixIsNoOpWhenAlreadyUploaded(t *testing.T) {
	c := newTestCoordinator(t)
	path := writeTestPNG(t, t.TempDir(), "a.png")
	opts := AssignIDOptions{Path: path, Cols: 10, Rows: 5, Format: "png", ContentMode: "file"}

	if _, err := c.Upload(&bytes.Buffer{}, UploadOptions{AssignIDOptions: opts}); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	results := c.Fix(&bytes.Buffer{}, []FixQuery{{AssignIDOptions: opts}})
	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	if results[0].Uploaded {
		t.Fatal("expected Fix to be a no-op for an already-uploaded matching instance")
	}
}

func TestFixReportsPathGoneWithNoKnownInstance(t *testing.T) {
	c := newTestCoordinator(t)
	missing := filepath.Join(t.TempDir(), "gone.png")

	results := c.Fix(&bytes.Buffer{}, []FixQuery{
		{ID: 42, AssignIDOptions: AssignIDOptions{Path: missing, Cols: 10, Rows: 5}},
	})
	if results[0].Err == nil {
		t.Fatal("expected an error for a missing path with no known instance")
	}
}

func TestDirtyForcesReuploadEvenIfMatching(t *testing.T) {
	c := newTestCoordinator(t)
	path := writeTestPNG(t, t.TempDir(), "a.png")
	opts := UploadOptions{AssignIDOptions: AssignIDOptions{Path: path, Cols: 10, Rows: 5, Format: "png", ContentMode: "file"}}

	inst, err := c.Upload(&bytes.Buffer{}, opts)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if err := c.Dirty(IDSelector{IDs: []uint32{inst.ID}}, "test"); err != nil {
		t.Fatalf("Dirty: %v", err)
	}

	var buf bytes.Buffer
	if _, err := c.Upload(&buf, opts); err != nil {
		t.Fatalf("Upload after Dirty: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected re-upload after Dirty even though fingerprint still matches")
	}
}

func TestForgetRemovesInstanceAndCacheEntries(t *testing.T) {
	c := newTestCoordinator(t)
	path := writeTestPNG(t, t.TempDir(), "a.png")
	opts := UploadOptions{AssignIDOptions: AssignIDOptions{Path: path, Cols: 10, Rows: 5, Format: "png", ContentMode: "file"}}

	inst, err := c.Upload(&bytes.Buffer{}, opts)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if err := c.Forget(IDSelector{IDs: []uint32{inst.ID}}); err != nil {
		t.Fatalf("Forget: %v", err)
	}

	instances, err := c.db.List()
	if err != nil {
		t.Fatal(err)
	}
	for _, i := range instances {
		if i.ID == inst.ID {
			t.Fatalf("expected id %d to be forgotten", inst.ID)
		}
	}
	if entries, _ := c.cache.Stats(); entries != 0 {
		t.Fatalf("expected transcode cache purged, still has %d entries", entries)
	}
}

func TestListFormatsInstances(t *testing.T) {
	c := newTestCoordinator(t)
	path := writeTestPNG(t, t.TempDir(), "a.png")
	if _, err := c.AssignID(AssignIDOptions{Path: path, Cols: 10, Rows: 5, Format: "png", ContentMode: "file"}); err != nil {
		t.Fatalf("AssignID: %v", err)
	}

	out, err := c.List(ListOptions{Format: "%i:%p\n"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !bytes.Contains([]byte(out), []byte(path)) {
		t.Fatalf("expected formatted output to contain path, got %q", out)
	}
}

func TestListQueryFiltersByIDsAndPaths(t *testing.T) {
	c := newTestCoordinator(t)
	dir := t.TempDir()
	pathA := writeTestPNG(t, dir, "a.png")
	pathB := writeTestPNG(t, dir, "b.png")
	instA, err := c.AssignID(AssignIDOptions{Path: pathA, Cols: 10, Rows: 5, Format: "png", ContentMode: "file"})
	if err != nil {
		t.Fatalf("AssignID a: %v", err)
	}
	if _, err := c.AssignID(AssignIDOptions{Path: pathB, Cols: 10, Rows: 5, Format: "png", ContentMode: "file"}); err != nil {
		t.Fatalf("AssignID b: %v", err)
	}

	out, err := c.List(ListOptions{Format: "%p\n", Query: ListQuery{IDs: []uint32{instA.ID}}})
	if err != nil {
		t.Fatalf("List by ids: %v", err)
	}
	if !bytes.Contains([]byte(out), []byte(pathA)) || bytes.Contains([]byte(out), []byte(pathB)) {
		t.Fatalf("expected only %s, got %q", pathA, out)
	}

	out, err = c.List(ListOptions{Format: "%p\n", Query: ListQuery{Paths: []string{pathB}}})
	if err != nil {
		t.Fatalf("List by paths: %v", err)
	}
	if !bytes.Contains([]byte(out), []byte(pathB)) || bytes.Contains([]byte(out), []byte(pathA)) {
		t.Fatalf("expected only %s, got %q", pathB, out)
	}

	out, err = c.List(ListOptions{Format: "%p\n", Query: ListQuery{Last: 1}})
	if err != nil {
		t.Fatalf("List last 1: %v", err)
	}
	if !bytes.Contains([]byte(out), []byte(pathB)) || bytes.Contains([]byte(out), []byte(pathA)) {
		t.Fatalf("expected last-accessed-first to keep only %s, got %q", pathB, out)
	}
}

func TestListRejectsDanglingVerb(t *testing.T) {
	c := newTestCoordinator(t)
	if _, err := c.List(ListOptions{Format: "%i%"}); err == nil {
		t.Fatal("expected error for dangling %% at end of format")
	}
}

func TestStatusReportsCountsAndCacheStats(t *testing.T) {
	c := newTestCoordinator(t)
	path := writeTestPNG(t, t.TempDir(), "a.png")

	if _, err := c.Upload(&bytes.Buffer{}, UploadOptions{
		AssignIDOptions: AssignIDOptions{Path: path, Cols: 10, Rows: 5, Format: "png", ContentMode: "file"},
	}); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	st, err := c.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.InstanceCount != 1 {
		t.Fatalf("InstanceCount = %d, want 1", st.InstanceCount)
	}
	if st.UploadedCount != 1 {
		t.Fatalf("UploadedCount = %d, want 1", st.UploadedCount)
	}
	if st.CacheEntries == 0 {
		t.Fatal("expected at least one transcode cache entry")
	}
	if st.String() == "" {
		t.Fatal("expected a non-empty human-readable summary")
	}
}

func TestCleanupRemovesAgedInstances(t *testing.T) {
	c := newTestCoordinator(t)
	path := writeTestPNG(t, t.TempDir(), "a.png")
	if _, err := c.AssignID(AssignIDOptions{Path: path, Cols: 10, Rows: 5, Format: "png", ContentMode: "file"}); err != nil {
		t.Fatalf("AssignID: %v", err)
	}
	c.cfg.IDDatabase.MaxDBAge.Duration = 24 * time.Hour

	removed, err := c.Cleanup(time.Now().Add(48 * time.Hour))
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if len(removed) != 1 {
		t.Fatalf("expected 1 removed instance, got %d", len(removed))
	}
}
