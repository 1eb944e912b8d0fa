package transport

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestDirectUploadChunksAndWrapsAPC(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, ChunkSize*3) // forces multiple chunks
	var buf bytes.Buffer
	var progress []int64

	d := Direct{Synchronous: true}
	err := d.Upload(&buf, data, UploadOptions{
		ID: 7, Format: FormatRGBA32, Cols: 10, Rows: 5,
		OnProgress: func(sent int64) error { progress = append(progress, sent); return nil },
	})
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, apcStart) {
		t.Fatalf("expected output to start with APC prefix, got %q", out[:10])
	}
	if !strings.HasSuffix(out, apcEnd) {
		t.Fatal("expected output to end with APC terminator")
	}
	if strings.Count(out, apcStart) < 2 {
		t.Fatalf("expected multiple chunks for %d bytes, got 1", len(data))
	}
	if len(progress) < 2 {
		t.Fatalf("expected progress callbacks per chunk, got %d", len(progress))
	}
	if progress[len(progress)-1] == 0 {
		t.Fatal("expected final progress to report non-zero bytes sent")
	}
}

func TestDirectUploadSmallPayloadSingleChunk(t *testing.T) {
	var buf bytes.Buffer
	d := Direct{}
	if err := d.Upload(&buf, []byte("small"), UploadOptions{ID: 1, Format: FormatPNG}); err != nil {
		t.Fatal(err)
	}
	if strings.Count(buf.String(), apcStart) != 1 {
		t.Fatalf("expected exactly one chunk, got %q", buf.String())
	}
}

func TestFileUploadWritesFileAndReferencesPath(t *testing.T) {
	dir := t.TempDir()
	f := File{Dir: dir}
	var buf bytes.Buffer
	var gotBytes int64

	err := f.Upload(&buf, []byte("payload"), UploadOptions{
		ID: 3, Format: FormatPNG,
		OnProgress: func(sent int64) error { gotBytes = sent; return nil },
	})
	if err != nil {
		t.Fatal(err)
	}
	if gotBytes != int64(len("payload")) {
		t.Fatalf("progress = %d, want %d", gotBytes, len("payload"))
	}
	out := buf.String()
	if !strings.Contains(out, "t=f") {
		t.Fatalf("expected file-transport marker t=f in %q", out)
	}
}

func TestTempTransportUnsupported(t *testing.T) {
	var tr Temp
	err := tr.Upload(&bytes.Buffer{}, nil, UploadOptions{})
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestNewRejectsTempAndUnknownKinds(t *testing.T) {
	if _, err := New(KindTemp, ""); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for KindTemp, got %v", err)
	}
	if _, err := New(Kind("bogus"), ""); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestNewDirectAndFile(t *testing.T) {
	if tr, err := New(KindDirect, ""); err != nil {
		t.Fatal(err)
	} else if _, ok := tr.(Direct); !ok {
		t.Fatalf("expected Direct, got %T", tr)
	}
	if tr, err := New(KindFile, t.TempDir()); err != nil {
		t.Fatal(err)
	} else if _, ok := tr.(File); !ok {
		t.Fatalf("expected File, got %T", tr)
	}
}
