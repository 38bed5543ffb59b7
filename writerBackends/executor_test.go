package writerbackends

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestObjectName(t *testing.T) {
	cases := map[string]string{
		"":             "abc_compressed_image.jpg",
		"out":          "out/abc_compressed_image.jpg",
		"/out/nested/": "out/nested/abc_compressed_image.jpg",
	}
	for folder, want := range cases {
		if got := ObjectName(folder, "abc"); got != want {
			t.Errorf("ObjectName(%q) = %q, want %q", folder, got, want)
		}
	}
}

func TestWriteImageDirectServe(t *testing.T) {
	base := t.TempDir()
	payload := []byte("\xff\xd8jpeg\xff\xd9")
	info := map[string]string{"baseDir": base, "folder": "out"}

	loc, err := WriteImage(context.Background(), "directServe", info, ObjectName("out", "d1g35t"), bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("WriteImage failed: %v", err)
	}
	if loc != "/files/out/d1g35t_compressed_image.jpg" {
		t.Errorf("Unexpected location %q", loc)
	}

	got, err := os.ReadFile(filepath.Join(base, "out", "d1g35t_compressed_image.jpg"))
	if err != nil {
		t.Fatalf("Delivered file missing: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("Delivered bytes differ from the payload")
	}

	entries, _ := os.ReadDir(filepath.Join(base, "out"))
	if len(entries) != 1 {
		t.Errorf("Expected only the delivered file, found %d entries", len(entries))
	}
}

func TestDirectServeRejectsEscapes(t *testing.T) {
	info := map[string]string{"baseDir": t.TempDir()}
	for _, name := range []string{"../evil.jpg", "/etc/evil.jpg", ""} {
		if _, err := UploadToDirectServe(context.Background(), info, name, strings.NewReader("x")); err == nil {
			t.Errorf("Expected %q to be rejected", name)
		}
	}
	if _, err := UploadToDirectServe(context.Background(), map[string]string{}, "a.jpg", strings.NewReader("x")); err == nil {
		t.Error("Expected an error without baseDir")
	}
}

func TestWriteImageUnknownBackend(t *testing.T) {
	_, err := WriteImage(context.Background(), "ftp", nil, "a.jpg", strings.NewReader("x"))
	if err == nil || !strings.Contains(err.Error(), "unknown backend type") {
		t.Errorf("Expected unknown backend error, got %v", err)
	}
}

func TestRemoteBackendsValidateAccessInfo(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []string{"s3", "gcs", "sftp", "oss"} {
		if _, err := WriteImage(ctx, backend, map[string]string{}, "a.jpg", strings.NewReader("x")); err == nil {
			t.Errorf("%s: expected an error for empty access info", backend)
		}
	}
}
