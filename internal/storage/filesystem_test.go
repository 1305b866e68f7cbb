package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leavend/photorefine/internal/datauri"
)

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "refined-image.png", want: "refined-image.png"},
		{key: "./out/refined-image.png", want: "out/refined-image.png"},
		{key: "/abs/file.png", want: "abs/file.png"},
		{key: `dir\file.png`, want: "dir/file.png"},
		{key: "../escape.png", wantErr: true},
		{key: "a/../../escape.png", wantErr: true},
		{key: "..", wantErr: true},
		{key: "  ", wantErr: true},
		{key: ".", wantErr: true},
	}
	for _, tc := range tests {
		got, err := sanitizeKey(tc.key)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("sanitizeKey(%q) expected error, got %q", tc.key, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("sanitizeKey(%q) unexpected error: %v", tc.key, err)
		}
		if got != tc.want {
			t.Fatalf("sanitizeKey(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}
}

func TestWriteDataURI(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	key, err := store.WriteDataURI(context.Background(), "refined-image.png", datauri.Format("image/png", []byte("png-bytes")))
	if err != nil {
		t.Fatalf("WriteDataURI: %v", err)
	}
	if store.Path(key) != filepath.Join(dir, "refined-image.png") {
		t.Fatalf("Path = %q", store.Path(key))
	}
	data, err := os.ReadFile(store.Path(key))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("file content = %q", data)
	}

	if _, err := store.WriteDataURI(context.Background(), "bad.png", "not a data uri"); err == nil {
		t.Fatal("expected error for malformed data URI")
	}
}

func TestWriteHonoursContext(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Write(ctx, "x.png", []byte("x")); err == nil {
		t.Fatal("expected cancelled context error")
	}
}

func TestNewFileStoreRequiresPath(t *testing.T) {
	if _, err := NewFileStore(" "); err == nil {
		t.Fatal("expected error for empty base path")
	}
}
