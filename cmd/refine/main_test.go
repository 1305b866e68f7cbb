package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leavend/photorefine/internal/datauri"
	"github.com/leavend/photorefine/internal/domain"
	"github.com/leavend/photorefine/internal/editor"
	"github.com/leavend/photorefine/internal/infra"
)

type editFunc func(ctx context.Context, req domain.EditRequest) (string, error)

func (f editFunc) Edit(ctx context.Context, req domain.EditRequest) (string, error) {
	return f(ctx, req)
}

func stubEditor(t *testing.T, ed editor.Editor) {
	t.Helper()
	prev := newEditor
	newEditor = func(context.Context, *infra.Config, *infra.Logger) (editor.Editor, error) {
		return ed, nil
	}
	t.Cleanup(func() { newEditor = prev })
}

func executeCommand(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writePNG(t *testing.T, dir string) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 10, 10))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	path := filepath.Join(dir, "input.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write png: %v", err)
	}
	return path
}

func TestRefineWritesEditedImage(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("APP_ENV", "test")
	dir := t.TempDir()
	input := writePNG(t, dir)
	outDir := filepath.Join(dir, "out")

	var got domain.EditRequest
	stubEditor(t, editFunc(func(_ context.Context, req domain.EditRequest) (string, error) {
		got = req
		return datauri.Format("image/png", []byte("edited")), nil
	}))

	out, err := executeCommand(input, "--prompt", "make sky red", "--out", outDir)
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	want := filepath.Join(outDir, domain.DownloadFilename)
	if strings.TrimSpace(out) != want {
		t.Fatalf("stdout = %q, want %q", out, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "edited" {
		t.Fatalf("output content = %q", data)
	}
	if got.Prompt != "make sky red" || got.MIMEType != "image/png" {
		t.Fatalf("unexpected request: prompt %q mime %q", got.Prompt, got.MIMEType)
	}
}

func TestRefineReportsEditFailure(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("APP_ENV", "test")
	dir := t.TempDir()
	input := writePNG(t, dir)

	stubEditor(t, editFunc(func(context.Context, domain.EditRequest) (string, error) {
		return "", errors.New("no response generated from the model")
	}))

	_, err := executeCommand(input, "--out", dir)
	if err == nil || !strings.Contains(err.Error(), "no response generated") {
		t.Fatalf("expected edit failure, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, domain.DownloadFilename)); !os.IsNotExist(statErr) {
		t.Fatal("no output file should be written on failure")
	}
}

func TestRefineRejectsNonImage(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("APP_ENV", "test")
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	stubEditor(t, editFunc(func(context.Context, domain.EditRequest) (string, error) {
		t.Fatal("editor must not be called")
		return "", nil
	}))

	_, err := executeCommand(path, "--out", dir)
	if !errors.Is(err, domain.ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
}

func TestRefineRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "")
	if _, err := executeCommand("whatever.png"); err == nil {
		t.Fatal("expected missing key error")
	}
}
