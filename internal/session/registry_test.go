package session

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/leavend/photorefine/internal/domain"
	"github.com/leavend/photorefine/internal/editor"
)

type blockingEditor struct {
	release chan struct{}
}

func (b blockingEditor) Edit(ctx context.Context, req domain.EditRequest) (string, error) {
	select {
	case <-b.release:
		return req.Image, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRegistry(clock *fakeClock, ed editor.Editor) *Registry {
	return NewRegistry(Options{
		Factory: func(locale string) *editor.Controller {
			return editor.New(ed, editor.Options{FallbackMessage: editor.FallbackMessage(locale)})
		},
		IdleTTL: time.Minute,
		Now:     clock.Now,
	})
}

func TestCreateGetDelete(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	reg := newTestRegistry(clock, blockingEditor{})

	s := reg.Create("id")
	if s.ID == "" || s.Controller == nil {
		t.Fatalf("unexpected session: %#v", s)
	}
	if s.Locale != "id" {
		t.Fatalf("locale = %q, want id", s.Locale)
	}
	got, ok := reg.Get(s.ID)
	if !ok || got != s {
		t.Fatal("Get should return the created session")
	}
	if !reg.Delete(s.ID) {
		t.Fatal("Delete should report removal")
	}
	if _, ok := reg.Get(s.ID); ok {
		t.Fatal("session should be gone after Delete")
	}
	if reg.Delete(s.ID) {
		t.Fatal("second Delete should report nothing removed")
	}
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	reg := newTestRegistry(clock, blockingEditor{})

	idle := reg.Create("en")
	active := reg.Create("en")

	clock.Advance(45 * time.Second)
	reg.Get(active.ID)
	clock.Advance(30 * time.Second)

	if n := reg.Sweep(); n != 1 {
		t.Fatalf("Sweep removed %d sessions, want 1", n)
	}
	if _, ok := reg.Get(idle.ID); ok {
		t.Fatal("idle session should have expired")
	}
	if _, ok := reg.Get(active.ID); !ok {
		t.Fatal("recently used session should survive")
	}
}

func TestSweepKeepsSessionsWithEditInFlight(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	ed := blockingEditor{release: make(chan struct{})}
	reg := newTestRegistry(clock, ed)

	s := reg.Create("en")
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := s.Controller.SelectImage(context.Background(), "a.png", &buf); err != nil {
		t.Fatalf("SelectImage returned error: %v", err)
	}
	if err := s.Controller.StartEdit(context.Background()); err != nil {
		t.Fatalf("StartEdit returned error: %v", err)
	}

	clock.Advance(time.Hour)
	if n := reg.Sweep(); n != 0 {
		t.Fatalf("Sweep removed %d sessions, want 0", n)
	}
	close(ed.release)
	if err := s.Controller.Wait(context.Background()); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if n := reg.Sweep(); n != 1 {
		t.Fatalf("Sweep removed %d sessions after edit finished, want 1", n)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	reg := NewRegistry(Options{Factory: func(string) *editor.Controller { return editor.New(blockingEditor{}, editor.Options{}) }})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
