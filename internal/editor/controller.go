// Package editor holds the state controller of an editing session: the
// selected source image, the instruction prompt, and the outcome of the most
// recent edit attempt.
package editor

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/leavend/photorefine/internal/datauri"
	"github.com/leavend/photorefine/internal/domain"
	"github.com/leavend/photorefine/internal/infra"
)

// Editor turns a source image and an instruction into an edited image data
// URI. *gemini.Client implements it.
type Editor interface {
	Edit(ctx context.Context, req domain.EditRequest) (string, error)
}

// Options configures a Controller.
type Options struct {
	Prompt          string
	FallbackMessage string
	Source          SourceOptions
	Logger          *infra.Logger
}

// Controller serialises transitions of one session's ImageState.
//
// At most one edit is outstanding at a time; a second request while one is
// running is rejected with domain.ErrEditInProgress. Every transition that
// replaces the source image (SelectImage, Reset) bumps a generation counter
// and cancels the running edit, so a late result is discarded instead of
// overwriting newer state.
type Controller struct {
	editor   Editor
	source   SourceOptions
	fallback string
	logger   *infra.Logger

	mu         sync.Mutex
	state      domain.ImageState
	prompt     string
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
}

// New returns a controller in the empty state.
func New(editor Editor, opts Options) *Controller {
	prompt := opts.Prompt
	if prompt == "" {
		prompt = domain.DefaultPrompt
	}
	fallback := opts.FallbackMessage
	if fallback == "" {
		fallback = FallbackMessage("en")
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Controller{
		editor:   editor,
		source:   opts.Source,
		fallback: fallback,
		logger:   logger,
		prompt:   prompt,
	}
}

// Snapshot returns a consistent copy of the current state.
func (c *Controller) Snapshot() domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.Snapshot{
		State:      c.state,
		Prompt:     c.prompt,
		Phase:      c.state.Phase(),
		Generation: c.generation,
	}
}

// State returns the current ImageState.
func (c *Controller) State() domain.ImageState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Prompt returns the current instruction.
func (c *Controller) Prompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prompt
}

// SetPrompt replaces the instruction used by subsequent edits. An edit that
// is already running keeps the prompt it started with.
func (c *Controller) SetPrompt(prompt string) {
	c.mu.Lock()
	c.prompt = prompt
	c.mu.Unlock()
}

// SelectImage reads r into a data URI and makes it the new original,
// clearing any edited image and error. A running edit is detached.
//
// When r cannot be read or is not an image, the error is recorded in the
// state, the current images are kept, and the error is returned.
func (c *Controller) SelectImage(ctx context.Context, name string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	uri, err := LoadSource(r, name, c.source)
	return c.applySelection(uri, err)
}

// SelectImageFile is SelectImage for a path on the local filesystem.
func (c *Controller) SelectImageFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	uri, err := LoadSourceFile(path, c.source)
	return c.applySelection(uri, err)
}

func (c *Controller) applySelection(uri string, loadErr error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if loadErr != nil {
		c.state.Error = loadErr.Error()
		c.logger.Debug().Err(loadErr).Msg("editor: image selection rejected")
		return loadErr
	}

	c.detachLocked()
	c.state = domain.ImageState{Original: uri}
	c.logger.Debug().
		Str("mime", datauri.MIMEType(uri)).
		Uint64("generation", c.generation).
		Msg("editor: image selected")
	return nil
}

// Reset restores the empty state. The prompt is kept. A running edit is
// cancelled and its result, if it still arrives, is discarded.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detachLocked()
	c.state = domain.ImageState{}
	c.logger.Debug().Uint64("generation", c.generation).Msg("editor: state reset")
}

// RequestEdit runs one edit synchronously with the current original image
// and prompt.
//
// It returns domain.ErrNoImage (without touching state) when no image is
// selected, domain.ErrEditInProgress when another edit is outstanding, and
// domain.ErrStaleResult when the state changed before the result arrived.
// Any other error is the edit failure, which is also recorded in the state;
// the previously edited image is kept in that case.
func (c *Controller) RequestEdit(ctx context.Context) error {
	run, err := c.begin(ctx)
	if err != nil {
		return err
	}
	return run()
}

// StartEdit is RequestEdit without waiting: the state flips to loading
// before it returns and the edit completes in the background. The edit is
// not cancelled when ctx is; only Reset or SelectImage stop it.
func (c *Controller) StartEdit(ctx context.Context) error {
	run, err := c.begin(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}
	go func() { _ = run() }()
	return nil
}

// Wait blocks until no edit is outstanding or ctx is done. Edits detached by
// Reset or SelectImage do not count; their goroutines may still be waiting on
// the editor when Wait returns.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) begin(ctx context.Context) (func() error, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Original == "" {
		return nil, domain.ErrNoImage
	}
	if c.state.IsLoading {
		return nil, domain.ErrEditInProgress
	}

	req := domain.EditRequest{
		Image:    c.state.Original,
		Prompt:   c.prompt,
		MIMEType: datauri.MIMEType(c.state.Original),
	}
	c.state.IsLoading = true
	c.state.Error = ""
	c.generation++
	gen := c.generation

	editCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	c.logger.Debug().
		Uint64("generation", gen).
		Str("mime", req.MIMEType).
		Msg("editor: edit started")

	return func() error {
		defer cancel()
		defer close(done)
		result, err := c.editor.Edit(editCtx, req)
		return c.finish(gen, result, err)
	}, nil
}

func (c *Controller) finish(gen uint64, result string, editErr error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.logger.Debug().
			Uint64("generation", gen).
			Uint64("current", c.generation).
			Msg("editor: discarding stale edit result")
		return domain.ErrStaleResult
	}
	c.cancel = nil
	c.done = nil
	c.state.IsLoading = false

	if editErr != nil {
		c.state.Error = c.message(editErr)
		c.logger.Warn().Err(editErr).Uint64("generation", gen).Msg("editor: edit failed")
		return editErr
	}
	c.state.Edited = result
	c.state.Error = ""
	c.logger.Debug().Uint64("generation", gen).Msg("editor: edit completed")
	return nil
}

// detachLocked invalidates any running edit. Callers hold c.mu.
func (c *Controller) detachLocked() {
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.done = nil
}

func (c *Controller) message(err error) string {
	if errors.Is(err, context.Canceled) {
		return c.fallback
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return c.fallback
}
