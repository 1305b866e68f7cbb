// Package gemini implements the image edit client on top of the Gemini
// generateContent API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"google.golang.org/genai"

	"github.com/leavend/photorefine/internal/datauri"
	"github.com/leavend/photorefine/internal/domain"
	"github.com/leavend/photorefine/internal/infra"
)

// DefaultModel is the image-capable model used when Options.Model is empty.
const DefaultModel = "gemini-2.5-flash-image"

const maxDetailRunes = 200

var (
	// ErrServiceCall wraps failures of the API call itself (network, auth,
	// quota, malformed request).
	ErrServiceCall = errors.New("gemini request failed")
	// ErrEmptyResponse means the model answered without any content parts.
	ErrEmptyResponse = errors.New("No response generated from the model.")
	// ErrNoImagePart means the model answered with parts but none was an
	// inline image.
	ErrNoImagePart = errors.New("The model did not return an image part.")
)

// Options controls how the client is configured.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// contentGenerator is the slice of *genai.Models the client depends on.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client sends one source image plus an instruction to the model and returns
// the first inline image of the reply as a data URI. It holds no mutable
// state and is safe for concurrent use.
type Client struct {
	models contentGenerator
	model  string
	logger *infra.Logger
}

// NewClient constructs a client. The API key is required and is never read
// from the environment here.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, errors.New("gemini: API key is missing")
	}

	cfg := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newClient(client.Models, opts.Model, opts.Logger), nil
}

func newClient(models contentGenerator, model string, logger *infra.Logger) *Client {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Client{models: models, model: model, logger: logger}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Edit performs a single request/response round trip. There is no retry and
// no timeout beyond the one carried by ctx.
func (c *Client) Edit(ctx context.Context, req domain.EditRequest) (string, error) {
	declared, data, err := datauri.Parse(req.Image)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}
	mimeType := strings.TrimSpace(req.MIMEType)
	if mimeType == "" {
		mimeType = declared
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, mimeType),
			genai.NewPartFromText(req.Prompt),
		}, genai.RoleUser),
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("model", c.model).
			Msg("gemini: generate content failed")
		return "", fmt.Errorf("%w: %w", ErrServiceCall, err)
	}

	parts := firstCandidateParts(resp)
	if len(parts) == 0 {
		return "", ErrEmptyResponse
	}

	var text string
	for _, part := range parts {
		if part == nil {
			continue
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			outMIME := strings.TrimSpace(part.InlineData.MIMEType)
			if outMIME == "" {
				outMIME = mimeType
			}
			c.logger.Debug().
				Str("model", c.model).
				Str("mime", outMIME).
				Int("bytes", len(part.InlineData.Data)).
				Msg("gemini: received edited image")
			return datauri.Format(outMIME, part.InlineData.Data), nil
		}
		if text == "" {
			text = strings.TrimSpace(part.Text)
		}
	}

	if text != "" {
		return "", fmt.Errorf("%w Model response: %s", ErrNoImagePart, truncate(text, maxDetailRunes))
	}
	return "", ErrNoImagePart
}

func firstCandidateParts(resp *genai.GenerateContentResponse) []*genai.Part {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return nil
	}
	return candidate.Content.Parts
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…"
}
