package editor

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP format decoder

	"github.com/leavend/photorefine/internal/datauri"
	"github.com/leavend/photorefine/internal/domain"
)

// DefaultMaxUploadBytes bounds how much of an input stream is read.
const DefaultMaxUploadBytes int64 = 20 << 20

// SourceOptions controls how selected files become data URIs.
type SourceOptions struct {
	// MaxBytes rejects larger inputs. Zero means DefaultMaxUploadBytes.
	MaxBytes int64
	// MaxDimension fits larger images into a MaxDimension square before
	// encoding. Zero disables resizing.
	MaxDimension int
}

// LoadSource reads r fully and returns it as a data URI. The content must be
// a decodable PNG, JPEG, GIF or WebP image; anything else is reported as
// domain.ErrInvalidImage. Oversized input additionally matches
// domain.ErrTooLarge.
func LoadSource(r io.Reader, name string, opts SourceOptions) (string, error) {
	limit := opts.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", domain.ErrInvalidImage, displayName(name), err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %s is empty", domain.ErrInvalidImage, displayName(name))
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("%w: %w: %s exceeds %d bytes", domain.ErrInvalidImage, domain.ErrTooLarge, displayName(name), limit)
	}

	mimeType := datauri.Detect(data, name)
	if !strings.HasPrefix(mimeType, "image/") {
		return "", fmt.Errorf("%w: %s is %s, not an image", domain.ErrInvalidImage, displayName(name), mimeType)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %s could not be decoded: %v", domain.ErrInvalidImage, displayName(name), err)
	}

	if opts.MaxDimension > 0 && (cfg.Width > opts.MaxDimension || cfg.Height > opts.MaxDimension) {
		fitted, fittedMIME, err := fit(data, format, opts.MaxDimension)
		if err != nil {
			return "", fmt.Errorf("%w: %s could not be resized: %v", domain.ErrInvalidImage, displayName(name), err)
		}
		return datauri.Format(fittedMIME, fitted), nil
	}

	return datauri.Format(mimeType, data), nil
}

// LoadSourceFile opens path and delegates to LoadSource.
func LoadSourceFile(path string, opts SourceOptions) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}
	defer f.Close()
	return LoadSource(f, filepath.Base(path), opts)
}

// fit shrinks the image to the bounding square. JPEG sources stay JPEG;
// everything else is re-encoded as PNG to keep transparency.
func fit(data []byte, format string, maxDim int) ([]byte, string, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", err
	}
	resized := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)

	outFormat, outMIME := imaging.PNG, "image/png"
	if format == "jpeg" {
		outFormat, outMIME = imaging.JPEG, "image/jpeg"
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, outFormat); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), outMIME, nil
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "file"
	}
	return name
}
