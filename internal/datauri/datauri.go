// Package datauri encodes and decodes base64 data URIs of the form
// "data:<mime>;base64,<payload>".
package datauri

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	prefix       = "data:"
	base64Marker = ";base64"
	fallbackMIME = "application/octet-stream"
)

var (
	ErrMalformed    = errors.New("datauri: malformed data URI")
	ErrNotBase64    = errors.New("datauri: payload is not base64 encoded")
	ErrEmptyPayload = errors.New("datauri: empty payload")
)

// Format builds a data URI from a MIME type and raw bytes.
func Format(mimeType string, data []byte) string {
	return FormatEncoded(mimeType, base64.StdEncoding.EncodeToString(data))
}

// FormatEncoded builds a data URI from an already base64-encoded payload.
func FormatEncoded(mimeType, payload string) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = fallbackMIME
	}
	return prefix + mimeType + base64Marker + "," + payload
}

// Parse splits a data URI into its MIME type and decoded bytes.
func Parse(uri string) (string, []byte, error) {
	header, payload, err := split(uri)
	if err != nil {
		return "", nil, err
	}
	if !strings.HasSuffix(strings.ToLower(header), base64Marker) {
		return "", nil, ErrNotBase64
	}
	if payload == "" {
		return "", nil, ErrEmptyPayload
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrNotBase64, err)
	}
	return mimeFromHeader(header), data, nil
}

// MIMEType returns the declared media type of a data URI, or "" when the
// value is not a data URI.
func MIMEType(uri string) string {
	header, _, err := split(uri)
	if err != nil {
		return ""
	}
	return mimeFromHeader(header)
}

// Payload returns the encoded part after the first comma.
func Payload(uri string) string {
	_, payload, err := split(uri)
	if err != nil {
		return ""
	}
	return payload
}

// Detect sniffs the media type of data, falling back to the file extension
// of name when the content is not recognised.
func Detect(data []byte, name string) string {
	detected := mimetype.Detect(data)
	if detected != nil && !detected.Is(fallbackMIME) {
		return baseType(detected.String())
	}
	if ext := filepath.Ext(name); ext != "" {
		if byExt := mime.TypeByExtension(strings.ToLower(ext)); byExt != "" {
			return baseType(byExt)
		}
	}
	return fallbackMIME
}

func split(uri string) (string, string, error) {
	uri = strings.TrimSpace(uri)
	if len(uri) < len(prefix) || !strings.EqualFold(uri[:len(prefix)], prefix) {
		return "", "", ErrMalformed
	}
	header, payload, ok := strings.Cut(uri[len(prefix):], ",")
	if !ok {
		return "", "", ErrMalformed
	}
	return header, payload, nil
}

func mimeFromHeader(header string) string {
	mediaType, _, _ := strings.Cut(header, ";")
	return strings.TrimSpace(mediaType)
}

func baseType(v string) string {
	mediaType, _, _ := strings.Cut(v, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}
