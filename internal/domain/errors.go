package domain

import "errors"

var (
	ErrNoImage        = errors.New("no source image selected")
	ErrInvalidImage   = errors.New("invalid image")
	ErrTooLarge       = errors.New("image too large")
	ErrEditInProgress = errors.New("edit already in progress")
	ErrStaleResult    = errors.New("edit result discarded after state change")
)
