package fit

import "errors"

var (
	// ErrInvalidCanvas is returned when the target width or height is not positive.
	ErrInvalidCanvas = errors.New("invalid canvas")

	// ErrInvalidImage is returned when the source has no pixels after
	// orientation and rotation are applied.
	ErrInvalidImage = errors.New("invalid image")

	// ErrDecode wraps any failure of the decoder collaborator.
	ErrDecode = errors.New("decode failure")

	// ErrUnsupportedMode is returned for fit modes other than contain and cover.
	ErrUnsupportedMode = errors.New("unsupported fit mode")

	// ErrInvalidRotation is returned for angles other than 0, 90, 180 and 270.
	ErrInvalidRotation = errors.New("invalid rotation")
)
