package bike

import "errors"

var (
	ErrNotFound     = errors.New("bike not found")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation error")
	ErrInvalidImage = errors.New("unsupported image")
)
