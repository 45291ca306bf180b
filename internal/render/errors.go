package render

import "errors"

var (
	ErrInvalidSource = errors.New("invalid source image")
	ErrNotImage      = errors.New("content is not an image")
	ErrUpstream      = errors.New("render service error")
)
