package upload

import "errors"

var (
	ErrTooLarge       = errors.New("file exceeds the upload limit")
	ErrEmptyFile      = errors.New("file is empty")
	ErrAlreadyStarted = errors.New("progress already started")
)
