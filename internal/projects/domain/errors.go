package domain

import "errors"

var (
	ErrNotFound       = errors.New("project not found")
	ErrInvalidProject = errors.New("invalid project")
	ErrForbidden      = errors.New("project belongs to another user")
	ErrEmptyUpdate    = errors.New("no fields to update")
)
