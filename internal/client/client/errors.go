package client

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("file not found")
	ErrRejected     = errors.New("upload rejected")
	ErrDamaged      = errors.New("stored file is damaged")
)
