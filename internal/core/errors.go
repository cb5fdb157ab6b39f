package core

import "errors"

var (
	ErrTracklistFull = errors.New("tracklist is full")
	ErrInvalidRange  = errors.New("invalid range")
	ErrNotFound      = errors.New("not found")
	ErrNoBackend     = errors.New("no backend for uri")
	ErrCoreStopped   = errors.New("core is not running")
)
