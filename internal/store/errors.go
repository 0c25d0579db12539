package store

import "errors"

// ErrClosed is returned for operations submitted after Close.
var ErrClosed = errors.New("conversation store closed")
