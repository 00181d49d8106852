package transport

import "errors"

// ErrClosed is returned by Transport operations after Close has been
// called.
var ErrClosed = errors.New("transport: closed")
