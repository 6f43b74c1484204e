package blockcache

import "errors"

// ErrClosed indicates an operation on a cache after Close.
var ErrClosed = errors.New("blockcache: closed")
