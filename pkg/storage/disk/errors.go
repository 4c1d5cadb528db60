package disk

import "errors"

var (
	ErrPageOverflow    = errors.New("page overflow")
	ErrUnknownBackend  = errors.New("unknown storage backend")
	ErrBlockOutOfRange = errors.New("block out of range")
	ErrClosed          = errors.New("disk manager closed")
)
