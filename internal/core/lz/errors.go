package lz

import "errors"

var (
	// ErrNoData is returned when there is nothing to compress.
	ErrNoData      = errors.New("lz: no data to compress")
	ErrTruncated   = errors.New("lz: compressed stream ends before the expected size")
	ErrBadDistance = errors.New("lz: match refers before the start of the output")
	ErrNegativeLen = errors.New("lz: output length must be non-negative")
)
