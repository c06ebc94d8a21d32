package token

import "errors"

var (
	// ErrNoMapping is returned when a value or symbol has no valid token.
	ErrNoMapping        = errors.New("token: no mapping")
	ErrUnknownPolicy    = errors.New("token: unknown policy")
	ErrAlphabetTooSmall = errors.New("token: alphabet too small for the anti-repeat window")
	ErrShortInput       = errors.New("token: not enough symbols for the requested size")
)
