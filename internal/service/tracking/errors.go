package tracking

import "errors"

// ErrTokenNotFound indicates no invitation matches the tracking token.
var ErrTokenNotFound = errors.New("unknown tracking token")
