package gate

import "errors"

// ErrUnauthorized is returned by Gate.Authorize for every denial.
var ErrUnauthorized = errors.New("unauthorized")
