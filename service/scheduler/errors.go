package scheduler

import "errors"

// ErrUnknownKind is returned for an unsupported policy name
var ErrUnknownKind = errors.New("unknown scheduling policy")
