package verify

import "errors"

// ErrConfig wraps configuration errors: the run was rejected before any
// browser resource was acquired. Callers map it to a distinct exit code.
var ErrConfig = errors.New("verify: invalid configuration")
