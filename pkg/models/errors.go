package models

import "errors"

// ErrUpdateFailed marks a polling cycle failure that is worth retrying, such as
// the device being unreachable or answering with a non-2xx status.
var ErrUpdateFailed = errors.New("update failed")
