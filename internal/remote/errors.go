package remote

import "fmt"

// RemoteError describes a failed remote operation with enough context to
// log it usefully: the operation, the key or ID involved, and the cause.
type RemoteError struct {
	Op  string // operation that failed, e.g. "Upload"
	Key string // file ID, folder ID, or name involved
	Err error  // underlying error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func newRemoteError(op, key string, err error) *RemoteError {
	return &RemoteError{Op: op, Key: key, Err: err}
}
