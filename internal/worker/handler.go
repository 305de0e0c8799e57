package worker

import (
	"context"
	"errors"
	"fmt"
)

// JobHandler executes one job type. Handle receives the raw JSON payload
// stored with the job.
type JobHandler interface {
	Type() string
	Handle(ctx context.Context, payload []byte) error
}

// permanentError marks a job failure that retrying cannot fix, such as a
// malformed payload or a campaign that no longer exists.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// NewPermanentError marks err so the job is failed immediately instead of retried.
func NewPermanentError(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Permanentf is NewPermanentError(fmt.Errorf(format, args...)).
func Permanentf(format string, args ...any) error {
	return &permanentError{err: fmt.Errorf(format, args...)}
}

// IsPermanent reports whether err or anything it wraps was marked permanent.
func IsPermanent(err error) bool {
	var permErr *permanentError
	return errors.As(err, &permErr)
}
