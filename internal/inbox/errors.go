package inbox

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by operations started after Close.
var ErrClosed = errors.New("inbox: synchronizer closed")

// FetchError reports a failed page fetch. The presentation layer shows it
// with a retry affordance.
type FetchError struct {
	Page int
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("loading notifications page %d: %v", e.Page, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MutationError reports a server rejection of an optimistic change. By the
// time it is returned the local change has been rolled back.
type MutationError struct {
	Op  string
	ID  string
	Err error
}

func (e *MutationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// IsMutationError reports whether err (or any error in its chain) is a
// MutationError.
func IsMutationError(err error) bool {
	var me *MutationError
	return errors.As(err, &me)
}
