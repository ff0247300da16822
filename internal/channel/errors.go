package channel

import (
	"errors"
	"fmt"
)

// ErrCredentialMissing is returned by Connect when no credential is
// available. It describes a signed-out user, not a failure.
var ErrCredentialMissing = errors.New("channel: credential missing")

// ErrUnauthorized is wrapped by a TransportError when the broker rejected
// the credential during the handshake.
var ErrUnauthorized = errors.New("channel: credential rejected")

// TransportError reports a failure to open or keep the channel.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransportError reports whether err (or any error in its chain) is a
// TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// SubscriptionError reports a failed room join.
type SubscriptionError struct {
	RecipientID string
	Err         error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("joining room for %q: %v", e.RecipientID, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }
