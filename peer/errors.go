package peer

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"

	"github.com/maxpoletaev/quorum/peerapi"
)

// ErrClosed is returned by every operation once the member has been closed.
var ErrClosed = errors.New("peer: member is closed")

// ConfigError reports a fatal configuration problem detected while the
// member set is constructed, such as an unresolvable peer address. It is
// never retried.
type ConfigError struct {
	Addr string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("peer: bad member address %q: %v", e.Addr, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// UnavailableError means the peer could not be reached, or answered with a
// status its message kind treats as "member unavailable". The tracked status
// has already been demoted by the time the caller sees this error, and the
// operation may be retried by the driver.
type UnavailableError struct {
	Peer MemberID
	Kind peerapi.Kind
	Err  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("peer: member %s unavailable (%s): %v", e.Peer, e.Kind, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// UnexpectedStatusError means the peer was reachable and did answer, but
// with a status code the message kind does not treat as unavailability.
// The tracked status is left untouched and the call must not be retried
// as-is: the request itself was rejected.
type UnexpectedStatusError struct {
	Peer MemberID
	Kind peerapi.Kind
	Code codes.Code
	Err  error
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("peer: member %s rejected %s with code %s: %v", e.Peer, e.Kind, e.Code, e.Err)
}

func (e *UnexpectedStatusError) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether err is a classified peer unavailability,
// i.e. whether the failed operation is worth retrying.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}
