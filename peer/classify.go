package peer

import (
	"context"
	"errors"

	"github.com/go-kit/log/level"
	"google.golang.org/grpc/codes"

	"github.com/maxpoletaev/quorum/internal/grpcutil"
	"github.com/maxpoletaev/quorum/peerapi"
)

// unavailableCodes lists, per message kind, the response codes that mean
// "member considered unavailable" rather than "request rejected". The
// mapping is deliberately an explicit table: which codes demote a peer is
// protocol policy, not something to infer from the transport ad hoc.
//
// Replication kinds additionally treat ResourceExhausted as unavailability,
// since an overloaded peer shedding large payloads should be demoted and
// retried rather than reported as a protocol error.
var unavailableCodes = map[peerapi.Kind][]codes.Code{
	peerapi.KindRequestVote:     {codes.Unavailable, codes.DeadlineExceeded, codes.Canceled},
	peerapi.KindPreVote:         {codes.Unavailable, codes.DeadlineExceeded, codes.Canceled},
	peerapi.KindAppendEntries:   {codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.ResourceExhausted},
	peerapi.KindInstallSnapshot: {codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.ResourceExhausted},
	peerapi.KindResign:          {codes.Unavailable, codes.DeadlineExceeded, codes.Canceled},
	peerapi.KindMetadata:        {codes.Unavailable, codes.DeadlineExceeded, codes.Canceled},
	peerapi.KindMessage:         {codes.Unavailable, codes.DeadlineExceeded, codes.Canceled},
	peerapi.KindSignal:          {codes.Unavailable, codes.DeadlineExceeded, codes.Canceled},
}

func isUnavailableCode(kind peerapi.Kind, code codes.Code) bool {
	for _, c := range unavailableCodes[kind] {
		if c == code {
			return true
		}
	}

	return false
}

// classify maps a transport failure to exactly one outcome:
//
//   - a cancellation requested by the caller propagates as a plain context
//     error, leaving the tracked status untouched;
//   - a failure the kind treats as unavailability (no response at all, a
//     timeout, a cancellation the network produced on its own, or a
//     response code from the table above) demotes the status and returns a
//     retryable *UnavailableError;
//   - anything else means the peer did answer and rejected the request:
//     a non-retryable *UnexpectedStatusError without demotion.
//
// caller is the context the consumer passed in, before the per-kind
// deadline was layered on top. Checking it, rather than the derived
// context, is what keeps a consumer-initiated timeout from marking a
// healthy peer unavailable.
func (m *Member) classify(caller context.Context, kind peerapi.Kind, err error) error {
	if caller.Err() != nil {
		return caller.Err()
	}

	code := grpcutil.ErrorCode(err)

	// Plain context errors surface when the transport ran without a gRPC
	// status attached, e.g. when the per-kind deadline fired locally.
	timedOut := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)

	if timedOut || isUnavailableCode(kind, code) {
		prev := m.status.Set(StatusUnavailable)

		level.Warn(m.logger).Log(
			"msg", "peer became unavailable",
			"kind", kind,
			"prev_status", prev,
			"err", err,
		)

		return &UnavailableError{Peer: m.id, Kind: kind, Err: err}
	}

	return &UnexpectedStatusError{Peer: m.id, Kind: kind, Code: code, Err: err}
}
