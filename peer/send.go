package peer

import (
	"context"
	"time"

	"github.com/go-kit/log/level"

	"github.com/maxpoletaev/quorum/peerapi"
)

// withOpTimeout layers the protocol-level deadline for the given kind over
// the caller's context. The derived context is linked, not a replacement:
// cancelling the caller's context always cancels the derived one, while the
// per-kind timer can fire on its own. When the kind has no deadline of its
// own, a plain cancelable context is derived so the call can still be
// aborted through CancelPendingRequests.
func (m *Member) withOpTimeout(ctx context.Context, kind peerapi.Kind) (context.Context, context.CancelFunc) {
	if d, ok := m.fac.TimeoutFor(kind); ok && d > 0 {
		return context.WithTimeout(ctx, d)
	}

	return context.WithCancel(ctx)
}

// send is the single choke point for every outbound request. It derives the
// operation context, registers the call so it can be cancelled from the
// outside, measures latency, invokes the transport, and routes the outcome
// through status tracking and classification. The latency sample and the
// disposal of the derived context happen on every exit path.
func send[R any](ctx context.Context, m *Member, kind peerapi.Kind, fn func(ctx context.Context, c peerapi.Client) (R, error)) (R, error) {
	var zero R

	if m.IsClosed() {
		return zero, ErrClosed
	}

	caller := ctx

	ctx, cancel := m.withOpTimeout(ctx, kind)

	token := m.callSeq.Add(1)
	m.calls.Store(token, cancel)

	// The registry owns the cancel func for the duration of the call:
	// removing the token and releasing the derived context is one step.
	defer func() {
		if c, ok := m.calls.LoadAndDelete(token); ok {
			c()
		}
	}()

	level.Debug(m.logger).Log("msg", "sending request", "kind", kind)

	start := time.Now()

	defer func() {
		if m.metrics != nil {
			m.metrics.ObserveLatency(m.id, kind, time.Since(start))
		}
	}()

	resp, err := fn(ctx, m.client)
	if err != nil {
		return zero, m.classify(caller, kind, err)
	}

	// Any successfully parsed response proves the peer is reachable, even
	// if it was believed unavailable a moment ago.
	m.status.Set(StatusAvailable)

	return resp, nil
}
