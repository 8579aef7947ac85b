package peer

import (
	"context"
	"time"

	"github.com/maxpoletaev/quorum/peerapi"
)

// Facilities is the narrow surface the hosting consensus driver exposes to
// the peer layer. The peer layer never reaches into the election or
// replication state machines directly: everything it needs from the host
// comes through this interface.
type Facilities interface {
	// IsLeader reports whether the given member is the current leader,
	// according to the host's view of the cluster.
	IsLeader(id MemberID) bool

	// LocalMetadata returns the metadata of the local node. It is handed
	// out verbatim when the local member is asked for its metadata.
	LocalMetadata() map[string]string

	// TimeoutFor returns the protocol-level deadline for the given request
	// kind. The ok result is false when the transport's own limits should
	// apply instead.
	TimeoutFor(kind peerapi.Kind) (time.Duration, bool)

	// HandleMessage delivers an application message addressed to the local
	// node, bypassing the network.
	HandleMessage(ctx context.Context, req *peerapi.MessageRequest) (*peerapi.MessageResponse, error)

	// HandleSignal delivers an application signal addressed to the local
	// node, bypassing the network.
	HandleSignal(ctx context.Context, req *peerapi.SignalRequest) error
}

// Metrics receives response-latency samples for outbound requests. The
// sample is reported on every exit path, including failures and
// cancellations.
type Metrics interface {
	ObserveLatency(id MemberID, kind peerapi.Kind, elapsed time.Duration)
}
