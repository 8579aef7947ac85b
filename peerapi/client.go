package peerapi

import "context"

// Client is the connection primitive to a single cluster peer. One Client is
// created per remote peer and shared by every in-flight request to it.
//
// Implementations must be safe for concurrent use. They report failures as
// errors carrying a gRPC status code; they never retry.
type Client interface {
	RequestVote(ctx context.Context, req *VoteRequest) (*VoteResponse, error)
	AppendEntries(ctx context.Context, req *AppendEntriesRequest) (*AppendEntriesResponse, error)
	InstallSnapshot(ctx context.Context, req *InstallSnapshotRequest) (*InstallSnapshotResponse, error)
	Resign(ctx context.Context, req *ResignRequest) (*ResignResponse, error)
	Metadata(ctx context.Context, req *MetadataRequest) (*MetadataResponse, error)
	SendMessage(ctx context.Context, req *MessageRequest) (*MessageResponse, error)
	SendSignal(ctx context.Context, req *SignalRequest) (*SignalResponse, error)

	// IsClosed returns true once the connection has been closed and the
	// client cannot be used anymore.
	IsClosed() bool

	// Close releases the underlying connection. It is called when the peer
	// is removed from the member set or the cluster shuts down.
	Close() error
}

// Dialer is a factory producing the connection primitive for a peer. Dialing
// is lazy where the underlying transport allows it: the returned Client may
// establish the actual connection on first use.
type Dialer func(ctx context.Context, addr string, protocol Protocol) (Client, error)
