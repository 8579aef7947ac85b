package peer

import (
	"context"
	"io"

	"github.com/maxpoletaev/quorum/internal/generic"
	"github.com/maxpoletaev/quorum/peerapi"
)

// RequestVote asks the peer to vote for the local node in the given term.
// A vote request to the local member itself is granted synchronously,
// without a network call.
func (m *Member) RequestVote(ctx context.Context, term, lastLogIndex, lastLogTerm uint64) (*peerapi.VoteResponse, error) {
	if m.IsClosed() {
		return nil, ErrClosed
	}

	if m.IsSelf() {
		return &peerapi.VoteResponse{Term: term, Granted: true}, nil
	}

	req := &peerapi.VoteRequest{
		CandidateID:  uint64(m.localID),
		Term:         term,
		LastLogIndex: lastLogIndex,
		LastLogTerm:  lastLogTerm,
	}

	return send(ctx, m, peerapi.KindRequestVote, func(ctx context.Context, c peerapi.Client) (*peerapi.VoteResponse, error) {
		return c.RequestVote(ctx, req)
	})
}

// PreVote probes the peer's willingness to vote without disturbing its
// term. Like RequestVote, it short-circuits for the local member.
func (m *Member) PreVote(ctx context.Context, term, lastLogIndex, lastLogTerm uint64) (*peerapi.VoteResponse, error) {
	if m.IsClosed() {
		return nil, ErrClosed
	}

	if m.IsSelf() {
		return &peerapi.VoteResponse{Term: term, Granted: true}, nil
	}

	req := &peerapi.VoteRequest{
		CandidateID:  uint64(m.localID),
		Term:         term,
		LastLogIndex: lastLogIndex,
		LastLogTerm:  lastLogTerm,
		PreVote:      true,
	}

	return send(ctx, m, peerapi.KindPreVote, func(ctx context.Context, c peerapi.Client) (*peerapi.VoteResponse, error) {
		return c.RequestVote(ctx, req)
	})
}

// AppendEntries replicates a batch of log entries to the peer. An empty
// batch is a heartbeat. The entries travel by reference: the slice is
// handed to the transport as-is and must not be mutated while the call is
// in flight.
func (m *Member) AppendEntries(ctx context.Context, term uint64, entries []*peerapi.LogEntry, prevLogIndex, prevLogTerm, commitIndex uint64) (*peerapi.AppendEntriesResponse, error) {
	if m.IsClosed() {
		return nil, ErrClosed
	}

	if m.IsSelf() {
		return &peerapi.AppendEntriesResponse{Term: term, Success: true}, nil
	}

	req := &peerapi.AppendEntriesRequest{
		LeaderID:     uint64(m.localID),
		Term:         term,
		PrevLogIndex: prevLogIndex,
		PrevLogTerm:  prevLogTerm,
		LeaderCommit: commitIndex,
		Entries:      entries,
		Bulk:         m.bulkAppend,
	}

	return send(ctx, m, peerapi.KindAppendEntries, func(ctx context.Context, c peerapi.Client) (*peerapi.AppendEntriesResponse, error) {
		return c.AppendEntries(ctx, req)
	})
}

// InstallSnapshot transfers a compacted snapshot of the log up to
// snapshotIndex. The snapshot payload is consumed exactly once.
func (m *Member) InstallSnapshot(ctx context.Context, term, snapshotIndex uint64, snapshot io.Reader) (*peerapi.InstallSnapshotResponse, error) {
	if m.IsClosed() {
		return nil, ErrClosed
	}

	if m.IsSelf() {
		return &peerapi.InstallSnapshotResponse{Term: term, Success: true}, nil
	}

	req := &peerapi.InstallSnapshotRequest{
		LeaderID:      uint64(m.localID),
		Term:          term,
		SnapshotIndex: snapshotIndex,
		Snapshot:      snapshot,
	}

	return send(ctx, m, peerapi.KindInstallSnapshot, func(ctx context.Context, c peerapi.Client) (*peerapi.InstallSnapshotResponse, error) {
		return c.InstallSnapshot(ctx, req)
	})
}

// Resign asks the peer to step down from leadership. Resignation is only
// meaningful for a remote peer: asking the local node to resign through its
// own proxy is a no-op and is never acknowledged.
func (m *Member) Resign(ctx context.Context) (bool, error) {
	if m.IsClosed() {
		return false, ErrClosed
	}

	if m.IsSelf() {
		return false, nil
	}

	req := &peerapi.ResignRequest{SenderID: uint64(m.localID)}

	resp, err := send(ctx, m, peerapi.KindResign, func(ctx context.Context, c peerapi.Client) (*peerapi.ResignResponse, error) {
		return c.Resign(ctx, req)
	})
	if err != nil {
		return false, err
	}

	return resp.Acknowledged, nil
}

// Metadata returns the peer's key/value metadata. The mapping is cached
// after the first successful fetch; refresh forces a new fetch and replaces
// the cache. For the local member the host's own metadata is returned
// directly.
func (m *Member) Metadata(ctx context.Context, refresh bool) (map[string]string, error) {
	if m.IsClosed() {
		return nil, ErrClosed
	}

	if m.IsSelf() {
		return m.fac.LocalMetadata(), nil
	}

	m.metaMut.Lock()
	if m.fetched && !refresh {
		// Handing out a copy keeps a mutating caller from corrupting the
		// cache under every other caller.
		meta := generic.MapCopy(m.meta)
		m.metaMut.Unlock()

		return meta, nil
	}
	m.metaMut.Unlock()

	req := &peerapi.MetadataRequest{SenderID: uint64(m.localID)}

	resp, err := send(ctx, m, peerapi.KindMetadata, func(ctx context.Context, c peerapi.Client) (*peerapi.MetadataResponse, error) {
		return c.Metadata(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	meta := generic.MapCopy(resp.Metadata)

	m.metaMut.Lock()
	m.meta = meta
	m.fetched = true
	m.metaMut.Unlock()

	return meta, nil
}

// SendMessage delivers an opaque application message to the peer and
// returns the application-level reply. Messages to the local member are
// handed straight to the host's message handler.
func (m *Member) SendMessage(ctx context.Context, name string, payload []byte, leaderOnly bool) ([]byte, error) {
	if m.IsClosed() {
		return nil, ErrClosed
	}

	req := &peerapi.MessageRequest{
		SenderID:   uint64(m.localID),
		Name:       name,
		Payload:    payload,
		LeaderOnly: leaderOnly,
	}

	if m.IsSelf() {
		resp, err := m.fac.HandleMessage(ctx, req)
		if err != nil {
			return nil, err
		}

		return resp.Payload, nil
	}

	resp, err := send(ctx, m, peerapi.KindMessage, func(ctx context.Context, c peerapi.Client) (*peerapi.MessageResponse, error) {
		return c.SendMessage(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	return resp.Payload, nil
}

// SignalOptions controls delivery of an application signal.
type SignalOptions struct {
	// Confirm makes the call block until the receiver acknowledges
	// processing the signal, instead of returning once it is accepted.
	Confirm bool

	// LeaderOnly instructs the receiver to honor the signal only if it is
	// the current leader.
	LeaderOnly bool
}

// SendSignal delivers a one-way application signal to the peer. Signals to
// the local member go straight to the host's signal handler.
func (m *Member) SendSignal(ctx context.Context, name string, payload []byte, opts SignalOptions) error {
	if m.IsClosed() {
		return ErrClosed
	}

	req := &peerapi.SignalRequest{
		SenderID:   uint64(m.localID),
		Name:       name,
		Payload:    payload,
		LeaderOnly: opts.LeaderOnly,
		Confirm:    opts.Confirm,
	}

	if m.IsSelf() {
		return m.fac.HandleSignal(ctx, req)
	}

	_, err := send(ctx, m, peerapi.KindSignal, func(ctx context.Context, c peerapi.Client) (*peerapi.SignalResponse, error) {
		return c.SendSignal(ctx, req)
	})

	return err
}
