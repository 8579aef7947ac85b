package peerapi

import "io"

// LogEntry is a single replicated log record. Entries travel by reference
// in AppendEntriesRequest so that a large batch is never duplicated between
// the replication driver and the transport.
type LogEntry struct {
	Term  uint64 `json:"term"`
	Index uint64 `json:"index"`
	Data  []byte `json:"data"`
}

type VoteRequest struct {
	CandidateID  uint64 `json:"candidate_id"`
	Term         uint64 `json:"term"`
	LastLogIndex uint64 `json:"last_log_index"`
	LastLogTerm  uint64 `json:"last_log_term"`
	// PreVote marks a non-disruptive vote probe: the receiver answers as it
	// would for a real vote but does not advance its term.
	PreVote bool `json:"pre_vote,omitempty"`
}

type VoteResponse struct {
	Term    uint64 `json:"term"`
	Granted bool   `json:"granted"`
}

type AppendEntriesRequest struct {
	LeaderID     uint64      `json:"leader_id"`
	Term         uint64      `json:"term"`
	PrevLogIndex uint64      `json:"prev_log_index"`
	PrevLogTerm  uint64      `json:"prev_log_term"`
	LeaderCommit uint64      `json:"leader_commit"`
	Entries      []*LogEntry `json:"entries"`
	// Bulk requests the optimized batch encoding, for peers known to
	// support it.
	Bulk bool `json:"bulk,omitempty"`
}

type AppendEntriesResponse struct {
	Term    uint64 `json:"term"`
	Success bool   `json:"success"`
}

type InstallSnapshotRequest struct {
	LeaderID      uint64 `json:"leader_id"`
	Term          uint64 `json:"term"`
	SnapshotIndex uint64 `json:"snapshot_index"`
	// Snapshot is the compacted state payload. It is consumed exactly once
	// by the transport, which streams it to the peer in chunks.
	Snapshot io.Reader `json:"-"`
}

type InstallSnapshotResponse struct {
	Term    uint64 `json:"term"`
	Success bool   `json:"success"`
}

type ResignRequest struct {
	SenderID uint64 `json:"sender_id"`
}

type ResignResponse struct {
	Acknowledged bool `json:"acknowledged"`
}

type MetadataRequest struct {
	SenderID uint64 `json:"sender_id"`
}

type MetadataResponse struct {
	Metadata map[string]string `json:"metadata"`
}

// MessageRequest carries an opaque application-level payload. The consensus
// layer never inspects Payload.
type MessageRequest struct {
	SenderID uint64 `json:"sender_id"`
	Name     string `json:"name"`
	Payload  []byte `json:"payload"`
	// LeaderOnly instructs the receiver to reject the message unless it is
	// the current leader.
	LeaderOnly bool `json:"leader_only,omitempty"`
}

type MessageResponse struct {
	Payload []byte `json:"payload"`
}

// SignalRequest is a one-way application notification. When Confirm is set
// the sender blocks until the receiver acknowledges; otherwise the receiver
// replies immediately after accepting the signal.
type SignalRequest struct {
	SenderID   uint64 `json:"sender_id"`
	Name       string `json:"name"`
	Payload    []byte `json:"payload"`
	LeaderOnly bool   `json:"leader_only,omitempty"`
	Confirm    bool   `json:"confirm,omitempty"`
}

type SignalResponse struct{}
