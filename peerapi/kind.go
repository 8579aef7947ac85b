package peerapi

// Kind identifies one of the outbound RPC kinds of the consensus protocol.
// Timeout policy and error classification are resolved per kind.
type Kind int

const (
	KindRequestVote Kind = iota + 1
	KindPreVote
	KindAppendEntries
	KindInstallSnapshot
	KindResign
	KindMetadata
	KindMessage
	KindSignal
)

func (k Kind) String() string {
	switch k {
	case KindRequestVote:
		return "request_vote"
	case KindPreVote:
		return "pre_vote"
	case KindAppendEntries:
		return "append_entries"
	case KindInstallSnapshot:
		return "install_snapshot"
	case KindResign:
		return "resign"
	case KindMetadata:
		return "metadata"
	case KindMessage:
		return "message"
	case KindSignal:
		return "signal"
	default:
		return ""
	}
}
