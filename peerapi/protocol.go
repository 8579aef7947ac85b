package peerapi

// Protocol selects the wire revision spoken to a particular peer. Newer
// revisions are negotiated out of band (e.g. from node metadata), so the
// transport never guesses: each peer client is pinned to exactly one tier.
type Protocol int

const (
	// ProtocolV1 is the legacy revision kept for rolling upgrades.
	ProtocolV1 Protocol = iota + 1
	// ProtocolV2 is the revision spoken by default.
	ProtocolV2
	// ProtocolV3 is the newest revision.
	ProtocolV3
)

// DefaultProtocol is used when a peer has no explicit protocol pin.
const DefaultProtocol = ProtocolV2

func (p Protocol) String() string {
	switch p {
	case ProtocolV1:
		return "v1"
	case ProtocolV2:
		return "v2"
	case ProtocolV3:
		return "v3"
	default:
		return ""
	}
}

// ParseProtocol is the inverse of String. The ok result is false for
// unknown revisions.
func ParseProtocol(s string) (Protocol, bool) {
	switch s {
	case "v1":
		return ProtocolV1, true
	case "v2":
		return ProtocolV2, true
	case "v3":
		return ProtocolV3, true
	default:
		return 0, false
	}
}
