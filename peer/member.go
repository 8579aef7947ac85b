package peer

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	kitlog "github.com/go-kit/log"
	"github.com/twmb/murmur3"

	"github.com/maxpoletaev/quorum/internal/generic"
	"github.com/maxpoletaev/quorum/peerapi"
)

// MemberID is the stable identity of a cluster member, derived from its
// resolved network endpoint. It survives reconnects and process restarts as
// long as the member keeps its address.
type MemberID uint64

func (id MemberID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// Endpoint is the resolved network address of a member. Construction from
// an unresolvable host name fails up front: a bad member address is a
// configuration error, not a runtime retry case.
type Endpoint struct {
	addr *net.TCPAddr
}

// ResolveEndpoint resolves raw (host:port) into an Endpoint. The returned
// error, if any, is a *ConfigError.
func ResolveEndpoint(raw string) (Endpoint, error) {
	addr, err := net.ResolveTCPAddr("tcp", raw)
	if err != nil {
		return Endpoint{}, &ConfigError{Addr: raw, Err: err}
	}

	return Endpoint{addr: addr}, nil
}

func (e Endpoint) String() string {
	if e.addr == nil {
		return ""
	}

	return e.addr.String()
}

// ID derives the member identity from the endpoint. Equal endpoints always
// produce equal identities.
func (e Endpoint) ID() MemberID {
	return MemberID(murmur3.StringSum64(e.String()))
}

// Config carries everything needed to construct a Member. Dialer and
// Facilities are required; the rest defaults sensibly.
type Config struct {
	// Addr is the peer's advertised address in host:port form.
	Addr string

	// LocalID is the identity of the local node, used for the
	// self-short-circuit check and stamped as the sender on every
	// outgoing message.
	LocalID MemberID

	Dialer     peerapi.Dialer
	Facilities Facilities

	// Protocol pins the wire revision spoken to this peer.
	// Zero means peerapi.DefaultProtocol.
	Protocol peerapi.Protocol

	// BulkAppend enables the optimized batch encoding for AppendEntries
	// when the peer is known to support it.
	BulkAppend bool

	Logger  kitlog.Logger
	Metrics Metrics
}

func (c *Config) withDefaults() {
	if c.Logger == nil {
		c.Logger = kitlog.NewNopLogger()
	}

	if c.Protocol == 0 {
		c.Protocol = peerapi.DefaultProtocol
	}
}

// Member is the local proxy for one cluster participant. All outbound
// consensus RPCs to that participant flow through it, and it tracks the
// participant's believed availability across the unreliable network.
//
// A Member is safe for concurrent use: the replication driver may have an
// AppendEntries in flight while the election driver concurrently issues a
// vote request to the same peer.
type Member struct {
	// NextIndex is the next log index the leader believes it should send to
	// this peer. The slot is owned by the replication driver; the member
	// only stores it so it survives across calls.
	NextIndex atomic.Uint64

	id         MemberID
	endpoint   Endpoint
	localID    MemberID
	client     peerapi.Client
	fac        Facilities
	status     *StatusTracker
	logger     kitlog.Logger
	metrics    Metrics
	protocol   peerapi.Protocol
	bulkAppend bool

	// calls maps in-flight request tokens to their cancel functions, so
	// CancelPendingRequests can abort everything currently on the wire.
	calls   generic.SyncMap[uint64, context.CancelFunc]
	callSeq atomic.Uint64

	metaMut sync.Mutex
	meta    map[string]string
	fetched bool

	closed atomic.Bool
}

// NewMember constructs the proxy for the peer at conf.Addr. The address is
// resolved once, up front; an unresolvable address is a *ConfigError. For a
// remote peer the transport client is created immediately through the
// dialer, though the connection itself may be established lazily.
func NewMember(ctx context.Context, conf Config) (*Member, error) {
	conf.withDefaults()

	endpoint, err := ResolveEndpoint(conf.Addr)
	if err != nil {
		return nil, err
	}

	m := &Member{
		id:         endpoint.ID(),
		endpoint:   endpoint,
		localID:    conf.LocalID,
		fac:        conf.Facilities,
		status:     NewStatusTracker(),
		logger:     kitlog.With(conf.Logger, "peer", endpoint.ID()),
		metrics:    conf.Metrics,
		protocol:   conf.Protocol,
		bulkAppend: conf.BulkAppend,
	}

	// The local node never talks to itself over the wire.
	if m.id == conf.LocalID {
		return m, nil
	}

	client, err := conf.Dialer(ctx, endpoint.String(), conf.Protocol)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	m.client = client

	return m, nil
}

// ID returns the stable identity of the member.
func (m *Member) ID() MemberID {
	return m.id
}

// Endpoint returns the resolved network address of the member.
func (m *Member) Endpoint() Endpoint {
	return m.endpoint
}

// IsSelf reports whether this member is the local node itself.
func (m *Member) IsSelf() bool {
	return m.id == m.localID
}

// Protocol returns the wire revision pinned for this peer.
func (m *Member) Protocol() peerapi.Protocol {
	return m.protocol
}

// Status returns the tracked availability of the member. The local member
// is always reported available, independent of the tracked value.
func (m *Member) Status() Status {
	if m.IsSelf() {
		return StatusAvailable
	}

	return m.status.Get()
}

// IsLeader reports whether this member is the current leader, consulting
// the hosting driver rather than anything stored locally.
func (m *Member) IsLeader() bool {
	return m.fac.IsLeader(m.id)
}

// OnStatusChange subscribes to status transitions of this member. The
// handler runs synchronously inside the call that performed the transition.
func (m *Member) OnStatusChange(fn func(m *Member, prev, next Status)) int {
	return m.status.Subscribe(func(prev, next Status) {
		fn(m, prev, next)
	})
}

// Unsubscribe removes a subscription created by OnStatusChange.
func (m *Member) Unsubscribe(id int) {
	m.status.Unsubscribe(id)
}

// CancelPendingRequests aborts every in-flight request to this peer
// immediately. In-flight calls surface a plain cancellation.
func (m *Member) CancelPendingRequests() {
	m.calls.Range(func(id uint64, cancel context.CancelFunc) bool {
		cancel()
		return true
	})
}

// IsClosed returns true once the member has been closed.
func (m *Member) IsClosed() bool {
	return m.closed.Load()
}

// Close cancels pending requests and releases the transport connection.
// It is called when membership removes the peer or the cluster shuts down.
func (m *Member) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil // already closed
	}

	m.CancelPendingRequests()

	if m.client != nil {
		return m.client.Close()
	}

	return nil
}
