package membership

import (
	"context"
	"fmt"
	"io"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/memberlist"

	"github.com/maxpoletaev/quorum/peer"
)

// DiscoveryConfig configures the gossip-based membership discovery.
type DiscoveryConfig struct {
	// Name is the unique node name announced over gossip.
	Name string

	// BindAddr/BindPort is where the gossip listener binds.
	BindAddr string
	BindPort int

	// AdvertiseAddr/AdvertisePort is the gossip address announced to other
	// nodes. Empty means derive from the bind address.
	AdvertiseAddr string
	AdvertisePort int

	// PeerAddr is the peer RPC address gossiped as this node's metadata,
	// so other nodes know where to dial consensus requests.
	PeerAddr string

	// LeaveTimeout bounds the graceful leave broadcast on shutdown.
	LeaveTimeout time.Duration

	Logger kitlog.Logger
}

func (c *DiscoveryConfig) withDefaults() {
	if c.Logger == nil {
		c.Logger = kitlog.NewNopLogger()
	}

	if c.LeaveTimeout == 0 {
		c.LeaveTimeout = 5 * time.Second
	}
}

// Discovery keeps a Roster in sync with a gossip member view: nodes
// joining the gossip ring are added as peers, nodes leaving are removed
// and their proxies closed.
type Discovery struct {
	roster *Roster
	conf   DiscoveryConfig
	logger kitlog.Logger
	ml     *memberlist.Memberlist
}

// NewDiscovery creates a discovery bound to the given roster. Start must
// be called before the node is visible to others.
func NewDiscovery(roster *Roster, conf DiscoveryConfig) *Discovery {
	conf.withDefaults()

	return &Discovery{
		roster: roster,
		conf:   conf,
		logger: conf.Logger,
	}
}

// Start launches the gossip listener.
func (d *Discovery) Start() error {
	if d.ml != nil {
		return nil
	}

	cfg := memberlist.DefaultLANConfig()
	cfg.Name = d.conf.Name
	cfg.BindAddr = d.conf.BindAddr
	cfg.BindPort = d.conf.BindPort
	cfg.AdvertiseAddr = d.conf.AdvertiseAddr
	cfg.AdvertisePort = d.conf.AdvertisePort

	// memberlist logs through the stdlib logger; silence it so the
	// structured logger stays the only logging surface.
	cfg.LogOutput = io.Discard

	cfg.Delegate = &nodeDelegate{meta: []byte(d.conf.PeerAddr)}
	cfg.Events = &eventDelegate{d: d}

	ml, err := memberlist.Create(cfg)
	if err != nil {
		return fmt.Errorf("create memberlist: %w", err)
	}

	d.ml = ml

	return nil
}

// Join contacts the given seed nodes and merges their member view.
func (d *Discovery) Join(seeds []string) error {
	if d.ml == nil {
		return fmt.Errorf("discovery not started")
	}

	if _, err := d.ml.Join(seeds); err != nil {
		return fmt.Errorf("join gossip ring: %w", err)
	}

	return nil
}

// Shutdown broadcasts a graceful leave and stops the gossip listener.
func (d *Discovery) Shutdown() error {
	if d.ml == nil {
		return nil
	}

	if err := d.ml.Leave(d.conf.LeaveTimeout); err != nil {
		level.Warn(d.logger).Log("msg", "gossip leave failed", "err", err)
	}

	return d.ml.Shutdown()
}

func (d *Discovery) handleJoin(node *memberlist.Node) {
	addr := string(node.Meta)
	if addr == "" || addr == d.conf.PeerAddr {
		return
	}

	if _, err := d.roster.Add(context.Background(), addr); err != nil {
		level.Error(d.logger).Log(
			"msg", "failed to add discovered member",
			"node", node.Name,
			"addr", addr,
			"err", err,
		)
	}
}

func (d *Discovery) handleLeave(node *memberlist.Node) {
	addr := string(node.Meta)
	if addr == "" || addr == d.conf.PeerAddr {
		return
	}

	endpoint, err := peer.ResolveEndpoint(addr)
	if err != nil {
		level.Error(d.logger).Log("msg", "bad address on leaving member", "node", node.Name, "err", err)
		return
	}

	if err := d.roster.Remove(endpoint.ID()); err != nil && err != ErrMemberNotFound {
		level.Error(d.logger).Log("msg", "failed to remove member", "node", node.Name, "err", err)
	}
}

// eventDelegate forwards gossip membership events to the discovery.
type eventDelegate struct {
	d *Discovery
}

func (e *eventDelegate) NotifyJoin(node *memberlist.Node) { e.d.handleJoin(node) }

func (e *eventDelegate) NotifyLeave(node *memberlist.Node) { e.d.handleLeave(node) }

func (e *eventDelegate) NotifyUpdate(node *memberlist.Node) {}

// nodeDelegate gossips the local peer RPC address as node metadata.
type nodeDelegate struct {
	meta []byte
}

func (n *nodeDelegate) NodeMeta(limit int) []byte {
	if len(n.meta) > limit {
		return n.meta[:limit]
	}

	return n.meta
}

func (n *nodeDelegate) NotifyMsg([]byte)                           {}
func (n *nodeDelegate) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (n *nodeDelegate) LocalState(join bool) []byte                { return nil }
func (n *nodeDelegate) MergeRemoteState(buf []byte, join bool)     {}
