package membership

import (
	"context"
	"errors"
	"sync"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/maxpoletaev/quorum/internal/generic"
	"github.com/maxpoletaev/quorum/internal/multierror"
	"github.com/maxpoletaev/quorum/peer"
	"github.com/maxpoletaev/quorum/peerapi"
)

var (
	// ErrMemberNotFound is returned when the member is not in the roster.
	ErrMemberNotFound = errors.New("membership: member not found")
)

// Config carries the shared wiring handed to every member the roster
// creates.
type Config struct {
	// LocalAddr is the advertised address of the local node. The roster
	// derives the local identity from it and creates the self member up
	// front.
	LocalAddr string

	Dialer     peerapi.Dialer
	Facilities peer.Facilities

	// Protocol pins the default wire revision for new peers.
	// Zero means peerapi.DefaultProtocol.
	Protocol peerapi.Protocol

	// BulkAppend enables the optimized AppendEntries encoding for peers
	// added to this roster.
	BulkAppend bool

	Logger  kitlog.Logger
	Metrics peer.Metrics
}

func (c *Config) withDefaults() {
	if c.Logger == nil {
		c.Logger = kitlog.NewNopLogger()
	}
}

// Roster owns the per-peer proxies for the configured member set. A proxy
// is created when its member is added and lives until membership removes
// the member or the roster shuts down, at which point its pending requests
// are cancelled and its transport connection released.
type Roster struct {
	mut     sync.RWMutex
	selfID  peer.MemberID
	members map[peer.MemberID]*peer.Member
	conf    Config
	logger  kitlog.Logger
}

// NewRoster creates a roster containing only the local member.
func NewRoster(conf Config) (*Roster, error) {
	conf.withDefaults()

	local, err := peer.ResolveEndpoint(conf.LocalAddr)
	if err != nil {
		return nil, err
	}

	r := &Roster{
		selfID:  local.ID(),
		members: make(map[peer.MemberID]*peer.Member, 1),
		conf:    conf,
		logger:  conf.Logger,
	}

	self, err := r.newMember(context.Background(), conf.LocalAddr)
	if err != nil {
		return nil, err
	}

	r.members[self.ID()] = self

	return r, nil
}

func (r *Roster) newMember(ctx context.Context, addr string) (*peer.Member, error) {
	return peer.NewMember(ctx, peer.Config{
		Addr:       addr,
		LocalID:    r.selfID,
		Dialer:     r.conf.Dialer,
		Facilities: r.conf.Facilities,
		Protocol:   r.conf.Protocol,
		BulkAppend: r.conf.BulkAppend,
		Logger:     r.conf.Logger,
		Metrics:    r.conf.Metrics,
	})
}

// SelfID returns the identity of the local node.
func (r *Roster) SelfID() peer.MemberID {
	return r.selfID
}

// Self returns the local member.
func (r *Roster) Self() *peer.Member {
	r.mut.RLock()
	defer r.mut.RUnlock()

	return r.members[r.selfID]
}

// Member returns the member with the given identity, if present.
func (r *Roster) Member(id peer.MemberID) (*peer.Member, bool) {
	r.mut.RLock()
	defer r.mut.RUnlock()

	m, ok := r.members[id]

	return m, ok
}

// Members returns all known members, including the local one, ordered by
// identity so the listing is stable across calls.
func (r *Roster) Members() []*peer.Member {
	r.mut.RLock()
	members := generic.MapValues(r.members)
	r.mut.RUnlock()

	generic.SortSliceBy(members, func(m *peer.Member) uint64 {
		return uint64(m.ID())
	})

	return members
}

// Add creates a proxy for the member at addr and registers it. Adding an
// already known member returns the existing proxy.
func (r *Roster) Add(ctx context.Context, addr string) (*peer.Member, error) {
	endpoint, err := peer.ResolveEndpoint(addr)
	if err != nil {
		return nil, err
	}

	r.mut.Lock()
	defer r.mut.Unlock()

	if m, ok := r.members[endpoint.ID()]; ok {
		return m, nil
	}

	m, err := r.newMember(ctx, addr)
	if err != nil {
		return nil, err
	}

	r.members[m.ID()] = m

	level.Info(r.logger).Log("msg", "member added", "peer", m.ID(), "addr", endpoint)

	return m, nil
}

// Remove drops the member from the roster, cancelling its in-flight
// requests and releasing its connection. The local member cannot be
// removed.
func (r *Roster) Remove(id peer.MemberID) error {
	if id == r.selfID {
		return errors.New("membership: cannot remove the local member")
	}

	r.mut.Lock()

	m, ok := r.members[id]
	if !ok {
		r.mut.Unlock()
		return ErrMemberNotFound
	}

	delete(r.members, id)
	r.mut.Unlock()

	level.Info(r.logger).Log("msg", "member removed", "peer", id)

	return m.Close()
}

// Close shuts the roster down, closing every member.
func (r *Roster) Close() error {
	r.mut.Lock()
	defer r.mut.Unlock()

	errs := multierror.New[peer.MemberID]()

	for id, m := range r.members {
		delete(r.members, id)

		if err := m.Close(); err != nil {
			errs.Add(id, err)
		}
	}

	return errs.Combined()
}
