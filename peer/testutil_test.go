package peer

import (
	"context"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"

	"github.com/maxpoletaev/quorum/peerapi"
)

// fakeClient is a scriptable in-memory transport client. Unset hooks
// answer with a generic success.
type fakeClient struct {
	mut   sync.Mutex
	calls map[peerapi.Kind]int

	voteFn     func(ctx context.Context, req *peerapi.VoteRequest) (*peerapi.VoteResponse, error)
	appendFn   func(ctx context.Context, req *peerapi.AppendEntriesRequest) (*peerapi.AppendEntriesResponse, error)
	snapshotFn func(ctx context.Context, req *peerapi.InstallSnapshotRequest) (*peerapi.InstallSnapshotResponse, error)
	resignFn   func(ctx context.Context, req *peerapi.ResignRequest) (*peerapi.ResignResponse, error)
	metadataFn func(ctx context.Context, req *peerapi.MetadataRequest) (*peerapi.MetadataResponse, error)
	messageFn  func(ctx context.Context, req *peerapi.MessageRequest) (*peerapi.MessageResponse, error)
	signalFn   func(ctx context.Context, req *peerapi.SignalRequest) (*peerapi.SignalResponse, error)

	closed bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{calls: make(map[peerapi.Kind]int)}
}

func (c *fakeClient) record(kind peerapi.Kind) {
	c.mut.Lock()
	c.calls[kind]++
	c.mut.Unlock()
}

func (c *fakeClient) callCount(kind peerapi.Kind) int {
	c.mut.Lock()
	defer c.mut.Unlock()

	return c.calls[kind]
}

func (c *fakeClient) RequestVote(ctx context.Context, req *peerapi.VoteRequest) (*peerapi.VoteResponse, error) {
	if req.PreVote {
		c.record(peerapi.KindPreVote)
	} else {
		c.record(peerapi.KindRequestVote)
	}

	if c.voteFn != nil {
		return c.voteFn(ctx, req)
	}

	return &peerapi.VoteResponse{Term: req.Term, Granted: true}, nil
}

func (c *fakeClient) AppendEntries(ctx context.Context, req *peerapi.AppendEntriesRequest) (*peerapi.AppendEntriesResponse, error) {
	c.record(peerapi.KindAppendEntries)

	if c.appendFn != nil {
		return c.appendFn(ctx, req)
	}

	return &peerapi.AppendEntriesResponse{Term: req.Term, Success: true}, nil
}

func (c *fakeClient) InstallSnapshot(ctx context.Context, req *peerapi.InstallSnapshotRequest) (*peerapi.InstallSnapshotResponse, error) {
	c.record(peerapi.KindInstallSnapshot)

	if c.snapshotFn != nil {
		return c.snapshotFn(ctx, req)
	}

	return &peerapi.InstallSnapshotResponse{Term: req.Term, Success: true}, nil
}

func (c *fakeClient) Resign(ctx context.Context, req *peerapi.ResignRequest) (*peerapi.ResignResponse, error) {
	c.record(peerapi.KindResign)

	if c.resignFn != nil {
		return c.resignFn(ctx, req)
	}

	return &peerapi.ResignResponse{Acknowledged: true}, nil
}

func (c *fakeClient) Metadata(ctx context.Context, req *peerapi.MetadataRequest) (*peerapi.MetadataResponse, error) {
	c.record(peerapi.KindMetadata)

	if c.metadataFn != nil {
		return c.metadataFn(ctx, req)
	}

	return &peerapi.MetadataResponse{Metadata: map[string]string{}}, nil
}

func (c *fakeClient) SendMessage(ctx context.Context, req *peerapi.MessageRequest) (*peerapi.MessageResponse, error) {
	c.record(peerapi.KindMessage)

	if c.messageFn != nil {
		return c.messageFn(ctx, req)
	}

	return &peerapi.MessageResponse{}, nil
}

func (c *fakeClient) SendSignal(ctx context.Context, req *peerapi.SignalRequest) (*peerapi.SignalResponse, error) {
	c.record(peerapi.KindSignal)

	if c.signalFn != nil {
		return c.signalFn(ctx, req)
	}

	return &peerapi.SignalResponse{}, nil
}

func (c *fakeClient) IsClosed() bool {
	c.mut.Lock()
	defer c.mut.Unlock()

	return c.closed
}

func (c *fakeClient) Close() error {
	c.mut.Lock()
	c.closed = true
	c.mut.Unlock()

	return nil
}

// fakeFacilities is a minimal host driver for tests.
type fakeFacilities struct {
	leaderID MemberID
	metadata map[string]string
	timeouts map[peerapi.Kind]time.Duration

	messageFn func(ctx context.Context, req *peerapi.MessageRequest) (*peerapi.MessageResponse, error)
	signalFn  func(ctx context.Context, req *peerapi.SignalRequest) error
}

func (f *fakeFacilities) IsLeader(id MemberID) bool {
	return id == f.leaderID
}

func (f *fakeFacilities) LocalMetadata() map[string]string {
	return f.metadata
}

func (f *fakeFacilities) TimeoutFor(kind peerapi.Kind) (time.Duration, bool) {
	d, ok := f.timeouts[kind]
	return d, ok
}

func (f *fakeFacilities) HandleMessage(ctx context.Context, req *peerapi.MessageRequest) (*peerapi.MessageResponse, error) {
	if f.messageFn != nil {
		return f.messageFn(ctx, req)
	}

	return &peerapi.MessageResponse{Payload: req.Payload}, nil
}

func (f *fakeFacilities) HandleSignal(ctx context.Context, req *peerapi.SignalRequest) error {
	if f.signalFn != nil {
		return f.signalFn(ctx, req)
	}

	return nil
}

// logCounter counts emitted log events, to assert that a classified
// failure produces exactly one of them.
type logCounter struct {
	mut    sync.Mutex
	events [][]interface{}
}

func (l *logCounter) Log(keyvals ...interface{}) error {
	l.mut.Lock()
	l.events = append(l.events, keyvals)
	l.mut.Unlock()

	return nil
}

func (l *logCounter) count() int {
	l.mut.Lock()
	defer l.mut.Unlock()

	return len(l.events)
}

// countMsg returns the number of events whose "msg" field equals msg.
func (l *logCounter) countMsg(msg string) int {
	l.mut.Lock()
	defer l.mut.Unlock()

	var n int

	for _, kv := range l.events {
		for i := 0; i+1 < len(kv); i += 2 {
			if kv[i] == "msg" && kv[i+1] == msg {
				n++
			}
		}
	}

	return n
}

var _ kitlog.Logger = (*logCounter)(nil)

// latencyRecorder captures metrics samples.
type latencyRecorder struct {
	mut     sync.Mutex
	samples []peerapi.Kind
}

func (r *latencyRecorder) ObserveLatency(id MemberID, kind peerapi.Kind, elapsed time.Duration) {
	r.mut.Lock()
	r.samples = append(r.samples, kind)
	r.mut.Unlock()
}

func (r *latencyRecorder) count() int {
	r.mut.Lock()
	defer r.mut.Unlock()

	return len(r.samples)
}

const (
	remoteAddr = "127.0.0.1:14000"
	localAddr  = "127.0.0.1:14001"
)

// newTestMember wires a remote member backed by the given fake client.
func newTestMember(t interface{ Fatal(args ...interface{}) }, client *fakeClient, conf Config) *Member {
	conf.Addr = remoteAddr

	if conf.LocalID == 0 {
		local, err := ResolveEndpoint(localAddr)
		if err != nil {
			t.Fatal(err)
		}

		conf.LocalID = local.ID()
	}

	if conf.Facilities == nil {
		conf.Facilities = &fakeFacilities{}
	}

	conf.Dialer = func(ctx context.Context, addr string, protocol peerapi.Protocol) (peerapi.Client, error) {
		return client, nil
	}

	m, err := NewMember(context.Background(), conf)
	if err != nil {
		t.Fatal(err)
	}

	return m
}
