package grpc

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/maxpoletaev/quorum/peerapi"
)

// testServer is a scriptable implementation of the peer wire contract.
type testServer struct {
	mut sync.Mutex

	seenProtocol peerapi.Protocol
	snapshotReq  *peerapi.InstallSnapshotRequest
	snapshotData []byte

	voteErr error
}

func (s *testServer) protocol() peerapi.Protocol {
	s.mut.Lock()
	defer s.mut.Unlock()

	return s.seenProtocol
}

func (s *testServer) snapshot() (*peerapi.InstallSnapshotRequest, []byte) {
	s.mut.Lock()
	defer s.mut.Unlock()

	return s.snapshotReq, s.snapshotData
}

func (s *testServer) recordProtocol(ctx context.Context) {
	if p, ok := ProtocolFromContext(ctx); ok {
		s.mut.Lock()
		s.seenProtocol = p
		s.mut.Unlock()
	}
}

func (s *testServer) RequestVote(ctx context.Context, req *peerapi.VoteRequest) (*peerapi.VoteResponse, error) {
	s.recordProtocol(ctx)

	if s.voteErr != nil {
		return nil, s.voteErr
	}

	return &peerapi.VoteResponse{Term: req.Term, Granted: !req.PreVote}, nil
}

func (s *testServer) AppendEntries(ctx context.Context, req *peerapi.AppendEntriesRequest) (*peerapi.AppendEntriesResponse, error) {
	s.recordProtocol(ctx)
	return &peerapi.AppendEntriesResponse{Term: req.Term, Success: true}, nil
}

func (s *testServer) InstallSnapshot(ctx context.Context, req *peerapi.InstallSnapshotRequest) (*peerapi.InstallSnapshotResponse, error) {
	s.recordProtocol(ctx)

	data, err := io.ReadAll(req.Snapshot)
	if err != nil {
		return nil, err
	}

	s.mut.Lock()
	s.snapshotReq = req
	s.snapshotData = data
	s.mut.Unlock()

	return &peerapi.InstallSnapshotResponse{Term: req.Term, Success: true}, nil
}

func (s *testServer) Resign(ctx context.Context, req *peerapi.ResignRequest) (*peerapi.ResignResponse, error) {
	return &peerapi.ResignResponse{Acknowledged: true}, nil
}

func (s *testServer) Metadata(ctx context.Context, req *peerapi.MetadataRequest) (*peerapi.MetadataResponse, error) {
	return &peerapi.MetadataResponse{Metadata: map[string]string{"dc": "eu-1"}}, nil
}

func (s *testServer) SendMessage(ctx context.Context, req *peerapi.MessageRequest) (*peerapi.MessageResponse, error) {
	return &peerapi.MessageResponse{Payload: req.Payload}, nil
}

func (s *testServer) SendSignal(ctx context.Context, req *peerapi.SignalRequest) (*peerapi.SignalResponse, error) {
	return &peerapi.SignalResponse{}, nil
}

func newTestClient(t *testing.T, srv *testServer, protocol peerapi.Protocol) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	RegisterServer(server, srv)

	go func() {
		_ = server.Serve(lis)
	}()

	conn, err := grpc.DialContext(
		context.Background(),
		"bufnet",
		grpc.WithContextDialer(func(ctx context.Context, addr string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.ForceCodec(jsonCodec{}),
			grpc.CallContentSubtype("json"),
		),
	)
	require.NoError(t, err)

	client := NewClient(conn, protocol)

	client.addOnCloseHook(func() error {
		return conn.Close()
	})

	t.Cleanup(func() {
		_ = client.Close()
		server.Stop()
	})

	return client
}

func TestClient_RequestVote(t *testing.T) {
	srv := &testServer{}
	client := newTestClient(t, srv, peerapi.ProtocolV2)

	resp, err := client.RequestVote(context.Background(), &peerapi.VoteRequest{
		CandidateID:  7,
		Term:         5,
		LastLogIndex: 10,
		LastLogTerm:  4,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(5), resp.Term)
	assert.True(t, resp.Granted)
}

func TestClient_ProtocolHeader(t *testing.T) {
	srv := &testServer{}
	client := newTestClient(t, srv, peerapi.ProtocolV3)

	_, err := client.AppendEntries(context.Background(), &peerapi.AppendEntriesRequest{Term: 1})
	require.NoError(t, err)

	assert.Equal(t, peerapi.ProtocolV3, srv.protocol())
}

func TestClient_AppendEntriesPayload(t *testing.T) {
	srv := &testServer{}
	client := newTestClient(t, srv, peerapi.ProtocolV2)

	entries := []*peerapi.LogEntry{
		{Term: 2, Index: 11, Data: []byte("set x=1")},
		{Term: 2, Index: 12, Data: []byte("set y=2")},
	}

	resp, err := client.AppendEntries(context.Background(), &peerapi.AppendEntriesRequest{
		LeaderID:     7,
		Term:         2,
		PrevLogIndex: 10,
		PrevLogTerm:  2,
		LeaderCommit: 10,
		Entries:      entries,
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestClient_ErrorCodePassthrough(t *testing.T) {
	srv := &testServer{voteErr: status.Error(codes.FailedPrecondition, "stale term")}
	client := newTestClient(t, srv, peerapi.ProtocolV2)

	_, err := client.RequestVote(context.Background(), &peerapi.VoteRequest{Term: 1})
	require.Error(t, err)

	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestClient_InstallSnapshotStreaming(t *testing.T) {
	srv := &testServer{}
	client := newTestClient(t, srv, peerapi.ProtocolV2)

	// Large enough to span multiple chunks.
	payload := make([]byte, 3*snapshotChunkSize+100)
	_, err := rand.New(rand.NewSource(1)).Read(payload)
	require.NoError(t, err)

	resp, err := client.InstallSnapshot(context.Background(), &peerapi.InstallSnapshotRequest{
		LeaderID:      7,
		Term:          3,
		SnapshotIndex: 1000,
		Snapshot:      bytes.NewReader(payload),
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)

	req, data := srv.snapshot()
	require.NotNil(t, req)
	assert.Equal(t, uint64(3), req.Term)
	assert.Equal(t, uint64(1000), req.SnapshotIndex)
	assert.Equal(t, payload, data)
}

func TestClient_InstallSnapshotEmpty(t *testing.T) {
	srv := &testServer{}
	client := newTestClient(t, srv, peerapi.ProtocolV2)

	resp, err := client.InstallSnapshot(context.Background(), &peerapi.InstallSnapshotRequest{
		Term:          1,
		SnapshotIndex: 1,
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)

	_, data := srv.snapshot()
	assert.Empty(t, data)
}

func TestClient_Close(t *testing.T) {
	srv := &testServer{}
	client := newTestClient(t, srv, peerapi.ProtocolV2)

	require.False(t, client.IsClosed())
	require.NoError(t, client.Close())
	assert.True(t, client.IsClosed())

	// Closing twice is a no-op.
	require.NoError(t, client.Close())
}
