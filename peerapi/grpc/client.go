package grpc

import (
	"context"
	"io"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/maxpoletaev/quorum/internal/multierror"
	"github.com/maxpoletaev/quorum/peerapi"
)

// snapshotChunkSize is the payload size of a single snapshot frame.
const snapshotChunkSize = 256 * 1024

var installSnapshotStreamDesc = &grpc.StreamDesc{
	StreamName:    "InstallSnapshot",
	ClientStreams: true,
}

var _ peerapi.Client = (*Client)(nil)

// Client speaks the peer wire contract over a single gRPC connection. It is
// pinned to one protocol revision, stamped on every outgoing call.
type Client struct {
	cc       grpc.ClientConnInterface
	protocol peerapi.Protocol
	onClose  []func() error
	closed   uint32
}

// NewClient wraps an established gRPC connection. The caller remains
// responsible for closing conn unless an on-close hook is added.
func NewClient(cc grpc.ClientConnInterface, protocol peerapi.Protocol) *Client {
	return &Client{
		cc:       cc,
		protocol: protocol,
	}
}

func (c *Client) addOnCloseHook(f func() error) {
	c.onClose = append(c.onClose, f)
}

func (c *Client) Close() error {
	if !atomic.CompareAndSwapUint32(&c.closed, 0, 1) {
		return nil // already closed
	}

	errs := multierror.New[int]()

	for idx, f := range c.onClose {
		if err := f(); err != nil {
			errs.Add(idx, err)
		}
	}

	return errs.Combined()
}

func (c *Client) IsClosed() bool {
	return atomic.LoadUint32(&c.closed) == 1
}

func (c *Client) withProtocol(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, protocolHeader, c.protocol.String())
}

func (c *Client) invoke(ctx context.Context, method string, req, resp interface{}) error {
	return c.cc.Invoke(c.withProtocol(ctx), method, req, resp)
}

func (c *Client) RequestVote(ctx context.Context, req *peerapi.VoteRequest) (*peerapi.VoteResponse, error) {
	resp := new(peerapi.VoteResponse)
	if err := c.invoke(ctx, methodRequestVote, req, resp); err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) AppendEntries(ctx context.Context, req *peerapi.AppendEntriesRequest) (*peerapi.AppendEntriesResponse, error) {
	resp := new(peerapi.AppendEntriesResponse)
	if err := c.invoke(ctx, methodAppendEntries, req, resp); err != nil {
		return nil, err
	}

	return resp, nil
}

// InstallSnapshot streams the snapshot payload to the peer in fixed-size
// chunks and waits for the single response. The header fields travel on the
// first chunk only.
func (c *Client) InstallSnapshot(ctx context.Context, req *peerapi.InstallSnapshotRequest) (*peerapi.InstallSnapshotResponse, error) {
	stream, err := c.cc.NewStream(c.withProtocol(ctx), installSnapshotStreamDesc, methodInstallSnapshot)
	if err != nil {
		return nil, err
	}

	header := &snapshotChunk{
		LeaderID:      req.LeaderID,
		Term:          req.Term,
		SnapshotIndex: req.SnapshotIndex,
	}

	if err := stream.SendMsg(header); err != nil {
		return nil, err
	}

	if req.Snapshot != nil {
		buf := make([]byte, snapshotChunkSize)

		for {
			n, err := req.Snapshot.Read(buf)
			if n > 0 {
				chunk := &snapshotChunk{Data: buf[:n]}
				if err := stream.SendMsg(chunk); err != nil {
					return nil, err
				}
			}

			if err == io.EOF {
				break
			} else if err != nil {
				return nil, err
			}
		}
	}

	if err := stream.CloseSend(); err != nil {
		return nil, err
	}

	resp := new(peerapi.InstallSnapshotResponse)
	if err := stream.RecvMsg(resp); err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) Resign(ctx context.Context, req *peerapi.ResignRequest) (*peerapi.ResignResponse, error) {
	resp := new(peerapi.ResignResponse)
	if err := c.invoke(ctx, methodResign, req, resp); err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) Metadata(ctx context.Context, req *peerapi.MetadataRequest) (*peerapi.MetadataResponse, error) {
	resp := new(peerapi.MetadataResponse)
	if err := c.invoke(ctx, methodMetadata, req, resp); err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) SendMessage(ctx context.Context, req *peerapi.MessageRequest) (*peerapi.MessageResponse, error) {
	resp := new(peerapi.MessageResponse)
	if err := c.invoke(ctx, methodSendMessage, req, resp); err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) SendSignal(ctx context.Context, req *peerapi.SignalRequest) (*peerapi.SignalResponse, error) {
	resp := new(peerapi.SignalResponse)
	if err := c.invoke(ctx, methodSendSignal, req, resp); err != nil {
		return nil, err
	}

	return resp, nil
}
