package grpc

import (
	"bytes"
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/maxpoletaev/quorum/peerapi"
)

const (
	serviceName = "quorum.v1.Peer"

	methodRequestVote     = "/quorum.v1.Peer/RequestVote"
	methodAppendEntries   = "/quorum.v1.Peer/AppendEntries"
	methodInstallSnapshot = "/quorum.v1.Peer/InstallSnapshot"
	methodResign          = "/quorum.v1.Peer/Resign"
	methodMetadata        = "/quorum.v1.Peer/Metadata"
	methodSendMessage     = "/quorum.v1.Peer/SendMessage"
	methodSendSignal      = "/quorum.v1.Peer/SendSignal"
)

// protocolHeader carries the wire revision the client is pinned to.
const protocolHeader = "quorum-protocol"

// snapshotChunk is one frame of a streamed snapshot transfer. The first
// chunk carries the header fields; the rest carry only data.
type snapshotChunk struct {
	LeaderID      uint64 `json:"leader_id,omitempty"`
	Term          uint64 `json:"term,omitempty"`
	SnapshotIndex uint64 `json:"snapshot_index,omitempty"`
	Data          []byte `json:"data,omitempty"`
}

// Server is the handler side of the peer wire contract. The consensus
// state machine behind it stays external: implementations translate these
// calls into whatever the hosting node does with them.
type Server interface {
	RequestVote(ctx context.Context, req *peerapi.VoteRequest) (*peerapi.VoteResponse, error)
	AppendEntries(ctx context.Context, req *peerapi.AppendEntriesRequest) (*peerapi.AppendEntriesResponse, error)
	InstallSnapshot(ctx context.Context, req *peerapi.InstallSnapshotRequest) (*peerapi.InstallSnapshotResponse, error)
	Resign(ctx context.Context, req *peerapi.ResignRequest) (*peerapi.ResignResponse, error)
	Metadata(ctx context.Context, req *peerapi.MetadataRequest) (*peerapi.MetadataResponse, error)
	SendMessage(ctx context.Context, req *peerapi.MessageRequest) (*peerapi.MessageResponse, error)
	SendSignal(ctx context.Context, req *peerapi.SignalRequest) (*peerapi.SignalResponse, error)
}

// RegisterServer registers the peer service on a gRPC server.
func RegisterServer(reg grpc.ServiceRegistrar, srv Server) {
	reg.RegisterService(&serviceDesc, srv)
}

// ProtocolFromContext extracts the protocol revision the calling peer is
// pinned to from the incoming request metadata.
func ProtocolFromContext(ctx context.Context) (peerapi.Protocol, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return 0, false
	}

	vals := md.Get(protocolHeader)
	if len(vals) == 0 {
		return 0, false
	}

	return peerapi.ParseProtocol(vals[0])
}

func _Peer_RequestVote_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(peerapi.VoteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(Server).RequestVote(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodRequestVote}

	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).RequestVote(ctx, req.(*peerapi.VoteRequest))
	})
}

func _Peer_AppendEntries_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(peerapi.AppendEntriesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(Server).AppendEntries(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodAppendEntries}

	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).AppendEntries(ctx, req.(*peerapi.AppendEntriesRequest))
	})
}

func _Peer_Resign_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(peerapi.ResignRequest)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(Server).Resign(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodResign}

	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).Resign(ctx, req.(*peerapi.ResignRequest))
	})
}

func _Peer_Metadata_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(peerapi.MetadataRequest)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(Server).Metadata(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodMetadata}

	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).Metadata(ctx, req.(*peerapi.MetadataRequest))
	})
}

func _Peer_SendMessage_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(peerapi.MessageRequest)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(Server).SendMessage(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodSendMessage}

	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).SendMessage(ctx, req.(*peerapi.MessageRequest))
	})
}

func _Peer_SendSignal_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(peerapi.SignalRequest)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(Server).SendSignal(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodSendSignal}

	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).SendSignal(ctx, req.(*peerapi.SignalRequest))
	})
}

// _Peer_InstallSnapshot_Handler reassembles the chunked snapshot stream
// and hands it to the server as a single request.
func _Peer_InstallSnapshot_Handler(srv interface{}, stream grpc.ServerStream) error {
	var (
		buf bytes.Buffer
		req *peerapi.InstallSnapshotRequest
	)

	for {
		chunk := new(snapshotChunk)

		err := stream.RecvMsg(chunk)
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return err
		}

		if req == nil {
			req = &peerapi.InstallSnapshotRequest{
				LeaderID:      chunk.LeaderID,
				Term:          chunk.Term,
				SnapshotIndex: chunk.SnapshotIndex,
			}
		}

		buf.Write(chunk.Data)
	}

	if req == nil {
		return status.Error(codes.InvalidArgument, "empty snapshot stream")
	}

	req.Snapshot = &buf

	resp, err := srv.(Server).InstallSnapshot(stream.Context(), req)
	if err != nil {
		return err
	}

	return stream.SendMsg(resp)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RequestVote", Handler: _Peer_RequestVote_Handler},
		{MethodName: "AppendEntries", Handler: _Peer_AppendEntries_Handler},
		{MethodName: "Resign", Handler: _Peer_Resign_Handler},
		{MethodName: "Metadata", Handler: _Peer_Metadata_Handler},
		{MethodName: "SendMessage", Handler: _Peer_SendMessage_Handler},
		{MethodName: "SendSignal", Handler: _Peer_SendSignal_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "InstallSnapshot", Handler: _Peer_InstallSnapshot_Handler, ClientStreams: true},
	},
}
