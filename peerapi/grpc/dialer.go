package grpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/maxpoletaev/quorum/peerapi"
)

var _ peerapi.Dialer = Dial

// Dial creates the gRPC connection primitive for a peer. The connection is
// established lazily, on first use: an unreachable peer surfaces as a
// failed request, not as a failed dial.
func Dial(ctx context.Context, addr string, protocol peerapi.Protocol) (peerapi.Client, error) {
	conn, err := grpc.DialContext(
		ctx,
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.ForceCodec(jsonCodec{}),
			grpc.CallContentSubtype("json"),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial failed: %w", err)
	}

	c := NewClient(conn, protocol)

	c.addOnCloseHook(func() error {
		return conn.Close()
	})

	return c, nil
}
