package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec is a gRPC codec for JSON payloads. The peer wire contract is
// small and internal to the cluster, so JSON keeps the transport free of
// protobuf codegen while staying debuggable on the wire.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)   { return json.Marshal(v) }
func (jsonCodec) Unmarshal(b []byte, v interface{}) error { return json.Unmarshal(b, v) }
func (jsonCodec) Name() string                            { return "json" }

func init() {
	// Registered once so servers can resolve the codec by content subtype.
	encoding.RegisterCodec(jsonCodec{})
}
