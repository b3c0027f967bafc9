package rpc

import (
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype used by ImageService
// (application/grpc+json).
const CodecName = "json"

// MaxMessageSize bounds one gRPC message in either direction: a MaxUpload
// payload as base64 plus room for the JSON envelope.
const MaxMessageSize = (MaxUpload+2)/3*4 + 64<<10

// ServerOptions returns the options every ImageService server is built with.
func ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.MaxRecvMsgSize(MaxMessageSize),
		grpc.MaxSendMsgSize(MaxMessageSize),
	}
}

// jsonCodec marshals the plain Go message types of this package. []byte
// fields travel as base64 strings.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
