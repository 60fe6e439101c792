// Package gametunev1 defines the gametuned agent API: request and response
// messages, the gRPC service descriptor, and a JSON codec the messages are
// carried with.
package gametunev1

import (
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the content-subtype the agent speaks ("application/grpc+json").
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// CallOption selects the JSON codec on a client connection.
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(CodecName)
}
