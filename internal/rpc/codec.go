// Package rpc defines the gRPC series service that archive hosts expose to
// pipeline runs and live consumers. The wire format is MessagePack rather
// than protobuf: every message is a plain Go struct with msgpack tags, and
// a custom codec carries them over gRPC framing.
package rpc

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/grpc/encoding"
)

// CodecName is the content-subtype clients must request so both ends agree
// on MessagePack framing
const CodecName = "msgpack"

func init() {
	encoding.RegisterCodec(msgpackCodec{})
}

// msgpackCodec implements grpc encoding.Codec over MessagePack
type msgpackCodec struct{}

func (msgpackCodec) Marshal(v interface{}) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("msgpack marshal failed: %w", err)
	}
	return b, nil
}

func (msgpackCodec) Unmarshal(data []byte, v interface{}) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("msgpack unmarshal failed: %w", err)
	}
	return nil
}

func (msgpackCodec) Name() string {
	return CodecName
}
