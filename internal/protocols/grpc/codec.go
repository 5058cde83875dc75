// Package grpc exposes the gateway's intent set as unary RPCs. The wire
// encoding is JSON: messages are plain structs, the service descriptor
// is hand-written, and no generated code is checked in.
package grpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// Name is the registered codec name; clients select it with
// grpc.CallContentSubtype(Name).
const Name = "json"

// Codec marshals RPC messages as JSON.
type Codec struct{}

func (Codec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json codec: %w", err)
	}
	return nil
}

func (Codec) Name() string {
	return Name
}

func init() {
	encoding.RegisterCodec(Codec{})
}
