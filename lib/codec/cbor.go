// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode encodes with Core Deterministic Encoding (RFC 8949 §4.2) so
// a given message always produces the same bytes on the wire.
var encMode cbor.EncMode

// decMode accepts standard CBOR. Unknown fields are ignored so an
// older agent can still talk to a newer controller.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Message payloads never use non-string map keys; decoding into
		// any should produce map[string]any rather than CBOR's default
		// map[interface{}]interface{}.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		// Bound nesting and container sizes so a hostile peer cannot make
		// a worker allocate without limit before the size cap applies.
		MaxNestedLevels:  32,
		MaxArrayElements: 65536,
		MaxMapPairs:      65536,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Encoder is a CBOR stream encoder.
type Encoder = cbor.Encoder

// Decoder is a CBOR stream decoder.
type Decoder = cbor.Decoder

// RawMessage is an encoded CBOR value whose decoding is deferred until
// the receiver knows the concrete payload type.
type RawMessage = cbor.RawMessage

// NewEncoder returns a CBOR encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a CBOR decoder that reads from r.
func NewDecoder(r io.Reader) *Decoder {
	return decMode.NewDecoder(r)
}
