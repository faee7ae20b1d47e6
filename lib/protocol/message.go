// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"

	"github.com/TheBaxes/slurm/lib/codec"
)

// Message is the envelope for every request and reply on the wire.
type Message struct {
	Type MessageType      `cbor:"1,keyasint"`
	Data codec.RawMessage `cbor:"2,keyasint,omitempty"`
}

// NewMessage encodes payload and wraps it in a Message of the given
// type. A nil payload produces a Message with no Data.
func NewMessage(messageType MessageType, payload any) (*Message, error) {
	message := &Message{Type: messageType}
	if payload == nil {
		return message, nil
	}
	data, err := codec.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", messageType, err)
	}
	message.Data = data
	return message, nil
}

// Decode unmarshals the message payload into target.
func (m *Message) Decode(target any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%s message has no payload", m.Type)
	}
	if err := codec.Unmarshal(m.Data, target); err != nil {
		return fmt.Errorf("decoding %s payload: %w", m.Type, err)
	}
	return nil
}

// NewReturnCode builds a ResponseReturnCode message.
func NewReturnCode(code ReturnCode) *Message {
	// A single small integer field cannot fail to encode.
	message, _ := NewMessage(ResponseReturnCode, ReturnCodeReply{ReturnCode: code})
	return message
}
