// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package configless

import (
	"context"
	"errors"
	"fmt"

	"github.com/TheBaxes/slurm/lib/protocol"
	"github.com/TheBaxes/slurm/lib/rpc"
)

// FlagRequestSlurmdConfigs asks the controller to include the
// node-side auxiliary configs along with the main config.
const FlagRequestSlurmdConfigs uint32 = 1 << 0

// ErrUnexpectedMessage is returned when the controller answers a
// config request with something other than a bundle or return code.
var ErrUnexpectedMessage = errors.New("configless: unexpected reply to config request")

// Fetch requests the config bundle from the controller at address.
//
// A return-code reply yields a *protocol.ReturnCodeError and no bundle.
// Transport failures are returned as the *rpc.TransportError from
// caller.
func Fetch(ctx context.Context, caller rpc.Caller, address string, flags uint32) (*Bundle, error) {
	request, err := protocol.NewMessage(protocol.RequestConfig, protocol.ConfigRequest{Flags: flags})
	if err != nil {
		return nil, err
	}
	reply, err := caller.SendRecv(ctx, address, request)
	if err != nil {
		return nil, err
	}

	switch reply.Type {
	case protocol.ResponseConfig:
		var bundle Bundle
		if err := reply.Decode(&bundle); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedMessage, err)
		}
		return &bundle, nil
	case protocol.ResponseReturnCode:
		var payload protocol.ReturnCodeReply
		if err := reply.Decode(&payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedMessage, err)
		}
		if payload.ReturnCode == protocol.CodeSuccess {
			return nil, fmt.Errorf("%w: success code without a bundle", ErrUnexpectedMessage)
		}
		return nil, fmt.Errorf("controller %s refused config request: %w",
			address, &protocol.ReturnCodeError{Code: payload.ReturnCode})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedMessage, reply.Type)
	}
}
