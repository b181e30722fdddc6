// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package frameactor

import (
	"context"
	"errors"

	"github.com/bureau-foundation/dispatch/browsingcontext"
	"github.com/bureau-foundation/dispatch/lib/codec"
	"github.com/bureau-foundation/dispatch/lib/service"
	"github.com/bureau-foundation/dispatch/messagehandler"
)

// SocketChannel delivers commands to actors over their Unix sockets.
// The zero value is ready to use.
type SocketChannel struct{}

// NewSocketChannel returns a SocketChannel.
func NewSocketChannel() *SocketChannel { return &SocketChannel{} }

// SendCommand calls the actor at surface.Endpoint and returns the raw
// CBOR result.
//
// A surface without an endpoint, a socket nobody listens on, a
// connection dropped mid-exchange and an aborted response all mean the
// actor is gone, and are returned as *messagehandler.AbortError.
// Failures reported by the command itself come back as the
// *service.ServiceError the actor sent. A reply that arrived but was
// too large or undecodable is returned as is: the command ran, so it
// must not be retried.
func (c *SocketChannel) SendCommand(ctx context.Context, surface browsingcontext.WindowGlobal, command *messagehandler.Command, sessionID string) (codec.RawMessage, error) {
	if surface.Endpoint == "" {
		return nil, &messagehandler.AbortError{Cause: errors.New("surface has no actor endpoint")}
	}

	client := service.NewServiceClient(surface.Endpoint)
	var result codec.RawMessage
	err := client.Call(ctx, commandAction, map[string]any{
		"session_id": sessionID,
		"command":    command,
	}, &result)
	if err == nil {
		return result, nil
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	var serviceError *service.ServiceError
	if errors.As(err, &serviceError) && serviceError.Code == service.CodeAborted {
		return nil, &messagehandler.AbortError{Endpoint: surface.Endpoint, Cause: err}
	}
	if errors.Is(err, service.ErrConnectionLost) {
		return nil, &messagehandler.AbortError{Endpoint: surface.Endpoint, Cause: err}
	}
	return nil, err
}
