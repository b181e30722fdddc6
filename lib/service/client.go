// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bureau-foundation/dispatch/lib/codec"
)

// dialTimeout bounds the connect phase only.
const dialTimeout = 5 * time.Second

// ErrConnectionLost is wrapped by every Call error caused by the
// socket itself: nothing listening, or the connection dropping before
// a full response arrived.
var ErrConnectionLost = errors.New("service connection lost")

// ErrResponseTooLarge is wrapped by Call errors for a response longer
// than the protocol allows. The action ran; only its reply was lost.
var ErrResponseTooLarge = errors.New("service response too large")

// ErrMalformedResponse is wrapped by Call errors for a complete reply
// that is not a valid Response.
var ErrMalformedResponse = errors.New("malformed service response")

// ServiceError is returned by Call when the server answers ok=false.
type ServiceError struct {
	Action  string
	Code    string
	Message string
}

func (e *ServiceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("service error on %q (%s): %s", e.Action, e.Code, e.Message)
	}
	return fmt.Sprintf("service error on %q: %s", e.Action, e.Message)
}

// ServiceClient sends requests to one socket. Each Call opens its own
// connection, matching the server's one-exchange-per-connection model.
type ServiceClient struct {
	socketPath string
}

// NewServiceClient creates a client for socketPath.
func NewServiceClient(socketPath string) *ServiceClient {
	return &ServiceClient{socketPath: socketPath}
}

// SocketPath returns the socket the client talks to.
func (c *ServiceClient) SocketPath() string { return c.socketPath }

// Call sends action with fields and decodes the response data into
// result (when both are non-nil). fields must not contain "action".
//
// A failure response is returned as *ServiceError. Dial and write
// failures, and a connection that closes before a complete response
// arrived, wrap ErrConnectionLost. Oversized and undecodable responses
// wrap ErrResponseTooLarge and ErrMalformedResponse. Cancelling ctx
// closes the connection and makes Call return an error wrapping
// ctx.Err().
func (c *ServiceClient) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	request := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		request[key] = value
	}
	request["action"] = action

	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}

	if !response.OK {
		return &ServiceError{
			Action:  action,
			Code:    response.Code,
			Message: response.Error,
		}
	}

	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}
	return nil
}

func (c *ServiceClient) send(ctx context.Context, request any) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w: %w", ErrConnectionLost, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("writing request: %w: %w", ErrConnectionLost, err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	// The server closes the connection after its single response, so
	// reading to EOF yields exactly one encoded Response. Reading one
	// byte past the cap distinguishes "too large" from "exactly full".
	data, err := io.ReadAll(io.LimitReader(conn, maxResponseSize+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("reading response: %w: %w", ErrConnectionLost, err)
	}
	if len(data) > maxResponseSize {
		return nil, fmt.Errorf("reading response: %w (limit %d bytes)", ErrResponseTooLarge, maxResponseSize)
	}
	if len(data) == 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("reading response: %w: closed without a response", ErrConnectionLost)
	}

	var response Response
	if err := codec.Unmarshal(data, &response); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("reading response: %w: truncated: %w", ErrConnectionLost, err)
		}
		return nil, fmt.Errorf("decoding response: %w: %w", ErrMalformedResponse, err)
	}
	return &response, nil
}
