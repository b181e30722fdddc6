// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messagehandler

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/dispatch/browsingcontext"
)

// InvalidDestinationError reports a malformed destination. It is a
// caller bug and is never retried.
type InvalidDestinationError struct {
	Reason string
}

func (e *InvalidDestinationError) Error() string {
	return "invalid destination: " + e.Reason
}

// UnsupportedDescriptorError reports a broadcast descriptor type this
// transport cannot resolve.
type UnsupportedDescriptorError struct {
	Type DescriptorType
}

func (e *UnsupportedDescriptorError) Error() string {
	return fmt.Sprintf("unsupported context descriptor type %q", e.Type)
}

// DiscardedContextError reports that the target context does not
// exist, went away permanently, or kept aborting until the retry
// budget ran out. Callers should treat it as "target no longer
// applicable".
type DiscardedContextError struct {
	ContextID browsingcontext.ID

	// Attempts is the number of sends made before giving up. Zero
	// when the context was gone before the first send.
	Attempts int

	// Cause is the last underlying error, if any.
	Cause error
}

func (e *DiscardedContextError) Error() string {
	message := fmt.Sprintf("browsing context %d discarded", e.ContextID)
	if e.Attempts > 0 {
		message = fmt.Sprintf("%s after %d attempts", message, e.Attempts)
	}
	if e.Cause != nil {
		message = message + ": " + e.Cause.Error()
	}
	return message
}

func (e *DiscardedContextError) Unwrap() error { return e.Cause }

// AbortError is returned by a RemoteChannel when the frame actor
// serving a command was torn down mid-call, typically by a navigation
// or process swap.
type AbortError struct {
	// Endpoint is the actor endpoint the call was made to.
	Endpoint string
	Cause    error
}

func (e *AbortError) Error() string {
	message := "actor aborted"
	if e.Endpoint != "" {
		message = fmt.Sprintf("actor at %s aborted", e.Endpoint)
	}
	if e.Cause != nil {
		message = fmt.Sprintf("%s: %v", message, e.Cause)
	}
	return message
}

func (e *AbortError) Unwrap() error { return e.Cause }

// UnknownCommandError is returned when no module handler is
// registered for a command.
type UnknownCommandError struct {
	ModuleName  string
	CommandName string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %s.%s", e.ModuleName, e.CommandName)
}

// ErrHandlerDestroyed is returned by a RootMessageHandler after
// Destroy.
var ErrHandlerDestroyed = errors.New("message handler destroyed")

// IsAbort reports whether err is, or wraps, an AbortError.
func IsAbort(err error) bool {
	var abort *AbortError
	return errors.As(err, &abort)
}

// IsDiscarded reports whether err is, or wraps, a
// DiscardedContextError.
func IsDiscarded(err error) bool {
	var discarded *DiscardedContextError
	return errors.As(err, &discarded)
}
