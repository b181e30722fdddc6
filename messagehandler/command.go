// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messagehandler

import (
	"github.com/bureau-foundation/dispatch/browsingcontext"
)

// DestinationType selects which side of the message handler tree
// executes a command.
type DestinationType string

const (
	// DestinationRoot commands run in the root message handler.
	DestinationRoot DestinationType = "root"

	// DestinationWindowGlobal commands run in the frame actor of one
	// or more browsing contexts.
	DestinationWindowGlobal DestinationType = "window-global"
)

// DescriptorType tags a ContextDescriptor.
type DescriptorType string

const (
	// DescriptorAll matches every live context.
	DescriptorAll DescriptorType = "all"

	// DescriptorTopBrowsingContext matches every context in the tab
	// whose BrowserID equals the descriptor's ID.
	DescriptorTopBrowsingContext DescriptorType = "top-browsing-context"
)

// ContextDescriptor is a pattern over the live contexts, used for
// broadcast destinations.
type ContextDescriptor struct {
	Type DescriptorType `json:"type"`

	// ID is the browser ID for DescriptorTopBrowsingContext. Unused
	// for DescriptorAll.
	ID browsingcontext.BrowserID `json:"id,omitempty"`
}

// Destination addresses a command. For window-global destinations
// exactly one of ID and ContextDescriptor is set.
type Destination struct {
	Type DestinationType `json:"type"`

	// ID targets a single context. Zero means unset.
	ID browsingcontext.ID `json:"id,omitempty"`

	// ContextDescriptor targets every context it matches.
	ContextDescriptor *ContextDescriptor `json:"contextDescriptor,omitempty"`
}

// IsBroadcast reports whether the destination names a descriptor.
func (d Destination) IsBroadcast() bool { return d.ContextDescriptor != nil }

// validateWindowGlobal checks the one-of constraint on ID and
// ContextDescriptor.
func (d Destination) validateWindowGlobal() error {
	if d.Type == DestinationRoot {
		return &InvalidDestinationError{Reason: "root destinations are handled by the root message handler, not the transport"}
	}
	hasID := d.ID != 0
	hasDescriptor := d.ContextDescriptor != nil
	switch {
	case hasID && hasDescriptor:
		return &InvalidDestinationError{Reason: "id and contextDescriptor are mutually exclusive"}
	case !hasID && !hasDescriptor:
		return &InvalidDestinationError{Reason: "one of id or contextDescriptor is required"}
	}
	return nil
}

// Command is a request to run CommandName in ModuleName at
// Destination. Params is opaque to the transport and travels to the
// frame actor unchanged.
//
// The type carries json tags only; the CBOR codec uses the same field
// names on the actor socket.
type Command struct {
	ModuleName  string         `json:"moduleName"`
	CommandName string         `json:"commandName"`
	Params      map[string]any `json:"params,omitempty"`
	Destination Destination    `json:"destination"`

	// RetryOnAbort overrides the retry policy when set. See
	// CommandSender for the default.
	RetryOnAbort *bool `json:"retryOnAbort,omitempty"`
}

// Name returns "module.command".
func (c *Command) Name() string {
	return c.ModuleName + "." + c.CommandName
}
