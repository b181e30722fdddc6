// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messagehandler

import (
	"github.com/bureau-foundation/dispatch/browsingcontext"
)

// Resolver expands a ContextDescriptor into the concrete contexts it
// matches at the time of the call.
type Resolver struct {
	host Host
}

// NewResolver creates a resolver over host.
func NewResolver(host Host) *Resolver {
	return &Resolver{host: host}
}

// Resolve returns the matching contexts: each matching tab's top-level
// context followed by its frames, tabs in host enumeration order. The
// result is a snapshot; contexts created afterwards are not included.
func (r *Resolver) Resolve(descriptor ContextDescriptor) ([]browsingcontext.ID, error) {
	var browserID browsingcontext.BrowserID
	switch descriptor.Type {
	case DescriptorAll:
	case DescriptorTopBrowsingContext:
		browserID = descriptor.ID
		if browserID == 0 {
			// A zero browser ID would otherwise widen the query to
			// every browser.
			return []browsingcontext.ID{}, nil
		}
	default:
		return nil, &UnsupportedDescriptorError{Type: descriptor.Type}
	}

	contexts := []browsingcontext.ID{}
	for _, top := range r.host.TopLevelContexts(browserID) {
		contexts = append(contexts, r.host.Subtree(top)...)
	}
	return contexts, nil
}
