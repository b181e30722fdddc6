// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package browsingcontext

import (
	"context"
	"fmt"
)

// Progress tracks the execution surface of a context across
// navigations. Obtain one with [Registry.Progress] and keep it for the
// lifetime of an operation: the handle re-queries the registry on
// every call, so it never returns a surface that has been detached.
type Progress struct {
	registry *Registry

	// topLevel handles follow the browser's current top-level context
	// through process swaps.
	topLevel  bool
	browserID BrowserID

	frameID ID
}

// ContextID returns the context the handle currently resolves to. For
// top-level handles this changes after a process swap.
func (p *Progress) ContextID() (ID, error) {
	p.registry.mu.Lock()
	defer p.registry.mu.Unlock()

	entry, err := p.resolveLocked()
	if err != nil {
		return 0, err
	}
	return entry.id, nil
}

// CurrentWindowGlobal returns the surface attached right now, or nil
// if none is attached. Returns ErrDiscarded once the tracked context
// is gone.
func (p *Progress) CurrentWindowGlobal() (*WindowGlobal, error) {
	p.registry.mu.Lock()
	defer p.registry.mu.Unlock()

	entry, err := p.resolveLocked()
	if err != nil {
		return nil, err
	}
	if entry.current == nil {
		return nil, nil
	}
	surface := *entry.current
	return &surface, nil
}

// WaitForWindowGlobal returns the current surface, blocking until one
// is attached if necessary. It fails with ErrDiscarded when the
// tracked context is discarded while waiting, and with ctx.Err() when
// ctx ends first.
func (p *Progress) WaitForWindowGlobal(ctx context.Context) (WindowGlobal, error) {
	for {
		p.registry.mu.Lock()
		entry, err := p.resolveLocked()
		if err != nil {
			p.registry.mu.Unlock()
			return WindowGlobal{}, err
		}
		if entry.current != nil {
			surface := *entry.current
			p.registry.mu.Unlock()
			return surface, nil
		}
		changed := p.registry.changed
		p.registry.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return WindowGlobal{}, ctx.Err()
		}
	}
}

// resolveLocked maps the handle to its current record. Must be called
// with registry.mu held.
func (p *Progress) resolveLocked() (*record, error) {
	if p.topLevel {
		id, open := p.registry.currentTop[p.browserID]
		if !open {
			return nil, fmt.Errorf("browser %d: %w", p.browserID, ErrDiscarded)
		}
		return p.registry.lookupLocked(id)
	}
	return p.registry.lookupLocked(p.frameID)
}
