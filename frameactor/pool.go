// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package frameactor

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/bureau-foundation/dispatch/browsingcontext"
	"github.com/bureau-foundation/dispatch/messagehandler"
)

// Pool keeps one running actor per context that has a surface. It is
// the only writer of surfaces in a registry it manages: attaching,
// navigating, swapping and discarding go through the pool so that
// every attached surface has a live socket behind it.
type Pool struct {
	registry  *browsingcontext.Registry
	socketDir string
	modules   *messagehandler.Modules
	logger    *slog.Logger

	mu            sync.Mutex
	innerWindowID uint64
	actors        map[browsingcontext.ID]*Actor
	closed        bool
}

// NewPool creates a pool whose actors listen in socketDir and run
// commands from modules.
func NewPool(registry *browsingcontext.Registry, socketDir string, modules *messagehandler.Modules, logger *slog.Logger) *Pool {
	return &Pool{
		registry:  registry,
		socketDir: socketDir,
		modules:   modules,
		logger:    logger,
		actors:    make(map[browsingcontext.ID]*Actor),
	}
}

// errPoolClosed is returned by every mutating call after Close.
var errPoolClosed = errors.New("actor pool closed")

// Attach starts an actor for a new document at url and attaches its
// surface to contextID. initial marks the initial about:blank
// document, on which commands retry by default.
func (p *Pool) Attach(contextID browsingcontext.ID, url string, initial bool) (browsingcontext.WindowGlobal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return browsingcontext.WindowGlobal{}, errPoolClosed
	}
	if _, running := p.actors[contextID]; running {
		return browsingcontext.WindowGlobal{}, fmt.Errorf("attaching to context %d: a surface is already attached", contextID)
	}
	return p.attachLocked(contextID, url, initial)
}

func (p *Pool) attachLocked(contextID browsingcontext.ID, url string, initial bool) (browsingcontext.WindowGlobal, error) {
	p.innerWindowID++
	surface := browsingcontext.WindowGlobal{
		InnerWindowID:     p.innerWindowID,
		URL:               url,
		IsInitialDocument: initial,
		Endpoint:          filepath.Join(p.socketDir, fmt.Sprintf("window-%d.sock", p.innerWindowID)),
	}

	actor := NewActor(contextID, surface, p.modules, p.logger)
	if err := actor.Start(); err != nil {
		return browsingcontext.WindowGlobal{}, err
	}
	if err := p.registry.AttachWindowGlobal(contextID, surface); err != nil {
		actor.Close()
		return browsingcontext.WindowGlobal{}, err
	}
	p.actors[contextID] = actor
	return surface, nil
}

// Navigate replaces the document of contextID with a new one at url.
// The old surface is detached before its actor stops, so commands
// in flight against it abort and find the context waiting for the new
// surface when they retry. Frames of the old document are discarded
// along with their actors.
func (p *Pool) Navigate(contextID browsingcontext.ID, url string) (browsingcontext.WindowGlobal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return browsingcontext.WindowGlobal{}, errPoolClosed
	}
	if err := p.registry.DetachWindowGlobal(contextID); err != nil {
		return browsingcontext.WindowGlobal{}, fmt.Errorf("navigating: %w", err)
	}
	p.stopLocked(contextID)
	p.reapLocked()

	p.logger.Info("navigating", "context_id", contextID, "url", url)
	return p.attachLocked(contextID, url, false)
}

// SwapProcess moves the tab owning top-level context contextID to a
// new context, as a cross-process navigation does, and loads url in
// it. It returns the replacement context and its surface.
func (p *Pool) SwapProcess(contextID browsingcontext.ID, url string) (browsingcontext.ID, browsingcontext.WindowGlobal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, browsingcontext.WindowGlobal{}, errPoolClosed
	}
	replacement, err := p.registry.ReplaceTopLevel(contextID)
	if err != nil {
		return 0, browsingcontext.WindowGlobal{}, fmt.Errorf("swapping process: %w", err)
	}
	p.stopLocked(contextID)
	p.reapLocked()

	p.logger.Info("process swapped",
		"context_id", contextID,
		"replacement_id", replacement,
		"url", url,
	)
	surface, err := p.attachLocked(replacement, url, false)
	if err != nil {
		return replacement, browsingcontext.WindowGlobal{}, err
	}
	return replacement, surface, nil
}

// Discard removes contextID and its subtree from the registry and
// stops their actors.
func (p *Pool) Discard(contextID browsingcontext.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errPoolClosed
	}
	if err := p.registry.Discard(contextID); err != nil {
		return err
	}
	p.reapLocked()
	return nil
}

// Actor returns the running actor for contextID.
func (p *Pool) Actor(contextID browsingcontext.ID) (*Actor, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	actor, running := p.actors[contextID]
	return actor, running
}

// Close stops every actor. Surfaces stay attached in the registry;
// calls to them abort from then on.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for contextID := range p.actors {
		p.stopLocked(contextID)
	}
}

func (p *Pool) stopLocked(contextID browsingcontext.ID) {
	actor, running := p.actors[contextID]
	if !running {
		return
	}
	delete(p.actors, contextID)
	actor.Close()
}

// reapLocked stops actors whose context no longer carries the surface
// they serve: discarded frames, replaced top-levels and the like.
func (p *Pool) reapLocked() {
	for contextID, actor := range p.actors {
		info, exists := p.registry.Context(contextID)
		if exists && info.CurrentWindowGlobal != nil &&
			info.CurrentWindowGlobal.InnerWindowID == actor.Surface().InnerWindowID {
			continue
		}
		p.stopLocked(contextID)
	}
}
