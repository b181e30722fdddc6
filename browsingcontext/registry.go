// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package browsingcontext

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/dispatch/lib/clock"
)

// record is the arena entry for one context. Only Registry methods
// touch it, always with Registry.mu held.
type record struct {
	id        ID
	browserID BrowserID
	parent    ID
	children  []ID
	current   *WindowGlobal
	replaced  bool
	discarded bool
	createdAt time.Time
}

// Registry owns every browsing context known to the host. Mutating
// methods are called by the host embedding (navigation, process swap,
// tab close); the dispatch transport only uses the query methods and
// Progress handles.
type Registry struct {
	clock  clock.Clock
	logger *slog.Logger

	mu       sync.Mutex
	nextID   ID
	contexts map[ID]*record

	// browsers lists browser IDs in the order their first top-level
	// context was created. Enumeration walks this list so results are
	// deterministic for a fixed universe.
	browsers []BrowserID

	// currentTop maps each open browser to its live top-level context.
	// A process swap repoints the entry; closing the tab deletes it.
	currentTop map[BrowserID]ID

	// changed is closed and replaced on every mutation. Waiters grab
	// the current channel under mu, release mu, then block on it.
	changed chan struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry(clk clock.Clock, logger *slog.Logger) *Registry {
	return &Registry{
		clock:      clk,
		logger:     logger,
		contexts:   make(map[ID]*record),
		currentTop: make(map[BrowserID]ID),
		changed:    make(chan struct{}),
	}
}

// notifyLocked wakes every goroutine waiting for a change. Must be
// called with mu held.
func (r *Registry) notifyLocked() {
	close(r.changed)
	r.changed = make(chan struct{})
}

func (r *Registry) allocateLocked(browserID BrowserID, parent ID) *record {
	r.nextID++
	entry := &record{
		id:        r.nextID,
		browserID: browserID,
		parent:    parent,
		createdAt: r.clock.Now(),
	}
	r.contexts[entry.id] = entry
	return entry
}

// lookupLocked returns the live record for id. Must be called with mu
// held.
func (r *Registry) lookupLocked(id ID) (*record, error) {
	entry, exists := r.contexts[id]
	if !exists {
		return nil, fmt.Errorf("context %d: %w", id, ErrUnknownContext)
	}
	if entry.discarded {
		return nil, fmt.Errorf("context %d: %w", id, ErrDiscarded)
	}
	return entry, nil
}

// CreateTopLevel opens a new tab for browserID and returns its
// top-level context. A browser can have only one live top-level
// context; use ReplaceTopLevel for process swaps.
func (r *Registry) CreateTopLevel(browserID BrowserID) (ID, error) {
	if browserID == 0 {
		return 0, fmt.Errorf("creating top-level context: browser ID must be non-zero")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, open := r.currentTop[browserID]; open {
		return 0, fmt.Errorf("creating top-level context: browser %d already has context %d", browserID, existing)
	}

	entry := r.allocateLocked(browserID, 0)
	if !r.knownBrowserLocked(browserID) {
		r.browsers = append(r.browsers, browserID)
	}
	r.currentTop[browserID] = entry.id
	r.notifyLocked()

	r.logger.Debug("top-level context created", "context_id", entry.id, "browser_id", browserID)
	return entry.id, nil
}

func (r *Registry) knownBrowserLocked(browserID BrowserID) bool {
	for _, known := range r.browsers {
		if known == browserID {
			return true
		}
	}
	return false
}

// CreateFrame creates a nested frame under parent.
func (r *Registry) CreateFrame(parent ID) (ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	parentEntry, err := r.lookupLocked(parent)
	if err != nil {
		return 0, fmt.Errorf("creating frame: %w", err)
	}
	if parentEntry.replaced {
		return 0, fmt.Errorf("creating frame under context %d: %w", parent, ErrReplaced)
	}

	entry := r.allocateLocked(parentEntry.browserID, parent)
	parentEntry.children = append(parentEntry.children, entry.id)
	r.notifyLocked()

	r.logger.Debug("frame created", "context_id", entry.id, "parent_id", parent)
	return entry.id, nil
}

// AttachWindowGlobal makes surface the current execution surface of
// id and wakes every Progress waiting on it.
func (r *Registry) AttachWindowGlobal(id ID, surface WindowGlobal) error {
	if surface.InnerWindowID == 0 {
		return fmt.Errorf("attaching surface to context %d: inner window ID must be non-zero", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.lookupLocked(id)
	if err != nil {
		return fmt.Errorf("attaching surface: %w", err)
	}
	if entry.replaced {
		return fmt.Errorf("attaching surface to context %d: %w", id, ErrReplaced)
	}

	attached := surface
	entry.current = &attached
	r.notifyLocked()

	r.logger.Debug("window global attached",
		"context_id", id,
		"inner_window_id", surface.InnerWindowID,
		"url", surface.URL,
	)
	return nil
}

// DetachWindowGlobal removes the current surface of id, as happens
// when a navigation starts. The context's nested frames belong to the
// old document and are discarded with it.
func (r *Registry) DetachWindowGlobal(id ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.lookupLocked(id)
	if err != nil {
		return fmt.Errorf("detaching surface: %w", err)
	}

	entry.current = nil
	r.discardChildrenLocked(entry)
	r.notifyLocked()

	r.logger.Debug("window global detached", "context_id", id)
	return nil
}

// ReplaceTopLevel performs a process swap: a new top-level context
// with the same BrowserID becomes current, and the old one is marked
// replaced and loses its surface and frames. Returns the new ID.
func (r *Registry) ReplaceTopLevel(id ID) (ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.lookupLocked(id)
	if err != nil {
		return 0, fmt.Errorf("replacing top-level context: %w", err)
	}
	if entry.parent != 0 {
		return 0, fmt.Errorf("replacing context %d: not a top-level context", id)
	}
	if entry.replaced {
		return 0, fmt.Errorf("replacing context %d: %w", id, ErrReplaced)
	}

	replacement := r.allocateLocked(entry.browserID, 0)
	entry.replaced = true
	entry.current = nil
	r.discardChildrenLocked(entry)
	r.currentTop[entry.browserID] = replacement.id
	r.notifyLocked()

	r.logger.Debug("top-level context replaced",
		"context_id", id,
		"replacement_id", replacement.id,
		"browser_id", entry.browserID,
	)
	return replacement.id, nil
}

// Discard permanently removes id and its subtree. Closing a tab is
// Discard on its current top-level context.
func (r *Registry) Discard(id ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.lookupLocked(id)
	if err != nil {
		return fmt.Errorf("discarding: %w", err)
	}

	if entry.parent != 0 {
		if parentEntry, exists := r.contexts[entry.parent]; exists {
			parentEntry.children = removeID(parentEntry.children, id)
		}
	} else if r.currentTop[entry.browserID] == id {
		delete(r.currentTop, entry.browserID)
	}
	r.discardSubtreeLocked(entry)
	r.notifyLocked()

	r.logger.Debug("context discarded", "context_id", id)
	return nil
}

func (r *Registry) discardChildrenLocked(entry *record) {
	for _, childID := range entry.children {
		if child, exists := r.contexts[childID]; exists {
			r.discardSubtreeLocked(child)
		}
	}
	entry.children = nil
}

func (r *Registry) discardSubtreeLocked(entry *record) {
	r.discardChildrenLocked(entry)
	entry.discarded = true
	entry.current = nil
}

func removeID(ids []ID, target ID) []ID {
	kept := ids[:0]
	for _, id := range ids {
		if id != target {
			kept = append(kept, id)
		}
	}
	return kept
}

// Context returns a snapshot of id. Discarded and replaced contexts
// are still returned (with the corresponding flag set) so callers can
// tell "gone" from "never existed".
func (r *Registry) Context(id ID) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.contexts[id]
	if !exists {
		return Info{}, false
	}
	return r.snapshotLocked(entry), true
}

func (r *Registry) snapshotLocked(entry *record) Info {
	info := Info{
		ID:        entry.id,
		BrowserID: entry.browserID,
		Parent:    entry.parent,
		Top:       entry.id,
		Replaced:  entry.replaced,
		Discarded: entry.discarded,
		CreatedAt: entry.createdAt,
	}
	for ancestor := entry; ancestor.parent != 0; {
		parentEntry, exists := r.contexts[ancestor.parent]
		if !exists {
			break
		}
		ancestor = parentEntry
		info.Top = ancestor.id
	}
	if entry.current != nil {
		surface := *entry.current
		info.CurrentWindowGlobal = &surface
	}
	return info
}

// TopLevelContexts returns the live top-level context of every open
// browser, in browser creation order. A non-zero browserID restricts
// the result to that browser.
func (r *Registry) TopLevelContexts(browserID BrowserID) []ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []ID
	for _, candidate := range r.browsers {
		if browserID != 0 && candidate != browserID {
			continue
		}
		if id, open := r.currentTop[candidate]; open {
			ids = append(ids, id)
		}
	}
	return ids
}

// Subtree flattens id and its live descendants in pre-order: the
// context first, then each child's subtree in creation order. Returns
// nil if id is unknown or discarded.
func (r *Registry) Subtree(id ID) []ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.lookupLocked(id)
	if err != nil {
		return nil
	}
	var ids []ID
	r.walkLocked(entry, &ids)
	return ids
}

func (r *Registry) walkLocked(entry *record, ids *[]ID) {
	*ids = append(*ids, entry.id)
	for _, childID := range entry.children {
		if child, exists := r.contexts[childID]; exists && !child.discarded {
			r.walkLocked(child, ids)
		}
	}
}

// CurrentTopLevel returns the live top-level context for browserID.
func (r *Registry) CurrentTopLevel(browserID BrowserID) (ID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, open := r.currentTop[browserID]
	return id, open
}

// Progress returns the tracking handle for id. It reports false when
// id is unknown or already discarded.
func (r *Registry) Progress(id ID) (*Progress, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.lookupLocked(id)
	if err != nil {
		return nil, false
	}
	if entry.parent == 0 {
		return &Progress{registry: r, browserID: entry.browserID, topLevel: true}, true
	}
	return &Progress{registry: r, frameID: id}, true
}
