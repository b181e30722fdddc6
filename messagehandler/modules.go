// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messagehandler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bureau-foundation/dispatch/browsingcontext"
)

// Request is what a module command handler receives.
type Request struct {
	SessionID string
	Command   *Command

	// ContextID and Surface identify where the command runs. Both are
	// zero for commands handled at the root.
	ContextID browsingcontext.ID
	Surface   *browsingcontext.WindowGlobal
}

// CommandFunc implements one module command. The returned value is
// CBOR-encoded into the reply; nil produces an empty reply.
type CommandFunc func(ctx context.Context, request Request) (any, error)

// Modules maps "module.command" names to handlers. The root message
// handler and every frame actor each own one.
type Modules struct {
	mu       sync.RWMutex
	handlers map[string]CommandFunc
}

// NewModules creates an empty table.
func NewModules() *Modules {
	return &Modules{handlers: make(map[string]CommandFunc)}
}

// Register adds a handler. Panics if the command is already
// registered.
func (m *Modules) Register(moduleName, commandName string, handler CommandFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := moduleName + "." + commandName
	if _, exists := m.handlers[key]; exists {
		panic(fmt.Sprintf("messagehandler.Modules: duplicate handler for %q", key))
	}
	m.handlers[key] = handler
}

// Supports reports whether a handler is registered for the command.
func (m *Modules) Supports(moduleName, commandName string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.handlers[moduleName+"."+commandName]
	return exists
}

// Names returns the registered "module.command" names, sorted.
func (m *Modules) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.handlers))
	for name := range m.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the handler for request.Command, or returns an
// *UnknownCommandError.
func (m *Modules) Dispatch(ctx context.Context, request Request) (any, error) {
	m.mu.RLock()
	handler, exists := m.handlers[request.Command.Name()]
	m.mu.RUnlock()
	if !exists {
		return nil, &UnknownCommandError{
			ModuleName:  request.Command.ModuleName,
			CommandName: request.Command.CommandName,
		}
	}
	return handler(ctx, request)
}
