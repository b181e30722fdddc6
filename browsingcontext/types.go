// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package browsingcontext

import (
	"errors"
	"strconv"
	"time"
)

// ID identifies a browsing context. IDs are allocated from 1; the
// zero value means "no context".
type ID uint64

// String returns the decimal form of the ID.
func (id ID) String() string { return strconv.FormatUint(uint64(id), 10) }

// BrowserID groups a top-level context with the contexts that replace
// it across process swaps. Zero means "any browser" in queries.
type BrowserID uint64

// String returns the decimal form of the browser ID.
func (id BrowserID) String() string { return strconv.FormatUint(uint64(id), 10) }

// WindowGlobal is the execution surface currently backing a context.
type WindowGlobal struct {
	// InnerWindowID identifies this surface. A navigation produces a
	// new WindowGlobal with a new InnerWindowID for the same context.
	InnerWindowID uint64 `json:"innerWindowId"`

	// URL is the document loaded in the surface.
	URL string `json:"url"`

	// IsInitialDocument is true while the context still shows the
	// document it was created with (typically about:blank).
	IsInitialDocument bool `json:"isInitialDocument"`

	// Endpoint is the Unix socket path of the frame actor serving
	// commands for this surface.
	Endpoint string `json:"endpoint"`
}

// Info is a point-in-time snapshot of a context. It is a copy; later
// changes to the registry are not reflected in it.
type Info struct {
	ID        ID
	BrowserID BrowserID

	// Parent is zero for top-level contexts.
	Parent ID

	// Top is the top-level ancestor (the context itself when Parent
	// is zero).
	Top ID

	// Replaced is set on a top-level context that a process swap has
	// superseded with a newer context sharing its BrowserID.
	Replaced bool

	// Discarded is set once the context is permanently gone.
	Discarded bool

	// CurrentWindowGlobal is nil while no surface is attached.
	CurrentWindowGlobal *WindowGlobal

	CreatedAt time.Time
}

// IsTopLevel reports whether the context has no parent.
func (info Info) IsTopLevel() bool { return info.Parent == 0 }

var (
	// ErrDiscarded is returned when an operation targets a context
	// that has been discarded, and by Progress waits whose context is
	// discarded while they wait.
	ErrDiscarded = errors.New("browsing context discarded")

	// ErrUnknownContext is returned when an ID was never allocated by
	// this registry.
	ErrUnknownContext = errors.New("unknown browsing context")

	// ErrReplaced is returned when a surface is attached to a
	// top-level context that a process swap has superseded.
	ErrReplaced = errors.New("browsing context replaced")
)
