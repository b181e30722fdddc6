// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/dispatch/browsingcontext"
	"github.com/bureau-foundation/dispatch/frameactor"
)

// Scenario is the browsing-context universe a run starts with.
type Scenario struct {
	Browsers []ScenarioBrowser `yaml:"browsers"`
}

// ScenarioBrowser is one browser with its single tab.
type ScenarioBrowser struct {
	ID browsingcontext.BrowserID `yaml:"id"`

	// Initial marks the tab as still showing its initial document.
	Initial bool            `yaml:"initial"`
	URL     string          `yaml:"url"`
	Frames  []ScenarioFrame `yaml:"frames"`
}

// ScenarioFrame is a nested frame and its own nested frames.
type ScenarioFrame struct {
	URL    string          `yaml:"url"`
	Frames []ScenarioFrame `yaml:"frames"`
}

func readScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if len(scenario.Browsers) == 0 {
		return nil, fmt.Errorf("scenario %s: no browsers", path)
	}
	return &scenario, nil
}

// build creates every context in the scenario and attaches a live
// actor to each. Contexts are created depth-first, so their IDs follow
// the order they appear in the file.
func (s *Scenario) build(registry *browsingcontext.Registry, pool *frameactor.Pool, logger *slog.Logger) error {
	for _, browser := range s.Browsers {
		top, err := registry.CreateTopLevel(browser.ID)
		if err != nil {
			return err
		}
		surface, err := pool.Attach(top, browser.URL, browser.Initial)
		if err != nil {
			return err
		}
		logger.Info("tab opened",
			"browser_id", browser.ID,
			"context_id", top,
			"url", surface.URL,
		)
		if err := buildFrames(registry, pool, top, browser.Frames, logger); err != nil {
			return err
		}
	}
	return nil
}

func buildFrames(registry *browsingcontext.Registry, pool *frameactor.Pool, parent browsingcontext.ID, frames []ScenarioFrame, logger *slog.Logger) error {
	for _, frame := range frames {
		id, err := registry.CreateFrame(parent)
		if err != nil {
			return err
		}
		surface, err := pool.Attach(id, frame.URL, false)
		if err != nil {
			return err
		}
		logger.Info("frame loaded",
			"context_id", id,
			"parent_id", parent,
			"url", surface.URL,
		)
		if err := buildFrames(registry, pool, id, frame.Frames, logger); err != nil {
			return err
		}
	}
	return nil
}
