//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package alloc

import "io"

// Scenario selects how Auto stacks the concrete backends.
type Scenario int

const (
	SCENARIO_BALANCED Scenario = iota // dedup over mremap, default tunables.
	SCENARIO_FASTEST                  // mremap alone, no dedup overhead.
	SCENARIO_CONSERVE_MEMORY          // dedup over mremap with small arenas.
)

func (s Scenario) String() string {
	switch s {
	case SCENARIO_BALANCED:
		return "balanced"
	case SCENARIO_FASTEST:
		return "fastest"
	case SCENARIO_CONSERVE_MEMORY:
		return "conserve-memory"
	}
	return "<unknown scenario>"
}

// Auto is a policy driven composer; it builds a stack of the concrete
// backends for the requested scenario and exposes the top through the
// normal interface.
type Auto struct {
	Allocator
	scenario Scenario
	under    []Allocator // owned sub-allocators, bottom up.
}

func NewAuto(cfg *Config) (*Auto, error) {
	a := &Auto{scenario: cfg.Scenario}
	switch cfg.Scenario {
	case SCENARIO_FASTEST:
		top, err := NewMremap(&Config{})
		if err != nil {
			return nil, err
		}
		a.Allocator = top

	case SCENARIO_CONSERVE_MEMORY:
		parent, err := NewMremap(&Config{
			MinimumArenaSize: 1 << 12,
			GrowRatio:        1.25,
		})
		if err != nil {
			return nil, err
		}
		top, err := NewDedup(&Config{Parent: parent, DedupThreshold: 1})
		if err != nil {
			parent.Destroy()
			return nil, err
		}
		a.under = append(a.under, parent)
		a.Allocator = top

	default: // SCENARIO_BALANCED
		parent, err := NewMremap(&Config{})
		if err != nil {
			return nil, err
		}
		top, err := NewDedup(&Config{Parent: parent})
		if err != nil {
			parent.Destroy()
			return nil, err
		}
		a.under = append(a.under, parent)
		a.Allocator = top
	}
	return a, nil
}

func (a *Auto) Name() string { return "auto" }

func (a *Auto) Scenario() Scenario { return a.scenario }

func (a *Auto) Dump(w io.Writer) { a.Allocator.Dump(w) }

func (a *Auto) Destroy() {
	a.Allocator.Destroy()
	for _, u := range a.under {
		u.Destroy()
	}
}
