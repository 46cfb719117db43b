// Package binding applies visual states to rendering targets.
package binding

import (
	"github.com/ivlev/scrollviz/internal/visual"
)

// Target is one rendered element that accepts attribute updates.
type Target interface {
	ID() string
	SetAttr(name string, v visual.Value)
}

// Apply writes every attribute of state onto the matching targets.
// Elements without a target are skipped, and an empty target list is a
// no-op so a chart that is not ready yet is harmless.
func Apply(state visual.State, targets []Target) int {
	applied := 0
	for _, t := range targets {
		params, ok := state.Elements[t.ID()]
		if !ok {
			continue
		}
		for name, v := range params {
			t.SetAttr(name, v)
		}
		applied++
	}
	return applied
}
