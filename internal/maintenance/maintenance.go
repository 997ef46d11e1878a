// Package maintenance decides whether alerts for a machine are suppressed
// by a declared maintenance window on the machine or its parent.
package maintenance

import (
	"context"
	"fmt"
	"time"
)

// ParentLookup resolves a machine's parent in the containment graph.
type ParentLookup interface {
	ParentOf(ctx context.Context, child string) (string, error)
}

// WindowStore answers whether any of a set of servers has an Ongoing
// window at the given instant.
type WindowStore interface {
	AnyOngoingFor(ctx context.Context, serverNames []string, now time.Time) (bool, error)
}

// Checker performs the two-tier machine → parent suppression check.
type Checker struct {
	parents ParentLookup
	windows WindowStore
}

// NewChecker builds a maintenance checker over the reference graph and the
// window store.
func NewChecker(parents ParentLookup, windows WindowStore) *Checker {
	return &Checker{parents: parents, windows: windows}
}

// Suppressed reports whether the machine or its parent currently has an
// Ongoing maintenance window. An empty machine name is never suppressed.
func (c *Checker) Suppressed(ctx context.Context, machine string, now time.Time) (bool, error) {
	if machine == "" {
		return false, nil
	}

	checkSet := []string{machine}
	parent, err := c.parents.ParentOf(ctx, machine)
	if err != nil {
		return false, fmt.Errorf("resolving parent of %s: %w", machine, err)
	}
	if parent != "" && parent != machine {
		checkSet = append(checkSet, parent)
	}

	ongoing, err := c.windows.AnyOngoingFor(ctx, checkSet, now)
	if err != nil {
		return false, fmt.Errorf("maintenance lookup for %s: %w", machine, err)
	}
	return ongoing, nil
}
