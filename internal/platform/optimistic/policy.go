// Package optimistic names what happens to a locally applied change when its
// write to the store fails.
package optimistic

import (
	"context"
	"fmt"
)

// Policy is the failure policy of one operation kind.
type Policy int

const (
	// RetainLocal keeps the local change and only reports the failure. Local
	// and stored state may drift until the next successful write or snapshot.
	RetainLocal Policy = iota
	// Rollback undoes the local change and returns the failure to the caller.
	Rollback
)

func (p Policy) String() string {
	switch p {
	case RetainLocal:
		return "retain_local"
	case Rollback:
		return "rollback"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Table maps operation names to policies. Unknown operations fall back to
// RetainLocal.
type Table map[string]Policy

// For returns the policy for op.
func (t Table) For(op string) Policy {
	if p, ok := t[op]; ok {
		return p
	}
	return RetainLocal
}

// Do applies a local change, then persists it. apply returns an undo func
// used only under Rollback. The persist error is always returned so the
// caller can report it.
func Do(ctx context.Context, p Policy, apply func() (undo func()), persist func(context.Context) error) error {
	undo := apply()
	err := persist(ctx)
	if err == nil {
		return nil
	}
	if p == Rollback && undo != nil {
		undo()
	}
	return err
}
