package treatment

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks an action that is illegal in the current state.
	ErrValidation = errors.New("invalid action")
	// ErrNotFound marks an action on a room, item or patient that no longer exists.
	ErrNotFound = errors.New("not found")
	// ErrStaleSession marks a write aimed at a session that has since ended.
	ErrStaleSession = errors.New("session ended")
)

// ActionError wraps a rejected or failed board action with where it happened.
type ActionError struct {
	Op     string
	RoomID int64
	ItemID string
	Err    error
}

func (e *ActionError) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("%s room %d item %s: %v", e.Op, e.RoomID, e.ItemID, e.Err)
	}
	return fmt.Sprintf("%s room %d: %v", e.Op, e.RoomID, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}
