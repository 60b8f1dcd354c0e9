package treatment

import (
	"context"

	"github.com/clinicdesk/frontdesk/internal/platform/notification"
)

// Gateway is the durable store of rooms and session items shared by every
// terminal.
type Gateway interface {
	FetchRooms(ctx context.Context) ([]RoomSnapshot, error)
	UpdateRoom(ctx context.Context, roomID int64, patch RoomPatch) error
	// ClearRoomSession deletes the items of the room's current session and
	// resets its occupancy in one step.
	ClearRoomSession(ctx context.Context, roomID int64) error
	// SubscribeRoomChanges calls fn for every committed change until ctx is
	// done or the returned func is called.
	SubscribeRoomChanges(ctx context.Context, fn func(kind ChangeKind, roomIDs []int64)) (unsubscribe func(), err error)
}

// Store is the Postgres-backed gateway plus room administration.
type Store interface {
	Gateway
	RoomAdmin
}

// RoomAdmin manages the set of rooms itself.
type RoomAdmin interface {
	CreateRoom(ctx context.Context, name string) (*Room, error)
	RenameRoom(ctx context.Context, roomID int64, name string) error
	// DeleteRoom removes a room only while it is available.
	DeleteRoom(ctx context.Context, roomID int64) error
}

// PatientRef is the part of a patient record a room needs.
type PatientRef struct {
	ID          int64
	Name        string
	ChartNumber string
}

// PatientDirectory supplies patient identity and default treatments.
type PatientDirectory interface {
	Lookup(ctx context.Context, patientID int64) (PatientRef, error)
	DefaultTreatments(ctx context.Context, patientID int64) ([]TreatmentTemplate, error)
}

// BasicTreatmentSource supplies the clinic-wide list used when a patient has
// no defaults.
type BasicTreatmentSource interface {
	BasicTreatments(ctx context.Context) ([]TreatmentTemplate, error)
}

// Billing receives patients whose session finished.
type Billing interface {
	Handoff(ctx context.Context, patientID int64) error
}

// WaitingList receives patients sent back from a room and loses patients
// assigned to one. Removing a patient who is not waiting is not an error.
type WaitingList interface {
	Add(ctx context.Context, patientID int64) error
	Remove(ctx context.Context, patientID int64) error
}

// Notifier reports failures to the operator.
type Notifier interface {
	Notify(n notification.Notice) notification.Notice
}

// Publisher pushes the derived room display to live viewers.
type Publisher interface {
	PublishRooms(views []RoomView)
}
