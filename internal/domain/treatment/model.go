package treatment

import (
	"time"
)

// RoomStatus is the occupancy state of a treatment bay.
type RoomStatus string

const (
	RoomAvailable  RoomStatus = "available"
	RoomInUse      RoomStatus = "in_use"
	RoomNeedsClean RoomStatus = "needs_clean"
	RoomCleaning   RoomStatus = "cleaning"
)

// Valid reports whether s is one of the known room states.
func (s RoomStatus) Valid() bool {
	switch s {
	case RoomAvailable, RoomInUse, RoomNeedsClean, RoomCleaning:
		return true
	}
	return false
}

// ItemStatus is the timer state of a single treatment within a session.
type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemRunning   ItemStatus = "running"
	ItemPaused    ItemStatus = "paused"
	ItemCompleted ItemStatus = "completed"
)

// Valid reports whether s is one of the known item states.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemPending, ItemRunning, ItemPaused, ItemCompleted:
		return true
	}
	return false
}

// Occupancy describes who is in a room. A room either carries the whole
// block or none of it.
type Occupancy struct {
	SessionID   string    `json:"session_id"`
	PatientID   int64     `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	ChartNumber string    `json:"chart_number,omitempty"`
	DoctorName  string    `json:"doctor_name,omitempty"`
	InTime      time.Time `json:"in_time"`
}

// SessionItem is one planned or in-progress treatment inside a session.
//
// StartTime is set only while Status is ItemRunning. ElapsedSeconds holds the
// time consumed before the current running interval began.
type SessionItem struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          ItemStatus `json:"status"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	ElapsedSeconds  int        `json:"elapsed_seconds"`
	Memo            string     `json:"memo,omitempty"`
}

// Room maps to the treatment_rooms table plus the session_treatments rows of
// its current session.
type Room struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	Status    RoomStatus    `json:"status"`
	Occupancy *Occupancy    `json:"occupancy,omitempty"`
	Items     []SessionItem `json:"items"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// RoomSnapshot is a room as read back from the persistence gateway.
type RoomSnapshot = Room

// Clone returns a deep copy so callers can never alias board state.
func (r Room) Clone() Room {
	out := r
	if r.Occupancy != nil {
		occ := *r.Occupancy
		out.Occupancy = &occ
	}
	out.Items = cloneItems(r.Items)
	return out
}

func cloneItems(items []SessionItem) []SessionItem {
	out := make([]SessionItem, len(items))
	for i, it := range items {
		out[i] = it.clone()
	}
	return out
}

func (it SessionItem) clone() SessionItem {
	if it.StartTime != nil {
		st := *it.StartTime
		it.StartTime = &st
	}
	return it
}

// TreatmentTemplate is a named treatment with a planned duration, used to
// seed or extend a session.
type TreatmentTemplate struct {
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	Memo            string `json:"memo,omitempty"`
}

// ChangeKind is the kind of write reported by the change channel.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "INSERT"
	ChangeUpdate ChangeKind = "UPDATE"
	ChangeDelete ChangeKind = "DELETE"
)

// RoomPatch is a partial room update. Nil fields are left untouched.
// ClearOccupancy and Occupancy are mutually exclusive.
type RoomPatch struct {
	Name           *string
	Status         *RoomStatus
	Occupancy      *Occupancy
	ClearOccupancy bool
	Items          []SessionItem
	SetItems       bool
	// SessionID, when set, applies the patch only while the room still holds
	// that session.
	SessionID string
}

// ItemView is a session item with its derived countdown.
type ItemView struct {
	SessionItem
	RemainingSeconds int     `json:"remaining_seconds"`
	Progress         float64 `json:"progress"`
	Overtime         bool    `json:"overtime"`
}

// RoomView is the display tuple for one room.
type RoomView struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Status    RoomStatus `json:"status"`
	Occupancy *Occupancy `json:"occupancy,omitempty"`
	Items     []ItemView `json:"items"`
}
