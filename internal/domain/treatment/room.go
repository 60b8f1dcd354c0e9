package treatment

import (
	"time"
)

var transitions = map[RoomStatus][]RoomStatus{
	RoomAvailable:  {RoomInUse},
	RoomInUse:      {RoomNeedsClean, RoomAvailable},
	RoomNeedsClean: {RoomCleaning},
	RoomCleaning:   {RoomAvailable},
}

// CanTransition reports whether a room may move from one status to another.
func CanTransition(from, to RoomStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func transition(r *Room, to RoomStatus) error {
	if !CanTransition(r.Status, to) {
		return invalidf("room %d cannot go from %s to %s", r.ID, r.Status, to)
	}
	r.Status = to
	return nil
}

// IDFunc generates session and item identifiers.
type IDFunc func() string

// AssignPatient occupies an available room and seeds its session with one
// pending item per template.
func AssignPatient(r *Room, occ Occupancy, templates []TreatmentTemplate, newID IDFunc) error {
	if err := transition(r, RoomInUse); err != nil {
		return err
	}
	occ.SessionID = newID()
	r.Occupancy = &occ
	r.Items = make([]SessionItem, 0, len(templates))
	for _, t := range templates {
		r.Items = append(r.Items, newItem(t, newID))
	}
	return nil
}

// FinishSession moves an in-use room to needs_clean and returns the patient
// to hand to billing. Occupancy stays until the room is cleaned so the stored
// session can still be found.
func FinishSession(r *Room) (int64, error) {
	if r.Status == RoomInUse && r.Occupancy == nil {
		return 0, invalidf("room %d has no patient", r.ID)
	}
	if err := transition(r, RoomNeedsClean); err != nil {
		return 0, err
	}
	return r.Occupancy.PatientID, nil
}

// ReturnToWaiting sends the patient of an in-use room back to the waiting
// list without a cleaning step and tears the session down.
func ReturnToWaiting(r *Room) (int64, error) {
	if r.Status == RoomInUse && r.Occupancy == nil {
		return 0, invalidf("room %d has no patient", r.ID)
	}
	if err := requireInUse(r); err != nil {
		return 0, err
	}
	patientID := r.Occupancy.PatientID
	if err := transition(r, RoomAvailable); err != nil {
		return 0, err
	}
	teardown(r)
	return patientID, nil
}

// StartCleaning moves a needs_clean room to cleaning.
func StartCleaning(r *Room) error {
	return transition(r, RoomCleaning)
}

// FinishCleaning makes a cleaning room available and tears down whatever is
// left of the finished session.
func FinishCleaning(r *Room) error {
	if r.Status != RoomCleaning {
		return invalidf("room %d is %s, not cleaning", r.ID, r.Status)
	}
	if err := transition(r, RoomAvailable); err != nil {
		return err
	}
	teardown(r)
	return nil
}

// AddTreatment appends a pending item to an in-use room.
func AddTreatment(r *Room, t TreatmentTemplate, newID IDFunc) (SessionItem, error) {
	if err := requireInUse(r); err != nil {
		return SessionItem{}, err
	}
	if t.Name == "" {
		return SessionItem{}, invalidf("treatment name is required")
	}
	for _, it := range r.Items {
		if it.Name == t.Name {
			return SessionItem{}, invalidf("room %d already has %q", r.ID, t.Name)
		}
	}
	it := newItem(t, newID)
	r.Items = append(r.Items, it)
	return it.clone(), nil
}

// ItemAction is a timer action applied to a single item.
type ItemAction func(it *SessionItem, now time.Time) error

// ApplyItem runs action on the item id of an in-use room.
func ApplyItem(r *Room, id string, now time.Time, action ItemAction) error {
	if err := requireInUse(r); err != nil {
		return err
	}
	i := indexOf(r.Items, id)
	if i < 0 {
		return notFoundf("item %q in room %d", id, r.ID)
	}
	it := r.Items[i].clone()
	if err := action(&it, now); err != nil {
		return err
	}
	r.Items[i] = it
	return nil
}

// ReorderItems reorders the items of an in-use room.
func ReorderItems(r *Room, movedID, targetID string) error {
	if err := requireInUse(r); err != nil {
		return err
	}
	r.Items = Reorder(r.Items, movedID, targetID)
	return nil
}

// DeleteRoomItem removes a pending item from an in-use room.
func DeleteRoomItem(r *Room, id string) error {
	if err := requireInUse(r); err != nil {
		return err
	}
	items, err := DeleteItem(r.Items, id)
	if err != nil {
		return err
	}
	r.Items = items
	return nil
}

func requireInUse(r *Room) error {
	if r.Status != RoomInUse {
		return invalidf("room %d is %s", r.ID, r.Status)
	}
	return nil
}

func teardown(r *Room) {
	r.Occupancy = nil
	r.Items = []SessionItem{}
}

func newItem(t TreatmentTemplate, newID IDFunc) SessionItem {
	d := t.DurationMinutes
	if d < MinDurationMinutes {
		d = MinDurationMinutes
	}
	return SessionItem{
		ID:              newID(),
		Name:            t.Name,
		DurationMinutes: d,
		Status:          ItemPending,
		Memo:            t.Memo,
	}
}
