package treatment

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func counterIDs() IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func inUseRoom() Room {
	return Room{
		ID:     1,
		Name:   "Bed 1",
		Status: RoomInUse,
		Occupancy: &Occupancy{
			SessionID:   "sess-1",
			PatientID:   42,
			PatientName: "Kim",
			InTime:      t0,
		},
		Items: seq("a", "b"),
	}
}

func TestCanTransition(t *testing.T) {
	legal := map[[2]RoomStatus]bool{
		{RoomAvailable, RoomInUse}:     true,
		{RoomInUse, RoomNeedsClean}:    true,
		{RoomInUse, RoomAvailable}:     true,
		{RoomNeedsClean, RoomCleaning}: true,
		{RoomCleaning, RoomAvailable}:  true,
	}
	all := []RoomStatus{RoomAvailable, RoomInUse, RoomNeedsClean, RoomCleaning}
	for _, from := range all {
		for _, to := range all {
			want := legal[[2]RoomStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("%s -> %s: expected %v, got %v", from, to, want, got)
			}
		}
	}
}

func TestAssignPatient(t *testing.T) {
	r := Room{ID: 1, Status: RoomAvailable, Items: []SessionItem{}}
	templates := []TreatmentTemplate{
		{Name: "Hot pack", DurationMinutes: 10},
		{Name: "TENS", DurationMinutes: 15, Memo: "low"},
	}
	err := AssignPatient(&r, Occupancy{PatientID: 42, PatientName: "Kim", InTime: t0}, templates, counterIDs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Status != RoomInUse {
		t.Errorf("expected in_use, got %s", r.Status)
	}
	if r.Occupancy == nil || r.Occupancy.SessionID != "id-1" || r.Occupancy.PatientID != 42 {
		t.Fatalf("unexpected occupancy: %+v", r.Occupancy)
	}
	if len(r.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(r.Items))
	}
	for i, it := range r.Items {
		if it.Status != ItemPending || it.ElapsedSeconds != 0 || it.StartTime != nil {
			t.Errorf("item %d not pending: %+v", i, it)
		}
	}
	if r.Items[1].ID != "id-3" || r.Items[1].Memo != "low" {
		t.Errorf("unexpected second item: %+v", r.Items[1])
	}
}

func TestRejectedTransitionsLeaveRoomUnchanged(t *testing.T) {
	cases := []struct {
		name   string
		status RoomStatus
		action func(r *Room) error
	}{
		{"assign in use", RoomInUse, func(r *Room) error {
			return AssignPatient(r, Occupancy{PatientID: 1}, nil, counterIDs())
		}},
		{"assign needs clean", RoomNeedsClean, func(r *Room) error {
			return AssignPatient(r, Occupancy{PatientID: 1}, nil, counterIDs())
		}},
		{"finish available", RoomAvailable, func(r *Room) error { _, err := FinishSession(r); return err }},
		{"finish cleaning", RoomCleaning, func(r *Room) error { _, err := FinishSession(r); return err }},
		{"return from needs clean", RoomNeedsClean, func(r *Room) error { _, err := ReturnToWaiting(r); return err }},
		{"return available", RoomAvailable, func(r *Room) error { _, err := ReturnToWaiting(r); return err }},
		{"return from cleaning", RoomCleaning, func(r *Room) error { _, err := ReturnToWaiting(r); return err }},
		{"start cleaning in use", RoomInUse, StartCleaning},
		{"start cleaning cleaning", RoomCleaning, StartCleaning},
		{"finish cleaning needs clean", RoomNeedsClean, FinishCleaning},
		{"finish cleaning in use", RoomInUse, FinishCleaning},
		{"add to needs clean", RoomNeedsClean, func(r *Room) error {
			_, err := AddTreatment(r, TreatmentTemplate{Name: "x", DurationMinutes: 1}, counterIDs())
			return err
		}},
		{"start item in cleaning", RoomCleaning, func(r *Room) error { return ApplyItem(r, "a", t0, Start) }},
		{"reorder available", RoomAvailable, func(r *Room) error { return ReorderItems(r, "a", "b") }},
		{"delete in needs clean", RoomNeedsClean, func(r *Room) error { return DeleteRoomItem(r, "a") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := inUseRoom()
			r.Status = tc.status
			before := r.Clone()
			if err := tc.action(&r); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !reflect.DeepEqual(before, r) {
				t.Errorf("room changed:\n%+v\n%+v", before, r)
			}
		})
	}
}

func TestFinishSessionKeepsOccupancy(t *testing.T) {
	r := inUseRoom()
	patientID, err := FinishSession(&r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patientID != 42 {
		t.Errorf("expected patient 42, got %d", patientID)
	}
	if r.Status != RoomNeedsClean {
		t.Errorf("expected needs_clean, got %s", r.Status)
	}
	if r.Occupancy == nil {
		t.Error("expected occupancy to remain until cleaned")
	}
}

func TestTeardownClearsSession(t *testing.T) {
	r := inUseRoom()
	patientID, err := ReturnToWaiting(&r)
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if patientID != 42 {
		t.Errorf("expected patient 42, got %d", patientID)
	}
	assertTornDown(t, r)

	r = inUseRoom()
	if _, err := FinishSession(&r); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := StartCleaning(&r); err != nil {
		t.Fatalf("start cleaning: %v", err)
	}
	if err := FinishCleaning(&r); err != nil {
		t.Fatalf("finish cleaning: %v", err)
	}
	assertTornDown(t, r)
}

func assertTornDown(t *testing.T, r Room) {
	t.Helper()
	if r.Status != RoomAvailable {
		t.Errorf("expected available, got %s", r.Status)
	}
	if r.Occupancy != nil {
		t.Errorf("expected no occupancy, got %+v", r.Occupancy)
	}
	if r.Items == nil || len(r.Items) != 0 {
		t.Errorf("expected empty items, got %v", r.Items)
	}
}

func TestFinishSessionWithoutPatient(t *testing.T) {
	r := Room{ID: 2, Status: RoomInUse}
	if _, err := FinishSession(&r); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if r.Status != RoomInUse {
		t.Errorf("expected in_use, got %s", r.Status)
	}
}

func TestAddTreatment(t *testing.T) {
	r := inUseRoom()
	r.Items[0].Name = "Hot pack"
	it, err := AddTreatment(&r, TreatmentTemplate{Name: "Laser", DurationMinutes: 0}, counterIDs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if it.DurationMinutes != MinDurationMinutes || it.Status != ItemPending {
		t.Errorf("unexpected item: %+v", it)
	}
	if len(r.Items) != 3 || r.Items[2].Name != "Laser" {
		t.Errorf("expected Laser appended, got %+v", r.Items)
	}

	if _, err := AddTreatment(&r, TreatmentTemplate{Name: "Hot pack", DurationMinutes: 5}, counterIDs()); !errors.Is(err, ErrValidation) {
		t.Errorf("expected duplicate to be rejected, got %v", err)
	}
	if _, err := AddTreatment(&r, TreatmentTemplate{}, counterIDs()); !errors.Is(err, ErrValidation) {
		t.Errorf("expected empty name to be rejected, got %v", err)
	}
}

func TestApplyItemMissing(t *testing.T) {
	r := inUseRoom()
	if err := ApplyItem(&r, "zz", t0, Start); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestApplyItemFailureLeavesItem(t *testing.T) {
	r := inUseRoom()
	if err := ApplyItem(&r, "a", t0, Pause); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if r.Items[0].Status != ItemPending {
		t.Errorf("expected pending, got %s", r.Items[0].Status)
	}
}
