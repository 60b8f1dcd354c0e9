package treatment

import (
	"time"
)

// MergeDecision records how a single incoming item was merged.
type MergeDecision string

const (
	// MergeAdopted means the incoming item replaced local state.
	MergeAdopted MergeDecision = "adopted"
	// MergeKeptLocal means the local running item was kept as the author of the run.
	MergeKeptLocal MergeDecision = "kept_local"
	// MergeRebased means an incoming running item was adopted with its start
	// time moved to the local clock.
	MergeRebased MergeDecision = "rebased"
)

// MergeStats counts merge decisions for one reconcile pass.
type MergeStats map[MergeDecision]int

// Reconcile merges an authoritative snapshot into local state. The snapshot
// decides which rooms exist, their order and their item order; item fields
// follow the per-item rules in mergeItem. Neither input is modified.
func Reconcile(local []Room, incoming []RoomSnapshot, now time.Time) ([]Room, MergeStats) {
	stats := MergeStats{}
	byID := make(map[int64]*Room, len(local))
	for i := range local {
		byID[local[i].ID] = &local[i]
	}

	out := make([]Room, 0, len(incoming))
	for _, snap := range incoming {
		room := snap.Clone()
		var localItems map[string]SessionItem
		if l, ok := byID[snap.ID]; ok {
			localItems = make(map[string]SessionItem, len(l.Items))
			for _, it := range l.Items {
				localItems[it.ID] = it
			}
		}
		for i, r := range room.Items {
			var lp *SessionItem
			if l, ok := localItems[r.ID]; ok {
				lp = &l
			}
			merged, d := mergeItem(lp, r, now)
			room.Items[i] = merged
			stats[d]++
		}
		out = append(out, room)
	}
	return out, stats
}

// AdoptInitial prepares a first snapshot for a board with no local state.
// Running items restart their interval at now with the stored elapsed time.
func AdoptInitial(incoming []RoomSnapshot, now time.Time) []Room {
	out, _ := Reconcile(nil, incoming, now)
	return out
}

func mergeItem(l *SessionItem, r SessionItem, now time.Time) (SessionItem, MergeDecision) {
	if l != nil && l.Status == ItemRunning && r.Status == ItemRunning {
		return l.clone(), MergeKeptLocal
	}
	if r.Status == ItemRunning {
		st := now
		r.StartTime = &st
		return r, MergeRebased
	}
	r.StartTime = nil
	return r, MergeAdopted
}
