package treatment

import (
	"math"
	"time"
)

// MinDurationMinutes is the floor for AdjustDuration.
const MinDurationMinutes = 1

// Elapsed returns the raw seconds consumed by it at now, before clamping.
// Completed items report their full planned duration.
func Elapsed(it SessionItem, now time.Time) float64 {
	total := float64(it.DurationMinutes * 60)
	switch it.Status {
	case ItemCompleted:
		return total
	case ItemRunning:
		if it.StartTime == nil {
			return float64(it.ElapsedSeconds)
		}
		return now.Sub(*it.StartTime).Seconds() + float64(it.ElapsedSeconds)
	case ItemPaused:
		return float64(it.ElapsedSeconds)
	default:
		return 0
	}
}

// Progress derives the countdown of it at now. It is a pure function of the
// stored fields and never changes the item; a running item whose remaining
// time reaches zero stays running.
func Progress(it SessionItem, now time.Time) (remainingSeconds, percent float64) {
	total := float64(it.DurationMinutes * 60)
	if total <= 0 {
		if it.Status == ItemCompleted {
			return 0, 100
		}
		return 0, 0
	}
	clamped := math.Max(0, math.Min(total, Elapsed(it, now)))
	return total - clamped, clamped / total * 100
}

// Overtime reports whether a running item has used up its planned time.
func Overtime(it SessionItem, now time.Time) bool {
	return it.Status == ItemRunning && Elapsed(it, now) >= float64(it.DurationMinutes*60)
}

// ViewItem pairs it with its derived countdown at now.
func ViewItem(it SessionItem, now time.Time) ItemView {
	remaining, pct := Progress(it, now)
	return ItemView{
		SessionItem:      it.clone(),
		RemainingSeconds: int(math.Floor(remaining)),
		Progress:         pct,
		Overtime:         Overtime(it, now),
	}
}

// Start moves a pending or paused item to running. A paused item keeps its
// accumulated seconds; a pending one starts from zero.
func Start(it *SessionItem, now time.Time) error {
	switch it.Status {
	case ItemPending:
		it.ElapsedSeconds = 0
	case ItemPaused:
	default:
		return invalidf("cannot start %s item %q", it.Status, it.ID)
	}
	st := now
	it.Status = ItemRunning
	it.StartTime = &st
	return nil
}

// Pause folds the current running interval into ElapsedSeconds, rounded to
// whole seconds.
func Pause(it *SessionItem, now time.Time) error {
	if it.Status != ItemRunning || it.StartTime == nil {
		return invalidf("cannot pause %s item %q", it.Status, it.ID)
	}
	run := now.Sub(*it.StartTime).Seconds()
	if run < 0 {
		run = 0
	}
	it.ElapsedSeconds = int(math.Round(float64(it.ElapsedSeconds) + run))
	it.Status = ItemPaused
	it.StartTime = nil
	return nil
}

// Complete marks it done. Stored elapsed time is reset; completed items
// report full progress through Progress.
func Complete(it *SessionItem) error {
	if it.Status == ItemCompleted {
		return invalidf("item %q is already completed", it.ID)
	}
	it.Status = ItemCompleted
	it.StartTime = nil
	it.ElapsedSeconds = 0
	return nil
}

// Reset returns it to pending with no elapsed time.
func Reset(it *SessionItem) {
	it.Status = ItemPending
	it.StartTime = nil
	it.ElapsedSeconds = 0
}

// AdjustDuration changes the planned duration by delta minutes, never going
// below MinDurationMinutes. Status and elapsed time are untouched.
func AdjustDuration(it *SessionItem, deltaMinutes int) {
	d := it.DurationMinutes + deltaMinutes
	if d < MinDurationMinutes {
		d = MinDurationMinutes
	}
	it.DurationMinutes = d
}

// Reorder moves the item movedID so that it sits immediately before targetID.
// An absent target appends the moved item at the end. The input slice is not
// modified.
func Reorder(items []SessionItem, movedID, targetID string) []SessionItem {
	out := cloneItems(items)
	if movedID == targetID {
		return out
	}
	from := indexOf(out, movedID)
	if from < 0 {
		return out
	}
	moved := out[from]
	out = append(out[:from], out[from+1:]...)

	to := indexOf(out, targetID)
	if to < 0 {
		return append(out, moved)
	}
	out = append(out, SessionItem{})
	copy(out[to+1:], out[to:])
	out[to] = moved
	return out
}

// DeleteItem removes a pending item. Items that have started cannot be
// deleted; reset them first.
func DeleteItem(items []SessionItem, id string) ([]SessionItem, error) {
	i := indexOf(items, id)
	if i < 0 {
		return nil, notFoundf("item %q", id)
	}
	if items[i].Status != ItemPending {
		return nil, invalidf("cannot delete %s item %q", items[i].Status, id)
	}
	out := make([]SessionItem, 0, len(items)-1)
	out = append(out, cloneItems(items[:i])...)
	out = append(out, cloneItems(items[i+1:])...)
	return out, nil
}

func indexOf(items []SessionItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}
