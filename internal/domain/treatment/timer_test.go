package treatment

import (
	"errors"
	"math"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func ptrTime(t time.Time) *time.Time { return &t }

func TestProgress_Pending(t *testing.T) {
	it := SessionItem{ID: "a", DurationMinutes: 10, Status: ItemPending, ElapsedSeconds: 99}
	for _, now := range []time.Time{t0, t0.Add(time.Hour)} {
		rem, pct := Progress(it, now)
		if rem != 600 {
			t.Errorf("expected remaining 600, got %v", rem)
		}
		if pct != 0 {
			t.Errorf("expected progress 0, got %v", pct)
		}
	}
}

func TestProgress_CompletedIgnoresElapsed(t *testing.T) {
	it := SessionItem{ID: "a", DurationMinutes: 10, Status: ItemCompleted, ElapsedSeconds: 7}
	rem, pct := Progress(it, t0)
	if rem != 0 || pct != 100 {
		t.Errorf("expected 0/100, got %v/%v", rem, pct)
	}
}

func TestProgress_ZeroDuration(t *testing.T) {
	done := SessionItem{ID: "a", Status: ItemCompleted}
	if _, pct := Progress(done, t0); pct != 100 {
		t.Errorf("expected 100 for completed zero-duration item, got %v", pct)
	}
	running := SessionItem{ID: "b", Status: ItemRunning, StartTime: ptrTime(t0)}
	if rem, pct := Progress(running, t0.Add(time.Minute)); rem != 0 || pct != 0 {
		t.Errorf("expected 0/0 for running zero-duration item, got %v/%v", rem, pct)
	}
}

func TestProgress_RunningAndPaused(t *testing.T) {
	running := SessionItem{ID: "a", DurationMinutes: 10, Status: ItemRunning, StartTime: ptrTime(t0), ElapsedSeconds: 60}
	rem, pct := Progress(running, t0.Add(2*time.Minute))
	if rem != 420 {
		t.Errorf("expected remaining 420, got %v", rem)
	}
	if pct != 30 {
		t.Errorf("expected progress 30, got %v", pct)
	}

	paused := SessionItem{ID: "b", DurationMinutes: 10, Status: ItemPaused, ElapsedSeconds: 150}
	rem, pct = Progress(paused, t0.Add(time.Hour))
	if rem != 450 || pct != 25 {
		t.Errorf("expected 450/25, got %v/%v", rem, pct)
	}
}

func TestProgress_ClampsNegativeElapsed(t *testing.T) {
	it := SessionItem{ID: "a", DurationMinutes: 1, Status: ItemRunning, StartTime: ptrTime(t0)}
	rem, pct := Progress(it, t0.Add(-30*time.Second))
	if rem != 60 || pct != 0 {
		t.Errorf("expected 60/0, got %v/%v", rem, pct)
	}
}

func TestProgress_NoSilentCompletion(t *testing.T) {
	it := SessionItem{ID: "a", DurationMinutes: 1, Status: ItemRunning, StartTime: ptrTime(t0)}
	later := t0.Add(5 * time.Minute)
	rem, pct := Progress(it, later)
	if rem != 0 || pct != 100 {
		t.Errorf("expected 0/100, got %v/%v", rem, pct)
	}
	if it.Status != ItemRunning {
		t.Errorf("expected status running, got %s", it.Status)
	}
	if !Overtime(it, later) {
		t.Error("expected overtime")
	}
	v := ViewItem(it, later)
	if v.Status != ItemRunning || v.RemainingSeconds != 0 {
		t.Errorf("unexpected view: %+v", v)
	}
}

func TestStartPauseRoundTrip(t *testing.T) {
	it := SessionItem{ID: "a", DurationMinutes: 10, Status: ItemPending}
	if err := Start(&it, t0); err != nil {
		t.Fatalf("start: %v", err)
	}
	if it.Status != ItemRunning || it.StartTime == nil || !it.StartTime.Equal(t0) {
		t.Fatalf("unexpected item after start: %+v", it)
	}
	if err := Pause(&it, t0.Add(42600*time.Millisecond)); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if it.Status != ItemPaused {
		t.Errorf("expected paused, got %s", it.Status)
	}
	if it.StartTime != nil {
		t.Error("expected start time cleared")
	}
	if it.ElapsedSeconds != 43 {
		t.Errorf("expected 43 elapsed seconds, got %d", it.ElapsedSeconds)
	}
}

func TestResumeAccumulates(t *testing.T) {
	it := SessionItem{ID: "a", DurationMinutes: 10, Status: ItemPaused, ElapsedSeconds: 30}
	t1 := t0.Add(time.Hour)
	if err := Start(&it, t1); err != nil {
		t.Fatalf("start: %v", err)
	}
	if it.ElapsedSeconds != 30 {
		t.Errorf("expected elapsed kept at 30, got %d", it.ElapsedSeconds)
	}
	if err := Pause(&it, t1.Add(20*time.Second)); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if it.ElapsedSeconds != 50 {
		t.Errorf("expected 50, got %d", it.ElapsedSeconds)
	}
}

func TestStartFromPendingDropsStaleElapsed(t *testing.T) {
	it := SessionItem{ID: "a", DurationMinutes: 10, Status: ItemPending, ElapsedSeconds: 12}
	if err := Start(&it, t0); err != nil {
		t.Fatalf("start: %v", err)
	}
	if it.ElapsedSeconds != 0 {
		t.Errorf("expected 0, got %d", it.ElapsedSeconds)
	}
}

func TestIllegalTimerActions(t *testing.T) {
	tests := []struct {
		name   string
		item   SessionItem
		action func(*SessionItem) error
	}{
		{"start running", SessionItem{ID: "a", Status: ItemRunning, StartTime: ptrTime(t0)}, func(it *SessionItem) error { return Start(it, t0) }},
		{"start completed", SessionItem{ID: "a", Status: ItemCompleted}, func(it *SessionItem) error { return Start(it, t0) }},
		{"pause pending", SessionItem{ID: "a", Status: ItemPending}, func(it *SessionItem) error { return Pause(it, t0) }},
		{"pause paused", SessionItem{ID: "a", Status: ItemPaused, ElapsedSeconds: 5}, func(it *SessionItem) error { return Pause(it, t0) }},
		{"pause without start time", SessionItem{ID: "a", Status: ItemRunning}, func(it *SessionItem) error { return Pause(it, t0) }},
		{"complete completed", SessionItem{ID: "a", Status: ItemCompleted}, Complete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.item.clone()
			err := tt.action(&tt.item)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if tt.item.Status != before.Status || tt.item.ElapsedSeconds != before.ElapsedSeconds {
				t.Errorf("item changed: %+v -> %+v", before, tt.item)
			}
		})
	}
}

func TestCompleteFromAnyStatus(t *testing.T) {
	for _, st := range []ItemStatus{ItemPending, ItemRunning, ItemPaused} {
		it := SessionItem{ID: "a", DurationMinutes: 5, Status: st, ElapsedSeconds: 40}
		if st == ItemRunning {
			it.StartTime = ptrTime(t0)
		}
		if err := Complete(&it); err != nil {
			t.Fatalf("complete from %s: %v", st, err)
		}
		if it.Status != ItemCompleted || it.StartTime != nil || it.ElapsedSeconds != 0 {
			t.Errorf("unexpected item after complete from %s: %+v", st, it)
		}
		if _, pct := Progress(it, t0); pct != 100 {
			t.Errorf("expected progress 100, got %v", pct)
		}
	}
}

func TestReset(t *testing.T) {
	it := SessionItem{ID: "a", DurationMinutes: 5, Status: ItemRunning, StartTime: ptrTime(t0), ElapsedSeconds: 40}
	Reset(&it)
	if it.Status != ItemPending || it.StartTime != nil || it.ElapsedSeconds != 0 {
		t.Errorf("unexpected item after reset: %+v", it)
	}
}

func TestAdjustDuration(t *testing.T) {
	it := SessionItem{ID: "a", DurationMinutes: 3, Status: ItemPaused, ElapsedSeconds: 20}
	AdjustDuration(&it, 5)
	if it.DurationMinutes != 8 {
		t.Errorf("expected 8, got %d", it.DurationMinutes)
	}
	AdjustDuration(&it, -20)
	if it.DurationMinutes != 1 {
		t.Errorf("expected floor of 1, got %d", it.DurationMinutes)
	}
	if it.Status != ItemPaused || it.ElapsedSeconds != 20 {
		t.Errorf("status or elapsed changed: %+v", it)
	}
}

func ids(items []SessionItem) string {
	s := ""
	for _, it := range items {
		s += it.ID
	}
	return s
}

func seq(idList ...string) []SessionItem {
	out := make([]SessionItem, len(idList))
	for i, id := range idList {
		out[i] = SessionItem{ID: id, Status: ItemPending, DurationMinutes: 1}
	}
	return out
}

func TestReorder(t *testing.T) {
	tests := []struct {
		name          string
		moved, target string
		want          string
	}{
		{"same id", "b", "b", "abcd"},
		{"absent moved", "x", "a", "abcd"},
		{"absent target appends", "b", "x", "acdb"},
		{"empty target appends", "a", "", "bcda"},
		{"move up", "d", "b", "adbc"},
		{"move down", "a", "c", "bacd"},
		{"move to front", "c", "a", "cabd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := seq("a", "b", "c", "d")
			got := Reorder(in, tt.moved, tt.target)
			if ids(got) != tt.want {
				t.Errorf("expected %s, got %s", tt.want, ids(got))
			}
			if ids(in) != "abcd" {
				t.Errorf("input modified: %s", ids(in))
			}
		})
	}
}

func TestDeleteItem(t *testing.T) {
	items := seq("a", "b", "c")
	out, err := DeleteItem(items, "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ids(out) != "ac" {
		t.Errorf("expected ac, got %s", ids(out))
	}

	items[0].Status = ItemRunning
	if _, err := DeleteItem(items, "a"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := DeleteItem(items, "zz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestElapsedRunningWithoutStart(t *testing.T) {
	it := SessionItem{ID: "a", DurationMinutes: 1, Status: ItemRunning, ElapsedSeconds: 12}
	if got := Elapsed(it, t0); math.Abs(got-12) > 1e-9 {
		t.Errorf("expected 12, got %v", got)
	}
}
