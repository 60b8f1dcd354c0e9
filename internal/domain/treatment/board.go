package treatment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/frontdesk/internal/platform/metrics"
	"github.com/clinicdesk/frontdesk/internal/platform/notification"
	"github.com/clinicdesk/frontdesk/internal/platform/optimistic"
)

// Operation names, used for notices, metrics and failure policies.
const (
	OpStart           = "start"
	OpPause           = "pause"
	OpComplete        = "complete"
	OpReset           = "reset"
	OpAdjustDuration  = "adjust_duration"
	OpDeleteItem      = "delete_item"
	OpReorder         = "reorder"
	OpAssignPatient   = "assign_patient"
	OpFinishSession   = "finish_session"
	OpReturnToWaiting = "return_to_waiting"
	OpStartCleaning   = "start_cleaning"
	OpFinishCleaning  = "finish_cleaning"
	OpAddTreatment    = "add_treatment"
	OpBillingHandoff  = "billing_handoff"
	OpWaitlistAdd     = "waitlist_add"
	OpWaitlistRemove  = "waitlist_remove"
	OpRefresh         = "refresh"
)

// Policies is the failure policy of every board operation. Room and timer
// writes keep the local change when the store rejects them.
var Policies = optimistic.Table{
	OpStart:           optimistic.RetainLocal,
	OpPause:           optimistic.RetainLocal,
	OpComplete:        optimistic.RetainLocal,
	OpReset:           optimistic.RetainLocal,
	OpAdjustDuration:  optimistic.RetainLocal,
	OpDeleteItem:      optimistic.RetainLocal,
	OpReorder:         optimistic.RetainLocal,
	OpAssignPatient:   optimistic.RetainLocal,
	OpFinishSession:   optimistic.RetainLocal,
	OpReturnToWaiting: optimistic.RetainLocal,
	OpStartCleaning:   optimistic.RetainLocal,
	OpFinishCleaning:  optimistic.RetainLocal,
	OpAddTreatment:    optimistic.RetainLocal,
	OpBillingHandoff:  optimistic.RetainLocal,
	OpWaitlistAdd:     optimistic.RetainLocal,
	OpWaitlistRemove:  optimistic.RetainLocal,
}

// Options configures a Board. Gateway is required; every other collaborator
// may be nil.
type Options struct {
	Gateway      Gateway
	Patients     PatientDirectory
	Basic        BasicTreatmentSource
	Billing      Billing
	Waiting      WaitingList
	Notifier     Notifier
	Publisher    Publisher
	Metrics      *metrics.BoardMetrics
	Logger       zerolog.Logger
	DoctorName   string
	TickInterval time.Duration
	// QueueWarn raises a warning notice when more writes than this are waiting.
	QueueWarn int
	Now       func() time.Time
	NewID     IDFunc
}

type persistJob struct {
	op     string
	roomID int64
	run    func(ctx context.Context) error
}

// Board holds this terminal's rooms and is the only way to change them.
// Every action is applied locally under one lock, then its write is queued
// for a single worker that sends writes to the Gateway in issue order.
type Board struct {
	gw        Gateway
	patients  PatientDirectory
	basic     BasicTreatmentSource
	billing   Billing
	waiting   WaitingList
	notifier  Notifier
	publisher Publisher
	metrics   *metrics.BoardMetrics
	logger    zerolog.Logger
	doctor    string
	queueWarn int
	now       func() time.Time
	newID     IDFunc

	mu      sync.Mutex
	rooms   []Room
	pending []persistJob

	persistSignal chan struct{}
	refreshSignal chan struct{}
	ticker        *displayTicker
}

// NewBoard creates an empty board. Call Load before serving it.
func NewBoard(opts Options) *Board {
	b := &Board{
		gw:            opts.Gateway,
		patients:      opts.Patients,
		basic:         opts.Basic,
		billing:       opts.Billing,
		waiting:       opts.Waiting,
		notifier:      opts.Notifier,
		publisher:     opts.Publisher,
		metrics:       opts.Metrics,
		logger:        opts.Logger.With().Str("component", "board").Logger(),
		doctor:        opts.DoctorName,
		queueWarn:     opts.QueueWarn,
		now:           opts.Now,
		newID:         opts.NewID,
		rooms:         []Room{},
		persistSignal: make(chan struct{}, 1),
		refreshSignal: make(chan struct{}, 1),
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.newID == nil {
		b.newID = uuid.NewString
	}
	interval := opts.TickInterval
	if interval <= 0 || interval > time.Second {
		interval = time.Second
	}
	b.ticker = newDisplayTicker(interval, b.RunningCount, b.publishView)
	return b
}

// Load replaces local state with the store's rooms. Running items restart
// their interval at the local clock.
func (b *Board) Load(ctx context.Context) error {
	snaps, err := b.gw.FetchRooms(ctx)
	if err != nil {
		b.metrics.ObserveSnapshot("load", "error")
		return fmt.Errorf("fetch rooms: %w", err)
	}
	b.metrics.ObserveSnapshot("load", "ok")

	b.mu.Lock()
	b.rooms = AdoptInitial(snaps, b.now())
	b.mu.Unlock()

	b.changed()
	b.logger.Info().Int("rooms", len(snaps)).Msg("board loaded")
	return nil
}

// Run subscribes to room changes and drives the persistence worker, the
// snapshot reconciler and the display ticker until ctx is done.
func (b *Board) Run(ctx context.Context) error {
	unsubscribe, err := b.gw.SubscribeRoomChanges(ctx, func(kind ChangeKind, roomIDs []int64) {
		b.logger.Debug().Str("kind", string(kind)).Ints64("rooms", roomIDs).Msg("room change")
		b.RequestRefresh()
	})
	if err != nil {
		return fmt.Errorf("subscribe room changes: %w", err)
	}
	defer unsubscribe()

	go b.ticker.run(ctx)
	if b.RunningCount() > 0 {
		b.ticker.wake()
	}

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			b.drainPending(flushCtx)
			cancel()
			return nil
		case <-b.persistSignal:
			b.drainPending(ctx)
		case <-b.refreshSignal:
			// Own writes go out first so the snapshot reflects them.
			b.drainPending(ctx)
			b.refresh(ctx)
		}
	}
}

// RequestRefresh schedules a snapshot fetch. Requests made while one is
// pending collapse into it.
func (b *Board) RequestRefresh() {
	select {
	case b.refreshSignal <- struct{}{}:
	default:
	}
}

func (b *Board) refresh(ctx context.Context) {
	snaps, err := b.gw.FetchRooms(ctx)
	if err != nil {
		b.metrics.ObserveSnapshot("notify", "error")
		b.notify(notification.LevelWarning, OpRefresh, 0, fmt.Sprintf("could not load rooms: %v", err))
		return
	}

	b.mu.Lock()
	rooms, stats := Reconcile(b.rooms, snaps, b.now())
	b.rooms = rooms
	b.mu.Unlock()

	b.metrics.ObserveSnapshot("notify", "ok")
	for d, n := range stats {
		b.metrics.ObserveMerge(string(d), n)
	}
	b.changed()
}

// Rooms returns a copy of the current rooms.
func (b *Board) Rooms() []Room {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Room, len(b.rooms))
	for i, r := range b.rooms {
		out[i] = r.Clone()
	}
	return out
}

// Room returns a copy of one room.
func (b *Board) Room(roomID int64) (Room, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.indexLocked(roomID); i >= 0 {
		return b.rooms[i].Clone(), true
	}
	return Room{}, false
}

// View derives the display of every room at now.
func (b *Board) View(now time.Time) []RoomView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return viewRooms(b.rooms, now)
}

// RunningCount returns the number of running items across all rooms.
func (b *Board) RunningCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return countRunning(b.rooms)
}

// PendingWrites returns the number of writes waiting for the worker.
func (b *Board) PendingWrites() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// ---------------------------------------------------------------------------
// Item actions
// ---------------------------------------------------------------------------

// Start runs a pending or paused item from now.
func (b *Board) Start(ctx context.Context, roomID int64, itemID string) error {
	return b.itemAction(ctx, OpStart, roomID, itemID, Start)
}

// Pause folds the running interval into the item's elapsed seconds.
func (b *Board) Pause(ctx context.Context, roomID int64, itemID string) error {
	return b.itemAction(ctx, OpPause, roomID, itemID, Pause)
}

// Complete marks an item done. Running items are never completed by time
// alone; this is the only way.
func (b *Board) Complete(ctx context.Context, roomID int64, itemID string) error {
	return b.itemAction(ctx, OpComplete, roomID, itemID, func(it *SessionItem, _ time.Time) error {
		return Complete(it)
	})
}

// Reset returns an item to pending with no elapsed time.
func (b *Board) Reset(ctx context.Context, roomID int64, itemID string) error {
	return b.itemAction(ctx, OpReset, roomID, itemID, func(it *SessionItem, _ time.Time) error {
		Reset(it)
		return nil
	})
}

// AdjustDuration changes the planned minutes of an item by deltaMinutes.
func (b *Board) AdjustDuration(ctx context.Context, roomID int64, itemID string, deltaMinutes int) error {
	return b.itemAction(ctx, OpAdjustDuration, roomID, itemID, func(it *SessionItem, _ time.Time) error {
		AdjustDuration(it, deltaMinutes)
		return nil
	})
}

// DeleteItem removes a pending item.
func (b *Board) DeleteItem(ctx context.Context, roomID int64, itemID string) error {
	return b.mutate(ctx, OpDeleteItem, roomID, itemID, func(r *Room, _ time.Time) ([]persistJob, error) {
		if err := DeleteRoomItem(r, itemID); err != nil {
			return nil, err
		}
		return []persistJob{b.itemsJob(OpDeleteItem, r)}, nil
	})
}

// Reorder moves movedID before targetID in the room's sequence.
func (b *Board) Reorder(ctx context.Context, roomID int64, movedID, targetID string) error {
	return b.mutate(ctx, OpReorder, roomID, movedID, func(r *Room, _ time.Time) ([]persistJob, error) {
		if err := ReorderItems(r, movedID, targetID); err != nil {
			return nil, err
		}
		return []persistJob{b.itemsJob(OpReorder, r)}, nil
	})
}

func (b *Board) itemAction(ctx context.Context, op string, roomID int64, itemID string, action ItemAction) error {
	return b.mutate(ctx, op, roomID, itemID, func(r *Room, now time.Time) ([]persistJob, error) {
		if err := ApplyItem(r, itemID, now, action); err != nil {
			return nil, err
		}
		return []persistJob{b.itemsJob(op, r)}, nil
	})
}

// ---------------------------------------------------------------------------
// Room actions
// ---------------------------------------------------------------------------

// AssignPatient puts a patient into an available room and seeds the session
// from the patient's default treatments, or the basic list when there are
// none.
func (b *Board) AssignPatient(ctx context.Context, roomID, patientID int64) error {
	if err := b.precheck(OpAssignPatient, roomID, RoomAvailable); err != nil {
		return err
	}
	ref, templates, err := b.sessionPlan(ctx, patientID)
	if err != nil {
		return b.reject(OpAssignPatient, roomID, "", err)
	}

	return b.mutate(ctx, OpAssignPatient, roomID, "", func(r *Room, now time.Time) ([]persistJob, error) {
		occ := Occupancy{
			PatientID:   ref.ID,
			PatientName: ref.Name,
			ChartNumber: ref.ChartNumber,
			DoctorName:  b.doctor,
			InTime:      now.UTC(),
		}
		if err := AssignPatient(r, occ, templates, b.newID); err != nil {
			return nil, err
		}
		status := r.Status
		assigned := *r.Occupancy
		jobs := []persistJob{b.updateJob(OpAssignPatient, r.ID, RoomPatch{
			Status:    &status,
			Occupancy: &assigned,
			Items:     cloneItems(r.Items),
			SetItems:  true,
		})}
		if b.waiting != nil {
			jobs = append(jobs, persistJob{op: OpWaitlistRemove, roomID: r.ID, run: func(ctx context.Context) error {
				return b.waiting.Remove(ctx, patientID)
			}})
		}
		return jobs, nil
	})
}

func (b *Board) sessionPlan(ctx context.Context, patientID int64) (PatientRef, []TreatmentTemplate, error) {
	if b.patients == nil {
		return PatientRef{}, nil, errors.New("no patient directory configured")
	}
	ref, err := b.patients.Lookup(ctx, patientID)
	if err != nil {
		return PatientRef{}, nil, fmt.Errorf("look up patient %d: %w", patientID, err)
	}
	templates, err := b.patients.DefaultTreatments(ctx, patientID)
	if err != nil {
		return PatientRef{}, nil, fmt.Errorf("default treatments of patient %d: %w", patientID, err)
	}
	if len(templates) == 0 && b.basic != nil {
		templates, err = b.basic.BasicTreatments(ctx)
		if err != nil {
			return PatientRef{}, nil, fmt.Errorf("basic treatments: %w", err)
		}
	}
	return ref, templates, nil
}

// FinishSession marks the room for cleaning and hands the patient to billing.
func (b *Board) FinishSession(ctx context.Context, roomID int64) error {
	return b.mutate(ctx, OpFinishSession, roomID, "", func(r *Room, _ time.Time) ([]persistJob, error) {
		patientID, err := FinishSession(r)
		if err != nil {
			return nil, err
		}
		jobs := []persistJob{b.statusJob(OpFinishSession, r)}
		if b.billing != nil {
			jobs = append(jobs, persistJob{op: OpBillingHandoff, roomID: r.ID, run: func(ctx context.Context) error {
				return b.billing.Handoff(ctx, patientID)
			}})
		}
		return jobs, nil
	})
}

// ReturnToWaiting sends the patient back to the waiting list and frees the
// room without cleaning.
func (b *Board) ReturnToWaiting(ctx context.Context, roomID int64) error {
	return b.mutate(ctx, OpReturnToWaiting, roomID, "", func(r *Room, _ time.Time) ([]persistJob, error) {
		patientID, err := ReturnToWaiting(r)
		if err != nil {
			return nil, err
		}
		jobs := []persistJob{b.clearJob(OpReturnToWaiting, r.ID)}
		if b.waiting != nil {
			jobs = append(jobs, persistJob{op: OpWaitlistAdd, roomID: r.ID, run: func(ctx context.Context) error {
				return b.waiting.Add(ctx, patientID)
			}})
		}
		return jobs, nil
	})
}

// StartCleaning moves a needs_clean room to cleaning.
func (b *Board) StartCleaning(ctx context.Context, roomID int64) error {
	return b.mutate(ctx, OpStartCleaning, roomID, "", func(r *Room, _ time.Time) ([]persistJob, error) {
		if err := StartCleaning(r); err != nil {
			return nil, err
		}
		return []persistJob{b.statusJob(OpStartCleaning, r)}, nil
	})
}

// FinishCleaning frees a cleaning room.
func (b *Board) FinishCleaning(ctx context.Context, roomID int64) error {
	return b.mutate(ctx, OpFinishCleaning, roomID, "", func(r *Room, _ time.Time) ([]persistJob, error) {
		if err := FinishCleaning(r); err != nil {
			return nil, err
		}
		return []persistJob{b.clearJob(OpFinishCleaning, r.ID)}, nil
	})
}

// AddTreatment appends a pending item to an in-use room and returns it.
func (b *Board) AddTreatment(ctx context.Context, roomID int64, t TreatmentTemplate) (SessionItem, error) {
	var added SessionItem
	err := b.mutate(ctx, OpAddTreatment, roomID, "", func(r *Room, _ time.Time) ([]persistJob, error) {
		it, err := AddTreatment(r, t, b.newID)
		if err != nil {
			return nil, err
		}
		added = it
		return []persistJob{b.itemsJob(OpAddTreatment, r)}, nil
	})
	return added, err
}

// ---------------------------------------------------------------------------
// Mutation plumbing
// ---------------------------------------------------------------------------

// mutate applies fn to a copy of the room and commits the copy only when fn
// succeeds, so a rejected action leaves the room untouched.
func (b *Board) mutate(ctx context.Context, op string, roomID int64, itemID string, fn func(r *Room, now time.Time) ([]persistJob, error)) error {
	if err := ctx.Err(); err != nil {
		// The caller has gone away; nothing was applied, so nothing to report.
		return &ActionError{Op: op, RoomID: roomID, ItemID: itemID, Err: err}
	}
	now := b.now()

	b.mu.Lock()
	i := b.indexLocked(roomID)
	if i < 0 {
		b.mu.Unlock()
		return b.reject(op, roomID, itemID, notFoundf("room %d", roomID))
	}
	r := b.rooms[i].Clone()
	jobs, err := fn(&r, now)
	if err != nil {
		b.mu.Unlock()
		return b.reject(op, roomID, itemID, err)
	}
	r.UpdatedAt = now.UTC()
	b.rooms[i] = r
	b.pending = append(b.pending, jobs...)
	depth := len(b.pending)
	b.mu.Unlock()

	b.metrics.ObserveAction(op, "ok")
	b.metrics.SetQueueDepth(depth)
	if b.queueWarn > 0 && depth > b.queueWarn {
		b.notify(notification.LevelWarning, op, roomID, fmt.Sprintf("%d writes waiting for the store", depth))
	}
	select {
	case b.persistSignal <- struct{}{}:
	default:
	}
	b.changed()
	return nil
}

// precheck rejects an action early when the room is absent or not in the
// expected status, before any slow lookups are made.
func (b *Board) precheck(op string, roomID int64, want RoomStatus) error {
	b.mu.Lock()
	i := b.indexLocked(roomID)
	var status RoomStatus
	if i >= 0 {
		status = b.rooms[i].Status
	}
	b.mu.Unlock()

	if i < 0 {
		return b.reject(op, roomID, "", notFoundf("room %d", roomID))
	}
	if status != want {
		return b.reject(op, roomID, "", invalidf("room %d is %s", roomID, status))
	}
	return nil
}

func (b *Board) reject(op string, roomID int64, itemID string, err error) error {
	outcome := "error"
	level := notification.LevelError
	switch {
	case errors.Is(err, ErrValidation):
		outcome, level = "rejected", notification.LevelWarning
	case errors.Is(err, ErrNotFound):
		outcome, level = "not_found", notification.LevelWarning
	}
	b.metrics.ObserveAction(op, outcome)
	aerr := &ActionError{Op: op, RoomID: roomID, ItemID: itemID, Err: err}
	b.notify(level, op, roomID, aerr.Error())
	return aerr
}

func (b *Board) notify(level notification.Level, op string, roomID int64, msg string) {
	if b.notifier == nil {
		b.logger.Warn().Str("op", op).Int64("room_id", roomID).Msg(msg)
		return
	}
	b.notifier.Notify(notification.Notice{Level: level, Op: op, RoomID: roomID, Message: msg})
}

// itemsJob writes the room's items for its current session only. If another
// terminal has torn the session down by the time the write runs, the write
// is dropped instead of recreating items under a freed room.
func (b *Board) itemsJob(op string, r *Room) persistJob {
	patch := RoomPatch{Items: cloneItems(r.Items), SetItems: true}
	if r.Occupancy != nil {
		patch.SessionID = r.Occupancy.SessionID
	}
	return b.updateJob(op, r.ID, patch)
}

func (b *Board) statusJob(op string, r *Room) persistJob {
	status := r.Status
	return b.updateJob(op, r.ID, RoomPatch{Status: &status})
}

func (b *Board) updateJob(op string, roomID int64, patch RoomPatch) persistJob {
	return persistJob{op: op, roomID: roomID, run: func(ctx context.Context) error {
		return b.gw.UpdateRoom(ctx, roomID, patch)
	}}
}

func (b *Board) clearJob(op string, roomID int64) persistJob {
	return persistJob{op: op, roomID: roomID, run: func(ctx context.Context) error {
		return b.gw.ClearRoomSession(ctx, roomID)
	}}
}

// drainPending runs queued writes in order until the queue is empty.
func (b *Board) drainPending(ctx context.Context) {
	for {
		b.mu.Lock()
		jobs := b.pending
		b.pending = nil
		b.mu.Unlock()
		if len(jobs) == 0 {
			b.metrics.SetQueueDepth(0)
			return
		}
		for _, job := range jobs {
			b.runJob(ctx, job)
		}
	}
}

func (b *Board) runJob(ctx context.Context, job persistJob) {
	start := time.Now()
	err := job.run(ctx)
	b.metrics.ObservePersistLatency(job.op, time.Since(start).Seconds())
	if err == nil {
		return
	}
	if errors.Is(err, ErrStaleSession) {
		b.metrics.ObservePersistFailure(job.op, "stale_session")
		b.logger.Info().Err(err).Str("op", job.op).Int64("room_id", job.roomID).Msg("dropped write for ended session")
		b.RequestRefresh()
		return
	}
	policy := Policies.For(job.op)
	b.metrics.ObservePersistFailure(job.op, policy.String())
	b.logger.Error().Err(err).
		Str("op", job.op).
		Int64("room_id", job.roomID).
		Str("policy", policy.String()).
		Msg("persist failed")
	b.notify(notification.LevelError, job.op, job.roomID,
		fmt.Sprintf("could not save room %d; showing local state: %v", job.roomID, err))
}

func (b *Board) changed() {
	running := b.RunningCount()
	b.metrics.SetRunningItems(running)
	b.publishView()
	if running > 0 {
		b.ticker.wake()
	}
}

func (b *Board) publishView() {
	if b.publisher == nil {
		return
	}
	b.publisher.PublishRooms(b.View(b.now()))
}

func (b *Board) indexLocked(roomID int64) int {
	for i := range b.rooms {
		if b.rooms[i].ID == roomID {
			return i
		}
	}
	return -1
}

func viewRooms(rooms []Room, now time.Time) []RoomView {
	out := make([]RoomView, len(rooms))
	for i, r := range rooms {
		v := RoomView{ID: r.ID, Name: r.Name, Status: r.Status, Items: make([]ItemView, len(r.Items))}
		if r.Occupancy != nil {
			occ := *r.Occupancy
			v.Occupancy = &occ
		}
		for j, it := range r.Items {
			v.Items[j] = ViewItem(it, now)
		}
		out[i] = v
	}
	return out
}

func countRunning(rooms []Room) int {
	n := 0
	for _, r := range rooms {
		for _, it := range r.Items {
			if it.Status == ItemRunning {
				n++
			}
		}
	}
	return n
}
