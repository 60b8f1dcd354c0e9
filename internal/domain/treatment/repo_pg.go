package treatment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clinicdesk/frontdesk/internal/platform/db"
)

// ChangeChannel is the NOTIFY channel written by the treatment_rooms and
// session_treatments triggers.
const ChangeChannel = "room_changes"

// ChangeListener delivers raw NOTIFY payloads. *db.Listener implements it.
type ChangeListener interface {
	Listen(ctx context.Context, channel string, fn func(payload string), onReconnect func()) error
}

type repoPG struct {
	pool     db.DB
	listener ChangeListener
}

// NewRepo returns the Postgres gateway. listener may be nil, in which case
// SubscribeRoomChanges never fires.
func NewRepo(pool db.DB, listener ChangeListener) Store {
	return &repoPG{pool: pool, listener: listener}
}

const roomCols = `id, name, status,
	patient_id IS NOT NULL,
	COALESCE(session_id, ''), COALESCE(patient_id, 0), COALESCE(patient_name, ''),
	COALESCE(chart_number, ''), COALESCE(doctor_name, ''), COALESCE(in_time, updated_at),
	updated_at`

const itemCols = `id, room_id, name, duration_minutes, status,
	start_time IS NOT NULL, COALESCE(start_time, to_timestamp(0)),
	elapsed_seconds, memo`

// FetchRooms reads rooms and their items in one snapshot transaction so a
// clear committed between the two queries cannot pair old rooms with new
// items.
func (r *repoPG) FetchRooms(ctx context.Context) ([]RoomSnapshot, error) {
	var rooms []RoomSnapshot
	err := db.InTxWith(ctx, r.pool, db.SnapshotRead, func(ctx context.Context) error {
		var err error
		rooms, err = fetchRooms(ctx, db.Conn(ctx, r.pool))
		return err
	})
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func fetchRooms(ctx context.Context, q db.Querier) ([]RoomSnapshot, error) {
	rows, err := q.Query(ctx, `SELECT `+roomCols+` FROM treatment_rooms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	rooms, err := collectRooms(rows)
	if err != nil {
		return nil, err
	}

	index := make(map[int64]int, len(rooms))
	for i := range rooms {
		index[rooms[i].ID] = i
	}

	rows, err = q.Query(ctx, `SELECT `+itemCols+` FROM session_treatments ORDER BY room_id, position`)
	if err != nil {
		return nil, fmt.Errorf("query session treatments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			it       SessionItem
			roomID   int64
			status   string
			hasStart bool
			start    time.Time
		)
		if err := rows.Scan(&it.ID, &roomID, &it.Name, &it.DurationMinutes, &status,
			&hasStart, &start, &it.ElapsedSeconds, &it.Memo); err != nil {
			return nil, fmt.Errorf("scan session treatment: %w", err)
		}
		it.Status = ItemStatus(status)
		if hasStart && it.Status == ItemRunning {
			st := start.UTC()
			it.StartTime = &st
		}
		i, ok := index[roomID]
		if !ok {
			continue
		}
		rooms[i].Items = append(rooms[i].Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session treatments: %w", err)
	}
	return rooms, nil
}

func collectRooms(rows pgx.Rows) ([]RoomSnapshot, error) {
	defer rows.Close()
	rooms := []RoomSnapshot{}
	for rows.Next() {
		var (
			room     RoomSnapshot
			status   string
			occupied bool
			occ      Occupancy
		)
		if err := rows.Scan(&room.ID, &room.Name, &status, &occupied,
			&occ.SessionID, &occ.PatientID, &occ.PatientName,
			&occ.ChartNumber, &occ.DoctorName, &occ.InTime,
			&room.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		room.Status = RoomStatus(status)
		if occupied {
			occ.InTime = occ.InTime.UTC()
			room.Occupancy = &occ
		}
		room.Items = []SessionItem{}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	return rooms, nil
}

// UpdateRoom writes the patched columns and, when the patch carries items,
// replaces the room's session items in one transaction.
func (r *repoPG) UpdateRoom(ctx context.Context, roomID int64, patch RoomPatch) error {
	if patch.Occupancy != nil && patch.ClearOccupancy {
		return invalidf("patch both sets and clears occupancy")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return invalidf("unknown room status %q", *patch.Status)
	}
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.Conn(ctx, r.pool)

		sql, args := roomUpdateSQL(roomID, patch)
		var sessionID string
		if err := q.QueryRow(ctx, sql, args...).Scan(&sessionID); err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("update room %d: %w", roomID, err)
			}
			if patch.SessionID != "" {
				return fmt.Errorf("%w: room %d no longer holds session %s", ErrStaleSession, roomID, patch.SessionID)
			}
			return notFoundf("room %d", roomID)
		}
		if !patch.SetItems {
			return nil
		}
		if sessionID == "" {
			// Items belong to a session; a freed room keeps none.
			if len(patch.Items) > 0 {
				return fmt.Errorf("%w: room %d has no session", ErrStaleSession, roomID)
			}
			return nil
		}
		return replaceItems(ctx, q, roomID, sessionID, patch.Items)
	})
}

func roomUpdateSQL(roomID int64, patch RoomPatch) (string, []interface{}) {
	sets := []string{}
	args := []interface{}{roomID}
	set := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Name != nil {
		set("name", *patch.Name)
	}
	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	switch {
	case patch.Occupancy != nil:
		o := patch.Occupancy
		set("session_id", o.SessionID)
		set("patient_id", o.PatientID)
		set("patient_name", o.PatientName)
		set("chart_number", o.ChartNumber)
		set("doctor_name", o.DoctorName)
		set("in_time", o.InTime)
	case patch.ClearOccupancy:
		sets = append(sets, clearOccupancySQL)
	}
	sets = append(sets, "updated_at = NOW()")
	where := "id = $1"
	if patch.SessionID != "" {
		args = append(args, patch.SessionID)
		where += fmt.Sprintf(" AND session_id = $%d", len(args))
	}
	return `UPDATE treatment_rooms SET ` + strings.Join(sets, ", ") +
		` WHERE ` + where + ` RETURNING COALESCE(session_id, '')`, args
}

const clearOccupancySQL = `session_id = NULL, patient_id = NULL, patient_name = NULL,
	chart_number = NULL, doctor_name = NULL, in_time = NULL`

func replaceItems(ctx context.Context, q db.Querier, roomID int64, sessionID string, items []SessionItem) error {
	keep := make([]string, len(items))
	for i, it := range items {
		keep[i] = it.ID
	}
	if _, err := q.Exec(ctx,
		`DELETE FROM session_treatments WHERE room_id = $1 AND NOT (id = ANY($2))`,
		roomID, keep,
	); err != nil {
		return fmt.Errorf("delete dropped treatments of room %d: %w", roomID, err)
	}

	for pos, it := range items {
		var start *time.Time
		if it.Status == ItemRunning && it.StartTime != nil {
			st := it.StartTime.UTC()
			start = &st
		}
		if _, err := q.Exec(ctx, `
			INSERT INTO session_treatments (
				id, room_id, session_id, name, duration_minutes, status,
				start_time, elapsed_seconds, memo, position
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (id) DO UPDATE SET
				room_id = EXCLUDED.room_id, session_id = EXCLUDED.session_id,
				name = EXCLUDED.name, duration_minutes = EXCLUDED.duration_minutes,
				status = EXCLUDED.status, start_time = EXCLUDED.start_time,
				elapsed_seconds = EXCLUDED.elapsed_seconds, memo = EXCLUDED.memo,
				position = EXCLUDED.position, updated_at = NOW()`,
			it.ID, roomID, sessionID, it.Name, it.DurationMinutes, string(it.Status),
			start, it.ElapsedSeconds, it.Memo, pos,
		); err != nil {
			return fmt.Errorf("upsert treatment %s: %w", it.ID, err)
		}
	}
	return nil
}

func (r *repoPG) ClearRoomSession(ctx context.Context, roomID int64) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.Conn(ctx, r.pool)
		if _, err := q.Exec(ctx, `DELETE FROM session_treatments WHERE room_id = $1`, roomID); err != nil {
			return fmt.Errorf("delete treatments of room %d: %w", roomID, err)
		}
		tag, err := q.Exec(ctx, `UPDATE treatment_rooms SET status = 'available', `+
			clearOccupancySQL+`, updated_at = NOW() WHERE id = $1`, roomID)
		if err != nil {
			return fmt.Errorf("reset room %d: %w", roomID, err)
		}
		if tag.RowsAffected() == 0 {
			return notFoundf("room %d", roomID)
		}
		return nil
	})
}

type changePayload struct {
	Op     string `json:"op"`
	Table  string `json:"table"`
	RoomID int64  `json:"room_id"`
}

func parseChange(payload string) (ChangeKind, []int64, error) {
	var p changePayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return "", nil, fmt.Errorf("decode change payload: %w", err)
	}
	kind := ChangeKind(strings.ToUpper(p.Op))
	switch kind {
	case ChangeInsert, ChangeUpdate, ChangeDelete:
	default:
		return "", nil, fmt.Errorf("unknown change op %q", p.Op)
	}
	var ids []int64
	if p.RoomID != 0 {
		ids = []int64{p.RoomID}
	}
	return kind, ids, nil
}

// SubscribeRoomChanges listens on ChangeChannel in the background. A
// reconnect is reported as an UPDATE with no room ids since changes may
// have been missed.
func (r *repoPG) SubscribeRoomChanges(ctx context.Context, fn func(kind ChangeKind, roomIDs []int64)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	if r.listener == nil {
		return cancel, nil
	}
	go func() {
		_ = r.listener.Listen(ctx, ChangeChannel, func(payload string) {
			kind, ids, err := parseChange(payload)
			if err != nil {
				// Still a change; refetch everything.
				kind, ids = ChangeUpdate, nil
			}
			fn(kind, ids)
		}, func() {
			fn(ChangeUpdate, nil)
		})
	}()
	return cancel, nil
}

func (r *repoPG) CreateRoom(ctx context.Context, name string) (*Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidf("room name is required")
	}
	room := &Room{Name: name, Status: RoomAvailable, Items: []SessionItem{}}
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO treatment_rooms (name, status) VALUES ($1, $2) RETURNING id, updated_at`,
		name, string(RoomAvailable),
	).Scan(&room.ID, &room.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return room, nil
}

func (r *repoPG) RenameRoom(ctx context.Context, roomID int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalidf("room name is required")
	}
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE treatment_rooms SET name = $2, updated_at = NOW() WHERE id = $1`, roomID, name)
	if err != nil {
		return fmt.Errorf("rename room %d: %w", roomID, err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundf("room %d", roomID)
	}
	return nil
}

func (r *repoPG) DeleteRoom(ctx context.Context, roomID int64) error {
	q := db.Conn(ctx, r.pool)
	tag, err := q.Exec(ctx,
		`DELETE FROM treatment_rooms WHERE id = $1 AND status = $2`, roomID, string(RoomAvailable))
	if err != nil {
		return fmt.Errorf("delete room %d: %w", roomID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var status string
	err = q.QueryRow(ctx, `SELECT status FROM treatment_rooms WHERE id = $1`, roomID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFoundf("room %d", roomID)
		}
		return fmt.Errorf("check room %d: %w", roomID, err)
	}
	return invalidf("room %d is %s, only an available room can be removed", roomID, status)
}
