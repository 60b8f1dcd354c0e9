package acting

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestRepo_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	a, b := uuid.New(), uuid.New()
	mock.ExpectQuery("FROM acting_queue_items").
		WithArgs("Dr. Han").
		WillReturnRows(pgxmock.NewRows([]string{"id", "doctor", "patient_id", "name", "acting_type", "duration", "source", "memo", "position"}).
			AddRow(a, "Dr. Han", int64(42), "Kim", "Acupuncture", 10, "room", "", 0).
			AddRow(b, "Dr. Han", int64(43), "Park", "Chuna", 15, "", "left side", 1))

	list, err := NewRepo(mock).List(context.Background(), "Dr. Han")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != a || list[1].PatientName != "Park" || list[1].Position != 1 {
		t.Errorf("unexpected queue: %+v", list)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRepo_AddTakesNextPosition(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs("Dr. Han").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("INSERT INTO acting_queue_items").
		WithArgs(pgxmock.AnyArg(), "Dr. Han", int64(42), "Acupuncture", 10, "room", "").
		WillReturnRows(pgxmock.NewRows([]string{"position"}).AddRow(3))
	mock.ExpectCommit()

	a := &Acting{Doctor: "Dr. Han", PatientID: 42, Type: "Acupuncture", Duration: 10, Source: "room"}
	if err := NewRepo(mock).Add(context.Background(), a); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if a.ID == uuid.Nil || a.Position != 3 {
		t.Errorf("unexpected acting: %+v", a)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRepo_UpdateNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("UPDATE acting_queue_items").
		WithArgs(id, "Chuna", 20, "").
		WillReturnRows(pgxmock.NewRows([]string{"doctor", "patient_id", "source", "position"}))

	err = NewRepo(mock).Update(context.Background(), &Acting{ID: id, Type: "Chuna", Duration: 20})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRepo_DeleteNoRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("DELETE FROM acting_queue_items").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := NewRepo(mock).Delete(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepo_Reorder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	a, b := uuid.New(), uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE acting_queue_items SET position").
		WithArgs(b, "Dr. Han", 0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE acting_queue_items SET position").
		WithArgs(a, "Dr. Han", 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	if err := NewRepo(mock).Reorder(context.Background(), "Dr. Han", []uuid.UUID{b, a}); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRepo_ReorderForeignIDRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	a, stranger := uuid.New(), uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE acting_queue_items SET position").
		WithArgs(a, "Dr. Han", 0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE acting_queue_items SET position").
		WithArgs(stranger, "Dr. Han", 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err = NewRepo(mock).Reorder(context.Background(), "Dr. Han", []uuid.UUID{a, stranger})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
