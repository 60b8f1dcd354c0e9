package waitlist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// mockRepo mimics the table: active patients can wait once, in arrival order.
type mockRepo struct {
	mu       sync.Mutex
	patients map[int64]string
	entries  []Entry
	now      time.Time
	err      error
}

func newMockRepo(patients map[int64]string) *mockRepo {
	return &mockRepo{patients: patients, now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (m *mockRepo) List(context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]Entry{}, m.entries...), nil
}

func (m *mockRepo) Add(_ context.Context, patientID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	name, ok := m.patients[patientID]
	if !ok {
		return false, notFoundf("patient %d", patientID)
	}
	for _, e := range m.entries {
		if e.PatientID == patientID {
			return false, nil
		}
	}
	m.now = m.now.Add(time.Second)
	m.entries = append(m.entries, Entry{PatientID: patientID, PatientName: name, AddedAt: m.now})
	return true, nil
}

func (m *mockRepo) Remove(_ context.Context, patientID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	for i, e := range m.entries {
		if e.PatientID == patientID {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo(map[int64]string{1: "Lee", 2: "Park", 3: "Kim", 7: "Choi"})
	return NewService(repo, zerolog.Nop()), repo
}

func TestService_OrderAndDedupe(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	for _, id := range []int64{3, 1, 3, 2} {
		if err := svc.Add(ctx, id); err != nil {
			t.Fatalf("Add(%d): %v", id, err)
		}
	}
	got, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 || got[0].PatientID != 3 || got[1].PatientID != 1 || got[2].PatientID != 2 {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestService_RemoveIsQuietWithdrawIsNot(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if err := svc.Remove(ctx, 1); err != nil {
		t.Errorf("Remove of a patient not waiting: %v", err)
	}
	if err := svc.Withdraw(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Withdraw: expected ErrNotFound, got %v", err)
	}
	if err := svc.Add(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := svc.Withdraw(ctx, 1); err != nil {
		t.Errorf("Withdraw: %v", err)
	}
}

func TestService_AddValidation(t *testing.T) {
	svc, _ := newTestService()
	if err := svc.Add(context.Background(), 0); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if err := svc.Add(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_SharedAcrossTerminals(t *testing.T) {
	repo := newMockRepo(map[int64]string{})
	for i := int64(1); i <= 50; i++ {
		repo.patients[i] = "p"
	}
	desk := NewService(repo, zerolog.Nop())
	room := NewService(repo, zerolog.Nop())

	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_ = desk.Add(context.Background(), id)
			if id%2 == 0 {
				_ = room.Remove(context.Background(), id)
			}
		}(i)
	}
	wg.Wait()
	got, _ := room.List(context.Background())
	if len(got) != 25 {
		t.Errorf("expected 25 waiting, got %d", len(got))
	}
}

func doRequest(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler(t *testing.T) {
	svc, _ := newTestService()
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(e, http.MethodPost, "/api/v1/waitlist", `{"patient_id":7}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("add: expected 200, got %d", rec.Code)
	}
	var entries []Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].PatientID != 7 || entries[0].PatientName != "Choi" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	if rec := doRequest(e, http.MethodPost, "/api/v1/waitlist", `{}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing patient: expected 422, got %d", rec.Code)
	}
	if rec := doRequest(e, http.MethodPost, "/api/v1/waitlist", `{"patient_id":99}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown patient: expected 404, got %d", rec.Code)
	}
	if rec := doRequest(e, http.MethodDelete, "/api/v1/waitlist/7", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("remove: expected 204, got %d", rec.Code)
	}
	if rec := doRequest(e, http.MethodDelete, "/api/v1/waitlist/7", ""); rec.Code != http.StatusNotFound {
		t.Errorf("remove missing: expected 404, got %d", rec.Code)
	}
	if rec := doRequest(e, http.MethodDelete, "/api/v1/waitlist/x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: expected 400, got %d", rec.Code)
	}
}

func TestHandler_StoreDown(t *testing.T) {
	svc, repo := newTestService()
	repo.err = errors.New("connection refused")
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))
	if rec := doRequest(e, http.MethodGet, "/api/v1/waitlist", ""); rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}
