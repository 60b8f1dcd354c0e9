// Package reservation books patients into a doctor's day and records which
// treatments each visit is expected to need.
package reservation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrValidation = errors.New("invalid reservation")
	ErrNotFound   = errors.New("reservation not found")
	// ErrConflict means the doctor already has a live reservation at that
	// date and time.
	ErrConflict = errors.New("time slot already booked")
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}

const (
	StatusConfirmed = "confirmed"
	StatusArrived   = "arrived"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

var validStatuses = map[string]bool{
	StatusConfirmed: true, StatusArrived: true, StatusCompleted: true,
	StatusCancelled: true, StatusNoShow: true,
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Reservation is one booked visit. Date is YYYY-MM-DD and Time is HH:MM in
// clinic local time.
type Reservation struct {
	ID          uuid.UUID   `json:"id"`
	PatientID   int64       `json:"patient_id"`
	PatientName string      `json:"patient_name,omitempty"`
	Doctor      string      `json:"doctor"`
	Date        string      `json:"reservation_date"`
	Time        string      `json:"reservation_time"`
	Status      string      `json:"status"`
	Memo        string      `json:"memo,omitempty"`
	Treatments  []Treatment `json:"treatments"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Treatment is a planned treatment. Acting counts the doctor's hands-on
// procedures it involves.
type Treatment struct {
	Name   string `json:"treatment_name"`
	Acting int    `json:"acting"`
}

// Validate normalizes the booking fields. An empty status becomes confirmed.
func (r *Reservation) Validate() error {
	r.Doctor = strings.TrimSpace(r.Doctor)
	if r.PatientID <= 0 {
		return invalidf("patient_id is required")
	}
	if r.Doctor == "" {
		return invalidf("doctor is required")
	}
	if err := validDate("reservation_date", r.Date); err != nil {
		return err
	}
	t, err := time.Parse(timeLayout, r.Time)
	if err != nil {
		return invalidf("reservation_time must be HH:MM, got %q", r.Time)
	}
	r.Time = t.Format(timeLayout)
	if r.Status == "" {
		r.Status = StatusConfirmed
	}
	if !validStatuses[r.Status] {
		return invalidf("unknown status %q", r.Status)
	}
	if r.Treatments == nil {
		r.Treatments = []Treatment{}
	}
	return validateTreatments(r.Treatments)
}

func validateTreatments(list []Treatment) error {
	for i := range list {
		list[i].Name = strings.TrimSpace(list[i].Name)
		if list[i].Name == "" {
			return invalidf("treatment %d has no name", i)
		}
		if list[i].Acting < 0 {
			return invalidf("treatment %q has negative acting count", list[i].Name)
		}
	}
	return nil
}

func validDate(field, v string) error {
	if _, err := time.Parse(dateLayout, v); err != nil {
		return invalidf("%s must be YYYY-MM-DD, got %q", field, v)
	}
	return nil
}
