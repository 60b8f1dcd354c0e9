// Package acting keeps each doctor's acting queue: the hands-on procedures
// waiting for that doctor, in the order the doctor will do them.
package acting

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrValidation = errors.New("invalid acting")
	ErrNotFound   = errors.New("acting not found")
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}

// Acting is one queued procedure. Position is zero-based within the doctor's
// queue.
type Acting struct {
	ID          uuid.UUID `json:"id"`
	Doctor      string    `json:"doctor"`
	PatientID   int64     `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	Type        string    `json:"type"`
	Duration    int       `json:"duration"`
	Source      string    `json:"source,omitempty"`
	Memo        string    `json:"memo,omitempty"`
	Position    int       `json:"position"`
}

func (a *Acting) Validate() error {
	a.Doctor = strings.TrimSpace(a.Doctor)
	a.Type = strings.TrimSpace(a.Type)
	if a.Doctor == "" {
		return invalidf("doctor is required")
	}
	if a.PatientID <= 0 {
		return invalidf("patient_id is required")
	}
	if a.Type == "" {
		return invalidf("type is required")
	}
	if a.Duration <= 0 {
		return invalidf("duration must be positive, got %d", a.Duration)
	}
	return nil
}
