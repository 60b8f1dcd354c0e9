// Package waitlist keeps the clinic's treatment waiting list: patients who
// are checked in but not in a room. The list lives in Postgres so every
// terminal sees the same queue.
package waitlist

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation = errors.New("invalid waiting list request")
	ErrNotFound   = errors.New("not found")
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}

type Entry struct {
	PatientID   int64     `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	ChartNumber string    `json:"chart_number,omitempty"`
	AddedAt     time.Time `json:"added_at"`
}
