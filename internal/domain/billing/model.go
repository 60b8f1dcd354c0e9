package billing

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrValidation = errors.New("invalid payment")
	ErrNotFound   = errors.New("not found")
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}

// Payment is a bill for one finished session. It is created pending when
// the patient leaves the room and completed at the desk.
type Payment struct {
	ID              int64         `json:"id"`
	PatientID       int64         `json:"patient_id"`
	PatientName     string        `json:"patient_name,omitempty"`
	ChartNumber     string        `json:"chart_number,omitempty"`
	TotalAmount     int64         `json:"total_amount"`
	PaidAmount      int64         `json:"paid_amount"`
	RemainingAmount int64         `json:"remaining_amount"`
	Methods         []MethodShare `json:"payment_methods"`
	TreatmentItems  []string      `json:"treatment_items"`
	Completed       bool          `json:"is_completed"`
	PaymentDate     time.Time     `json:"payment_date"`
}

// MethodShare is the part of a payment settled with one method.
type MethodShare struct {
	Method string `json:"method"`
	Amount int64  `json:"amount"`
}

// Settlement closes a pending payment.
type Settlement struct {
	TotalAmount int64         `json:"total_amount"`
	Methods     []MethodShare `json:"payment_methods"`
	// TreatmentItems replaces the billed items when non-nil.
	TreatmentItems []string `json:"treatment_items,omitempty"`
}

// Paid sums the method shares.
func (s Settlement) Paid() int64 {
	var n int64
	for _, m := range s.Methods {
		n += m.Amount
	}
	return n
}

func (s *Settlement) Validate() error {
	if s.TotalAmount < 0 {
		return invalidf("total_amount must not be negative")
	}
	for i := range s.Methods {
		s.Methods[i].Method = strings.TrimSpace(s.Methods[i].Method)
		if s.Methods[i].Method == "" {
			return invalidf("payment method %d has no name", i)
		}
		if s.Methods[i].Amount < 0 {
			return invalidf("payment method %q has a negative amount", s.Methods[i].Method)
		}
	}
	if s.Paid() > s.TotalAmount {
		return invalidf("paid %d exceeds total %d", s.Paid(), s.TotalAmount)
	}
	return nil
}
