package patient

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrValidation = errors.New("invalid patient")
	ErrNotFound   = errors.New("patient not found")
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}

// Patient is a registered patient. Dates without a time of day are kept as
// YYYY-MM-DD strings.
type Patient struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	ChartNumber      string     `json:"chart_number"`
	DOB              string     `json:"dob,omitempty"`
	Gender           string     `json:"gender,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	Address          string     `json:"address,omitempty"`
	ReferralPath     string     `json:"referral_path,omitempty"`
	RegistrationDate string     `json:"registration_date"`
	DeletionDate     *time.Time `json:"deletion_date,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Deleted reports whether the patient is soft deleted.
func (p *Patient) Deleted() bool { return p.DeletionDate != nil }

const dateLayout = "2006-01-02"

// Validate normalizes the editable fields and rejects a patient that cannot
// be stored.
func (p *Patient) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	p.ChartNumber = strings.TrimSpace(p.ChartNumber)
	if p.Name == "" {
		return invalidf("name is required")
	}
	for field, v := range map[string]string{"dob": p.DOB, "registration_date": p.RegistrationDate} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, v); err != nil {
			return invalidf("%s must be YYYY-MM-DD, got %q", field, v)
		}
	}
	return nil
}

// DefaultTreatment is one entry of a patient's usual treatment plan.
type DefaultTreatment struct {
	Name     string `json:"name"`
	Duration int    `json:"duration"`
	Memo     string `json:"memo,omitempty"`
}

func validateDefaults(list []DefaultTreatment) error {
	for i := range list {
		list[i].Name = strings.TrimSpace(list[i].Name)
		if list[i].Name == "" {
			return invalidf("default treatment %d has no name", i)
		}
		if list[i].Duration <= 0 {
			return invalidf("default treatment %q needs a positive duration", list[i].Name)
		}
	}
	return nil
}
