// Package staff keeps the clinic's personnel records: medical staff who see
// patients, and everyone else.
package staff

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrValidation = errors.New("invalid staff record")
	ErrNotFound   = errors.New("staff member not found")
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}

const (
	StatusActive  = "active"
	StatusOnLeave = "on_leave"
	StatusRetired = "retired"
)

var validStatuses = map[string]bool{StatusActive: true, StatusOnLeave: true, StatusRetired: true}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Profile is shared by both kinds of personnel. Dates are YYYY-MM-DD.
type Profile struct {
	Name        string          `json:"name"`
	DOB         string          `json:"dob,omitempty"`
	Gender      string          `json:"gender,omitempty"`
	HireDate    string          `json:"hire_date,omitempty"`
	FireDate    string          `json:"fire_date,omitempty"`
	Status      string          `json:"status"`
	Permissions map[string]bool `json:"permissions"`
}

func (p *Profile) validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return invalidf("name is required")
	}
	for field, v := range map[string]string{"dob": p.DOB, "hire_date": p.HireDate, "fire_date": p.FireDate} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, v); err != nil {
			return invalidf("%s must be YYYY-MM-DD, got %q", field, v)
		}
	}
	if p.HireDate != "" && p.FireDate != "" && p.FireDate < p.HireDate {
		return invalidf("fire_date %s is before hire_date %s", p.FireDate, p.HireDate)
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	if !validStatuses[p.Status] {
		return invalidf("unknown status %q", p.Status)
	}
	if p.Permissions == nil {
		p.Permissions = map[string]bool{}
	}
	return nil
}

// WorkPattern is one weekly working window. DayOfWeek runs 0 (Sunday) to 6.
type WorkPattern struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// MedicalStaff is a doctor or therapist who treats patients.
type MedicalStaff struct {
	ID int64 `json:"id"`
	Profile
	WorkPatterns     []WorkPattern `json:"work_patterns"`
	ConsultationRoom string        `json:"consultation_room,omitempty"`
}

func (m *MedicalStaff) Validate() error {
	if err := m.Profile.validate(); err != nil {
		return err
	}
	if m.WorkPatterns == nil {
		m.WorkPatterns = []WorkPattern{}
	}
	for i, wp := range m.WorkPatterns {
		if wp.DayOfWeek < 0 || wp.DayOfWeek > 6 {
			return invalidf("work pattern %d: day_of_week must be 0-6, got %d", i, wp.DayOfWeek)
		}
		start, err := time.Parse(timeLayout, wp.StartTime)
		if err != nil {
			return invalidf("work pattern %d: start_time must be HH:MM, got %q", i, wp.StartTime)
		}
		end, err := time.Parse(timeLayout, wp.EndTime)
		if err != nil {
			return invalidf("work pattern %d: end_time must be HH:MM, got %q", i, wp.EndTime)
		}
		if !end.After(start) {
			return invalidf("work pattern %d ends before it starts", i)
		}
	}
	m.ConsultationRoom = strings.TrimSpace(m.ConsultationRoom)
	return nil
}

// WorksOn reports whether any pattern covers the weekday.
func (m *MedicalStaff) WorksOn(day time.Weekday) bool {
	for _, wp := range m.WorkPatterns {
		if wp.DayOfWeek == int(day) {
			return true
		}
	}
	return false
}

// Staff is non-medical personnel.
type Staff struct {
	ID int64 `json:"id"`
	Profile
	Rank       string `json:"rank,omitempty"`
	Department string `json:"department,omitempty"`
}

func (s *Staff) Validate() error {
	if err := s.Profile.validate(); err != nil {
		return err
	}
	s.Rank = strings.TrimSpace(s.Rank)
	s.Department = strings.TrimSpace(s.Department)
	return nil
}
