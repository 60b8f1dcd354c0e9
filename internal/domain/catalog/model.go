package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/clinicdesk/frontdesk/internal/domain/treatment"
)

var (
	ErrValidation = errors.New("invalid treatment item")
	ErrNotFound   = errors.New("treatment item not found")
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}

// Item is one entry of the clinic's treatment menu.
type Item struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	DefaultDuration int    `json:"default_duration"`
	DisplayOrder    int    `json:"display_order"`
}

func (it *Item) Validate() error {
	it.Name = strings.TrimSpace(it.Name)
	if it.Name == "" {
		return invalidf("name is required")
	}
	if it.DefaultDuration <= 0 {
		return invalidf("default_duration must be positive, got %d", it.DefaultDuration)
	}
	return nil
}

// Order moves one item to a display position.
type Order struct {
	ID           int64 `json:"id"`
	DisplayOrder int   `json:"display_order"`
}

// UncoveredCategory groups treatments that insurance does not cover. The
// whole set is replaced at once.
type UncoveredCategory struct {
	Name  string   `json:"category_name"`
	Items []string `json:"items"`
}

func validateUncovered(list []UncoveredCategory) error {
	seen := make(map[string]bool, len(list))
	for i := range list {
		c := &list[i]
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return invalidf("category %d has no name", i)
		}
		if seen[c.Name] {
			return invalidf("category %q listed twice", c.Name)
		}
		seen[c.Name] = true
		if c.Items == nil {
			c.Items = []string{}
		}
	}
	return nil
}

// FallbackBasic seeds a session when neither the patient nor the catalog
// has anything to offer.
var FallbackBasic = []treatment.TreatmentTemplate{
	{Name: "Hot pack", DurationMinutes: 10},
	{Name: "Electrotherapy", DurationMinutes: 15},
	{Name: "Ultrasound", DurationMinutes: 5},
}
