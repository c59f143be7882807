package card

import (
	"sort"
	"strings"
	"time"

	"github.com/zulandar/boardcore/internal/apperr"
	"github.com/zulandar/boardcore/internal/models"
)

const maxTitleLen = 255

var validStatuses = map[string]bool{
	models.StatusTodo:       true,
	models.StatusInProgress: true,
	models.StatusReview:     true,
	models.StatusDone:       true,
}

var validPriorities = map[string]bool{
	models.PriorityLow:    true,
	models.PriorityMedium: true,
	models.PriorityHigh:   true,
	models.PriorityUrgent: true,
}

// CreateFields holds the caller-supplied fields of a new card.
type CreateFields struct {
	Title       string
	Description string
	Status      string
	Priority    string
	StartDate   *time.Time
	DueDate     *time.Time
	Assignees   []string
	LabelIDs    []string
}

// UpdateFields is a partial update. Nil fields are left unchanged.
type UpdateFields struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	Progress    *int
	StartDate   *time.Time
	DueDate     *time.Time
	Assignees   *[]string
	LabelIDs    *[]string

	// ClearStartDate and ClearDueDate unset the date. They cannot be
	// combined with a new value for the same date.
	ClearStartDate bool
	ClearDueDate   bool

	// ListID moves the card to another list of the same board.
	ListID *string
	// Position reorders the card within its (destination) list. Values
	// past the end are clamped; nil with a list change appends.
	Position *int
	// Dependencies replaces the card's dependency set.
	Dependencies *[]string
}

// IsZero reports whether f changes nothing.
func (f UpdateFields) IsZero() bool {
	return f.Title == nil && f.Description == nil && f.Status == nil &&
		f.Priority == nil && f.Progress == nil && f.StartDate == nil &&
		f.DueDate == nil && f.Assignees == nil && f.LabelIDs == nil &&
		!f.ClearStartDate && !f.ClearDueDate &&
		f.ListID == nil && f.Position == nil && f.Dependencies == nil
}

func (f *CreateFields) validate() error {
	f.Title = strings.TrimSpace(f.Title)
	if err := validateTitle(f.Title); err != nil {
		return err
	}
	if f.Status == "" {
		f.Status = models.StatusTodo
	}
	if !validStatuses[f.Status] {
		return apperr.Validationf("unknown status %q", f.Status)
	}
	if f.Priority == "" {
		f.Priority = models.PriorityMedium
	}
	if !validPriorities[f.Priority] {
		return apperr.Validationf("unknown priority %q", f.Priority)
	}
	return validateDates(f.StartDate, f.DueDate)
}

func (f *UpdateFields) validate() error {
	if f.IsZero() {
		return apperr.Validationf("no fields to update")
	}
	if f.Title != nil {
		t := strings.TrimSpace(*f.Title)
		if err := validateTitle(t); err != nil {
			return err
		}
		f.Title = &t
	}
	if f.Status != nil && !validStatuses[*f.Status] {
		return apperr.Validationf("unknown status %q", *f.Status)
	}
	if f.Priority != nil && !validPriorities[*f.Priority] {
		return apperr.Validationf("unknown priority %q", *f.Priority)
	}
	if f.ClearStartDate && f.StartDate != nil {
		return apperr.Validationf("start date both set and cleared")
	}
	if f.ClearDueDate && f.DueDate != nil {
		return apperr.Validationf("due date both set and cleared")
	}
	if f.ListID != nil && *f.ListID == "" {
		return apperr.Validationf("list id must not be empty")
	}
	if f.Position != nil && *f.Position < 0 {
		return apperr.Validationf("position must not be negative")
	}
	return nil
}

func validateTitle(t string) error {
	if t == "" {
		return apperr.Validationf("title is required")
	}
	if len(t) > maxTitleLen {
		return apperr.Validationf("title longer than %d bytes", maxTitleLen)
	}
	return nil
}

func validateDates(start, due *time.Time) error {
	if start != nil && due != nil && due.Before(*start) {
		return apperr.Validationf("due date %s is before start date %s",
			due.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return nil
}

func validateProgress(cardID string, current, next int) error {
	if next < 0 || next > 100 || next < current {
		return apperr.InvalidProgress(cardID, current, next)
	}
	return nil
}

// normalizeIDs drops blanks and duplicates and sorts the result.
func normalizeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
