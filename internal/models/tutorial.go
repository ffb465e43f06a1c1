package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eventportal/backend/pkg/apperror"
)

// Tutorial is a scheduled session within an event, with its own seats and time window.
type Tutorial struct {
	ID          uuid.UUID      `json:"id"`
	EventID     uuid.UUID      `json:"event"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Location    string         `json:"location,omitempty"`
	StartAt     time.Time      `json:"start_datetime"`
	EndAt       time.Time      `json:"end_datetime"`
	Duration    *time.Duration `json:"-"`
	Vacancies   int            `json:"vacancies"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// HasStarted reports whether now is at or past the tutorial start.
func (t *Tutorial) HasStarted(now time.Time) bool {
	return !now.Before(t.StartAt)
}

// Overlaps reports whether the half-open intervals [StartAt, EndAt) of t and o intersect.
// Back-to-back tutorials do not overlap.
func (t *Tutorial) Overlaps(o *Tutorial) bool {
	return o.StartAt.Before(t.EndAt) && o.EndAt.After(t.StartAt)
}

// DurationHours is the fixed duration in whole hours, 0 when unset.
func (t *Tutorial) DurationHours() int {
	if t.Duration == nil {
		return 0
	}
	return int(*t.Duration / time.Second / 3600)
}

// TutorialSummary is a tutorial with its public seat count and instructors.
type TutorialSummary struct {
	Tutorial
	DurationSeconds *int64       `json:"duration,omitempty"`
	Subscriptions   int          `json:"subscriptions"`
	Instructors     []Instructor `json:"instructors"`
}

// HasSlotsAvailable reports whether confirmed registrations are below vacancies.
func (s *TutorialSummary) HasSlotsAvailable() bool {
	return s.Subscriptions < s.Vacancies
}

var (
	// ErrInvalidDates is returned when a start is not strictly before its end.
	ErrInvalidDates = apperror.Validation(apperror.CodeInvalidDates, "start must be before end")
	// ErrInvalidVacancies is returned when vacancies is below one.
	ErrInvalidVacancies = apperror.Validation(apperror.CodeInvalidVacancies, "vacancies must be at least 1")
	// ErrTitleRequired is returned when a title is blank.
	ErrTitleRequired = apperror.Validation(apperror.CodeTitleRequired, "title is required")
)

// Normalize validates t before it is saved and applies the fixed duration, if any, to EndAt.
// The supplied end is checked first, so a duration never repairs an inverted interval.
func (t *Tutorial) Normalize() error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrTitleRequired
	}
	if t.Vacancies < 1 {
		return ErrInvalidVacancies
	}
	if !t.StartAt.Before(t.EndAt) {
		return ErrInvalidDates
	}
	if t.Duration != nil {
		if *t.Duration <= 0 {
			return ErrInvalidDates
		}
		t.EndAt = t.StartAt.Add(*t.Duration)
	}
	return nil
}
