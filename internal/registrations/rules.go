package registrations

import (
	"time"

	"github.com/eventportal/backend/internal/models"
)

// Snapshot holds the facts the subscription rules are evaluated against.
// It is read inside the same transaction that inserts the registration.
type Snapshot struct {
	Tutorial          models.Tutorial
	AlreadySubscribed bool
	ConfirmedCount    int
	ScheduleConflict  bool
}

// HasSlotsAvailable reports whether confirmed registrations are below vacancies.
// Pending registrations never consume a seat here.
func (s Snapshot) HasSlotsAvailable() bool {
	return s.ConfirmedCount < s.Tutorial.Vacancies
}

// Evaluate applies the subscription rules in order and returns the first violation:
// duplicate, capacity, schedule overlap, already started.
func Evaluate(s Snapshot, now time.Time) error {
	switch {
	case s.AlreadySubscribed:
		return ErrAlreadySubscribed
	case !s.HasSlotsAvailable():
		return ErrNoVacancies
	case s.ScheduleConflict:
		return ErrScheduleConflict
	case s.Tutorial.HasStarted(now):
		return ErrTutorialStarted
	}
	return nil
}
