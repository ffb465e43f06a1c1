package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventportal/backend/internal/models"
)

const seatQueryTimeout = 5 * time.Second

// SeatSource lists an event's tutorials with confirmed counts.
type SeatSource interface {
	ListTutorials(ctx context.Context, eventID uuid.UUID) ([]models.TutorialSummary, error)
}

// SeatCount is the live availability of one tutorial.
type SeatCount struct {
	TutorialID    uuid.UUID `json:"tutorial_id"`
	Subscriptions int       `json:"subscriptions"`
	Vacancies     int       `json:"vacancies"`
	Available     bool      `json:"has_slots_available"`
}

// SeatBoard pushes seat counts to event rooms.
type SeatBoard struct {
	hub    *Hub
	source SeatSource
	logger *zap.Logger
}

// NewSeatBoard creates a seat board.
func NewSeatBoard(hub *Hub, source SeatSource, logger *zap.Logger) *SeatBoard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeatBoard{hub: hub, source: source, logger: logger}
}

// Snapshot returns the current seat counts of eventID.
func (b *SeatBoard) Snapshot(ctx context.Context, eventID uuid.UUID) ([]SeatCount, error) {
	tutorials, err := b.source.ListTutorials(ctx, eventID)
	if err != nil {
		return nil, err
	}
	out := make([]SeatCount, 0, len(tutorials))
	for i := range tutorials {
		t := &tutorials[i]
		out = append(out, SeatCount{
			TutorialID:    t.ID,
			Subscriptions: t.Subscriptions,
			Vacancies:     t.Vacancies,
			Available:     t.HasSlotsAvailable(),
		})
	}
	return out, nil
}

// Publish broadcasts the current seat counts of eventID.
func (b *SeatBoard) Publish(ctx context.Context, eventID uuid.UUID) error {
	seats, err := b.Snapshot(ctx, eventID)
	if err != nil {
		return err
	}
	b.hub.Broadcast(eventID, EventSeats, seats)
	return nil
}

// SeatsChanged refreshes the room of eventID in the background. It has the shape of a
// registration seat listener and never blocks the caller.
func (b *SeatBoard) SeatsChanged(eventID, tutorialID uuid.UUID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), seatQueryTimeout)
		defer cancel()
		if err := b.Publish(ctx, eventID); err != nil {
			b.logger.Warn("publish seats failed", zap.Error(err),
				zap.String("event_id", eventID.String()), zap.String("tutorial_id", tutorialID.String()))
		}
	}()
}
