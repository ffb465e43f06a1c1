package registrations

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/eventportal/backend/internal/models"
	"github.com/eventportal/backend/internal/notifications"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// makeCPF appends both check digits to a 9-digit base.
func makeCPF(base int) string {
	d := fmt.Sprintf("%09d", base)
	n := make([]int, 0, 11)
	for _, r := range d {
		n = append(n, int(r-'0'))
	}
	for pos := 9; pos <= 10; pos++ {
		sum := 0
		for i := 0; i < pos; i++ {
			sum += n[i] * (pos + 1 - i)
		}
		n = append(n, (sum*10%11)%10)
	}
	out := make([]byte, 11)
	for i, v := range n {
		out[i] = byte('0' + v)
	}
	return string(out)
}

type fixture struct {
	store    *memStore
	svc      *Service
	event    models.Event
	tutorial models.Tutorial
	seats    []uuid.UUID
	seatsMu  sync.Mutex
}

func newFixture(t *testing.T, vacancies int) *fixture {
	t.Helper()
	store := newMemStore()
	f := &fixture{store: store}
	f.event = store.addEvent(models.Event{
		Title:     "Semana de Computação",
		Slug:      "semana-de-computacao",
		StartDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
	})
	f.tutorial = f.addTutorial("Go", 9, 11, vacancies)

	f.svc = NewService(store, notifications.NewComposer("https://portal.example.com", time.UTC), nil)
	f.svc.clock = func() time.Time { return fixedNow }
	f.svc.SetSeatListener(func(_, tutorialID uuid.UUID) {
		f.seatsMu.Lock()
		f.seats = append(f.seats, tutorialID)
		f.seatsMu.Unlock()
	})
	return f
}

// addTutorial adds a tutorial on 2025-03-10 between the given hours.
func (f *fixture) addTutorial(title string, fromHour, toHour, vacancies int) models.Tutorial {
	return f.store.addTutorial(models.Tutorial{
		EventID:   f.event.ID,
		Title:     title,
		Location:  "Sala 1",
		StartAt:   time.Date(2025, 3, 10, fromHour, 0, 0, 0, time.UTC),
		EndAt:     time.Date(2025, 3, 10, toHour, 0, 0, 0, time.UTC),
		Vacancies: vacancies,
	})
}

func (f *fixture) subscribe(t *testing.T, tutorialID uuid.UUID, cpfValue string) *SubscribeResult {
	t.Helper()
	res, err := f.svc.Subscribe(context.Background(), SubscribeInput{
		TutorialID: tutorialID,
		CPF:        cpfValue,
		Name:       "Attendee " + cpfValue,
		Email:      cpfValue + "@example.com",
		Birthday:   "15/08/1999",
	})
	require.NoError(t, err)
	return res
}
