package registrations

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eventportal/backend/internal/models"
)

// memStore is an in-memory Store. InTx is fully serialized and rolls back on error.
type memStore struct {
	mu sync.Mutex
	memState
}

type memState struct {
	events    map[uuid.UUID]models.Event
	tutorials map[uuid.UUID]models.Tutorial
	attendees map[uuid.UUID]models.Attendee
	regs      map[uuid.UUID]models.Registration
	signers   map[uuid.UUID][]models.OrderedSigner
	emails    []models.EmailLog
}

func newMemStore() *memStore {
	return &memStore{memState: memState{
		events:    map[uuid.UUID]models.Event{},
		tutorials: map[uuid.UUID]models.Tutorial{},
		attendees: map[uuid.UUID]models.Attendee{},
		regs:      map[uuid.UUID]models.Registration{},
		signers:   map[uuid.UUID][]models.OrderedSigner{},
	}}
}

func (s memState) clone() memState {
	return memState{
		events:    maps.Clone(s.events),
		tutorials: maps.Clone(s.tutorials),
		attendees: maps.Clone(s.attendees),
		regs:      maps.Clone(s.regs),
		signers:   maps.Clone(s.signers),
		emails:    slices.Clone(s.emails),
	}
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := m.memState.clone()
	if err := fn(ctx, &memTx{s: &m.memState}); err != nil {
		m.memState = saved
		return err
	}
	return nil
}

func (m *memStore) addEvent(e models.Event) models.Event {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	m.events[e.ID] = e
	return e
}

func (m *memStore) addTutorial(t models.Tutorial) models.Tutorial {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	m.tutorials[t.ID] = t
	return t
}

func (m *memStore) addAttendee(a models.Attendee) models.Attendee {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	m.attendees[a.ID] = a
	return a
}

func (m *memStore) addRegistration(r models.Registration) models.Registration {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Token == uuid.Nil {
		r.Token = uuid.New()
	}
	if r.Status == "" {
		r.Status = models.StatusPending
	}
	m.regs[r.ID] = r
	return r
}

func (m *memStore) registration(id uuid.UUID) models.Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[id]
}

func (m *memStore) count(filter func(models.Registration) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.regs {
		if filter(r) {
			n++
		}
	}
	return n
}

func (m *memStore) emailLogs() []models.EmailLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.emails)
}

type memTx struct {
	s *memState
}

func (t *memTx) LockTutorial(ctx context.Context, id uuid.UUID) (*models.Tutorial, error) {
	return t.GetTutorial(ctx, id)
}

func (t *memTx) GetTutorial(_ context.Context, id uuid.UUID) (*models.Tutorial, error) {
	tut, ok := t.s.tutorials[id]
	if !ok {
		return nil, ErrTutorialNotFound
	}
	return &tut, nil
}

func (t *memTx) ListEventSigners(_ context.Context, eventID uuid.UUID) ([]models.OrderedSigner, error) {
	return slices.Clone(t.s.signers[eventID]), nil
}

func (t *memTx) GetAttendeeByCPF(_ context.Context, cpf string) (*models.Attendee, error) {
	for _, a := range t.s.attendees {
		if a.CPF == cpf {
			return &a, nil
		}
	}
	return nil, ErrAttendeeNotFound
}

func (t *memTx) SaveAttendee(_ context.Context, a *models.Attendee) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	t.s.attendees[a.ID] = *a
	return nil
}

func (t *memTx) FindRegistration(_ context.Context, tutorialID, attendeeID uuid.UUID) (*models.Registration, error) {
	for _, r := range t.s.regs {
		if r.TutorialID == tutorialID && r.AttendeeID == attendeeID {
			return &r, nil
		}
	}
	return nil, ErrNotSubscribed
}

func (t *memTx) CountConfirmed(_ context.Context, tutorialID uuid.UUID) (int, error) {
	n := 0
	for _, r := range t.s.regs {
		if r.TutorialID == tutorialID && r.Status.Confirmed() {
			n++
		}
	}
	return n, nil
}

func (t *memTx) HasOverlap(_ context.Context, attendeeID uuid.UUID, start, end time.Time) (bool, error) {
	window := models.Tutorial{StartAt: start, EndAt: end}
	for _, r := range t.s.regs {
		if r.AttendeeID != attendeeID {
			continue
		}
		other := t.s.tutorials[r.TutorialID]
		if window.Overlaps(&other) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertRegistration(_ context.Context, r *models.Registration) error {
	for _, existing := range t.s.regs {
		if existing.TutorialID == r.TutorialID && existing.AttendeeID == r.AttendeeID {
			return ErrAlreadySubscribed
		}
	}
	r.ID = uuid.New()
	r.UpdatedAt = r.RegisteredAt
	t.s.regs[r.ID] = *r
	return nil
}

func (t *memTx) DeleteRegistration(_ context.Context, id uuid.UUID) error {
	if _, ok := t.s.regs[id]; !ok {
		return ErrRegistrationNotFound
	}
	delete(t.s.regs, id)
	return nil
}

func (t *memTx) detail(r models.Registration) models.RegistrationDetail {
	tut := t.s.tutorials[r.TutorialID]
	return models.RegistrationDetail{
		Registration: r,
		Attendee:     t.s.attendees[r.AttendeeID],
		Tutorial:     tut,
		Event:        t.s.events[tut.EventID],
	}
}

func (t *memTx) GetRegistrationDetail(_ context.Context, id uuid.UUID) (*models.RegistrationDetail, error) {
	r, ok := t.s.regs[id]
	if !ok {
		return nil, ErrRegistrationNotFound
	}
	d := t.detail(r)
	return &d, nil
}

func (t *memTx) GetRegistrationDetailByToken(_ context.Context, token uuid.UUID) (*models.RegistrationDetail, error) {
	for _, r := range t.s.regs {
		if r.Token == token {
			d := t.detail(r)
			return &d, nil
		}
	}
	return nil, ErrRegistrationNotFound
}

func (t *memTx) ListRegistrationsByTutorial(_ context.Context, tutorialID uuid.UUID) ([]models.RegistrationDetail, error) {
	var list []models.RegistrationDetail
	for _, r := range t.s.regs {
		if r.TutorialID == tutorialID {
			list = append(list, t.detail(r))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].RegisteredAt.Before(list[j].RegisteredAt) })
	return list, nil
}

func (t *memTx) ListRegistrationsByEvent(_ context.Context, eventID uuid.UUID) ([]models.RegistrationDetail, error) {
	var list []models.RegistrationDetail
	for _, r := range t.s.regs {
		d := t.detail(r)
		if d.Event.ID == eventID {
			list = append(list, d)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Tutorial.Title != list[j].Tutorial.Title {
			return list[i].Tutorial.Title < list[j].Tutorial.Title
		}
		return list[i].Attendee.FullName < list[j].Attendee.FullName
	})
	return list, nil
}

func (t *memTx) UpdateStatus(_ context.Context, id uuid.UUID, status models.RegistrationStatus) error {
	r, ok := t.s.regs[id]
	if !ok {
		return ErrRegistrationNotFound
	}
	r.Status = status
	t.s.regs[id] = r
	return nil
}

func (t *memTx) SetCertificate(_ context.Context, id uuid.UUID, key string, status models.RegistrationStatus) error {
	r, ok := t.s.regs[id]
	if !ok {
		return ErrRegistrationNotFound
	}
	r.CertificateKey, r.Status = key, status
	t.s.regs[id] = r
	return nil
}

func (t *memTx) MarkCertificateSent(_ context.Context, id uuid.UUID, at time.Time) error {
	r, ok := t.s.regs[id]
	if !ok {
		return ErrRegistrationNotFound
	}
	r.CertificateSentAt = &at
	t.s.regs[id] = r
	return nil
}

func (t *memTx) InsertEmailLog(_ context.Context, l *models.EmailLog) error {
	l.ID = uuid.New()
	t.s.emails = append(t.s.emails, *l)
	return nil
}
