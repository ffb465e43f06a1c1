package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventportal/backend/internal/models"
	"github.com/eventportal/backend/pkg/queue"
)

type fakeOutbox struct {
	mu       sync.Mutex
	logs     map[uuid.UUID]*models.EmailLog
	released []uuid.UUID
	now      time.Time
}

func newFakeOutbox(logs ...*models.EmailLog) *fakeOutbox {
	o := &fakeOutbox{logs: make(map[uuid.UUID]*models.EmailLog), now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	for _, l := range logs {
		o.logs[l.ID] = l
	}
	return o
}

func (o *fakeOutbox) ClaimPending(_ context.Context, limit int, staleAfter time.Duration) ([]models.EmailLog, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []models.EmailLog
	for _, l := range o.logs {
		if len(out) == limit {
			break
		}
		stale := l.Status == models.EmailLogStatusQueued && (l.QueuedAt == nil || l.QueuedAt.Before(o.now.Add(-staleAfter)))
		if l.Status == models.EmailLogStatusPending || stale {
			at := o.now
			l.Status = models.EmailLogStatusQueued
			l.QueuedAt = &at
			out = append(out, *l)
		}
	}
	return out, nil
}

func (o *fakeOutbox) Release(_ context.Context, id uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.logs[id].Status = models.EmailLogStatusPending
	o.logs[id].QueuedAt = nil
	o.released = append(o.released, id)
	return nil
}

func (o *fakeOutbox) GetByID(_ context.Context, id uuid.UUID) (*models.EmailLog, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.logs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *l
	return &cp, nil
}

func (o *fakeOutbox) MarkSent(_ context.Context, id uuid.UUID, at time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	l := o.logs[id]
	l.Status = models.EmailLogStatusSent
	l.SentAt = &at
	l.Attempts++
	return nil
}

func (o *fakeOutbox) MarkFailed(_ context.Context, id uuid.UUID, errMsg string, final bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	l := o.logs[id]
	at := o.now
	l.Attempts++
	l.ErrorMessage = errMsg
	l.QueuedAt = &at
	if final {
		l.Status = models.EmailLogStatusFailed
	}
	return nil
}

type fakeQueue struct {
	enqueued []queue.EmailPayload
	failFor  map[uuid.UUID]bool
	retried  []*queue.Job
	retryErr error
}

func (q *fakeQueue) EnqueueEmail(_ context.Context, p queue.EmailPayload) error {
	if q.failFor[p.EmailLogID] {
		return errors.New("redis down")
	}
	q.enqueued = append(q.enqueued, p)
	return nil
}

func (q *fakeQueue) Dequeue(context.Context, string, time.Duration) (*queue.Job, error) {
	return nil, nil
}

func (q *fakeQueue) Retry(_ context.Context, _ string, job *queue.Job) (bool, error) {
	if q.retryErr != nil {
		return false, q.retryErr
	}
	job.Attempt++
	q.retried = append(q.retried, job)
	return job.Attempt >= queue.MaxRetries, nil
}

type fakeMailer struct {
	err  error
	sent []string
}

func (m *fakeMailer) Send(_ context.Context, to, _, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	return nil
}

func pendingLog(to string) *models.EmailLog {
	return &models.EmailLog{
		ID:             uuid.New(),
		EmailType:      models.EmailTypeRegistrationConfirmation,
		RecipientEmail: to,
		Subject:        "Confirmação",
		BodyHTML:       "<p>oi</p>",
		Status:         models.EmailLogStatusPending,
	}
}

func emailJob(t *testing.T, id uuid.UUID) *queue.Job {
	t.Helper()
	body, err := json.Marshal(queue.EmailPayload{EmailLogID: id, EmailType: models.EmailTypeRegistrationConfirmation})
	require.NoError(t, err)
	return &queue.Job{ID: uuid.NewString(), Type: queue.JobTypeEmail, Payload: body}
}

func TestRelayOnceEnqueuesPending(t *testing.T) {
	a, b := pendingLog("a@example.com"), pendingLog("b@example.com")
	sent := pendingLog("c@example.com")
	sent.Status = models.EmailLogStatusSent
	store := newFakeOutbox(a, b, sent)
	q := &fakeQueue{}

	n, err := NewOutboxRelay(store, q, time.Second, 10, time.Minute, nil).RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, q.enqueued, 2)
	assert.Equal(t, models.EmailLogStatusQueued, store.logs[a.ID].Status)
	assert.Equal(t, models.EmailLogStatusSent, store.logs[sent.ID].Status)
}

func TestRelayOnceReleasesOnEnqueueFailure(t *testing.T) {
	a := pendingLog("a@example.com")
	store := newFakeOutbox(a)
	q := &fakeQueue{failFor: map[uuid.UUID]bool{a.ID: true}}

	n, err := NewOutboxRelay(store, q, time.Second, 10, time.Minute, nil).RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []uuid.UUID{a.ID}, store.released)
	assert.Equal(t, models.EmailLogStatusPending, store.logs[a.ID].Status)
}

func TestRelayRunStopsOnCancel(t *testing.T) {
	store := newFakeOutbox()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewOutboxRelay(store, &fakeQueue{}, 10*time.Millisecond, 10, time.Minute, nil).Run(ctx)
	}()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestProcessSendsAndMarks(t *testing.T) {
	l := pendingLog("a@example.com")
	l.Status = models.EmailLogStatusQueued
	store := newFakeOutbox(l)
	mailer := &fakeMailer{}
	p := NewEmailProcessor(store, &fakeQueue{}, mailer, nil)

	require.NoError(t, p.Process(context.Background(), emailJob(t, l.ID)))
	assert.Equal(t, []string{"a@example.com"}, mailer.sent)
	assert.Equal(t, models.EmailLogStatusSent, store.logs[l.ID].Status)
	assert.NotNil(t, store.logs[l.ID].SentAt)
}

func TestProcessSkipsSent(t *testing.T) {
	l := pendingLog("a@example.com")
	l.Status = models.EmailLogStatusSent
	mailer := &fakeMailer{}
	p := NewEmailProcessor(newFakeOutbox(l), &fakeQueue{}, mailer, nil)

	require.NoError(t, p.Process(context.Background(), emailJob(t, l.ID)))
	assert.Empty(t, mailer.sent)
}

func TestProcessRejectsWrongJobType(t *testing.T) {
	p := NewEmailProcessor(newFakeOutbox(), &fakeQueue{}, &fakeMailer{}, nil)
	err := p.Process(context.Background(), &queue.Job{ID: "x", Type: "other", Payload: []byte(`{}`)})
	assert.Error(t, err)
}

func TestHandleRetriesThenFailsFinally(t *testing.T) {
	l := pendingLog("a@example.com")
	l.Status = models.EmailLogStatusQueued
	store := newFakeOutbox(l)
	q := &fakeQueue{}
	p := NewEmailProcessor(store, q, &fakeMailer{err: errors.New("smtp 421")}, nil)
	job := emailJob(t, l.ID)

	for i := 1; i < queue.MaxRetries; i++ {
		assert.True(t, p.handle(context.Background(), job))
		assert.Equal(t, models.EmailLogStatusQueued, store.logs[l.ID].Status)
	}
	assert.True(t, p.handle(context.Background(), job))
	assert.Equal(t, models.EmailLogStatusFailed, store.logs[l.ID].Status)
	assert.Equal(t, queue.MaxRetries, store.logs[l.ID].Attempts)
	assert.Contains(t, store.logs[l.ID].ErrorMessage, "smtp 421")
	assert.Len(t, q.retried, queue.MaxRetries)
}

func TestHandleSuccessDoesNotRetry(t *testing.T) {
	l := pendingLog("a@example.com")
	q := &fakeQueue{}
	p := NewEmailProcessor(newFakeOutbox(l), q, &fakeMailer{}, nil)
	assert.False(t, p.handle(context.Background(), emailJob(t, l.ID)))
	assert.Empty(t, q.retried)
}

func TestRelayReclaimsStaleQueuedRows(t *testing.T) {
	store := newFakeOutbox()
	stale := pendingLog("stale@example.com")
	stale.Status = models.EmailLogStatusQueued
	old := store.now.Add(-2 * time.Minute)
	stale.QueuedAt = &old
	fresh := pendingLog("fresh@example.com")
	fresh.Status = models.EmailLogStatusQueued
	recent := store.now.Add(-10 * time.Second)
	fresh.QueuedAt = &recent
	store.logs[stale.ID], store.logs[fresh.ID] = stale, fresh
	q := &fakeQueue{}

	n, err := NewOutboxRelay(store, q, time.Second, 10, time.Minute, nil).RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, q.enqueued, 1)
	assert.Equal(t, stale.ID, q.enqueued[0].EmailLogID)
	assert.Equal(t, store.now, *store.logs[stale.ID].QueuedAt)
}

func TestLostRetryIsRedeliveredOrResendable(t *testing.T) {
	l := pendingLog("a@example.com")
	store := newFakeOutbox(l)
	q := &fakeQueue{}
	relay := NewOutboxRelay(store, q, time.Second, 10, time.Minute, nil)

	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	q.retryErr = errors.New("redis down")
	p := NewEmailProcessor(store, q, &fakeMailer{err: errors.New("smtp 421")}, nil)
	assert.True(t, p.handle(context.Background(), emailJob(t, l.ID)))
	assert.Equal(t, models.EmailLogStatusFailed, store.logs[l.ID].Status)
	assert.Equal(t, 1, store.logs[l.ID].Attempts)
}

func TestRelayPicksUpRowWhoseJobVanished(t *testing.T) {
	l := pendingLog("a@example.com")
	store := newFakeOutbox(l)
	q := &fakeQueue{}
	relay := NewOutboxRelay(store, q, time.Second, 10, time.Minute, nil)

	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// the job was popped by a worker that died before recording an outcome
	n, err = relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	store.now = store.now.Add(2 * time.Minute)
	n, err = relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, q.enqueued, 2)
}
