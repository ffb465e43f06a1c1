package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventportal/backend/internal/models"
	"github.com/eventportal/backend/pkg/apperror"
)

// memBus stands in for Redis pub/sub.
type memBus struct {
	mu        sync.Mutex
	handlers  map[uuid.UUID]map[int]func(string, []byte)
	next      int
	published int
}

func newMemBus() *memBus { return &memBus{handlers: map[uuid.UUID]map[int]func(string, []byte){}} }

func (b *memBus) PublishEventMessage(eventID uuid.UUID, name string, payload []byte) error {
	b.mu.Lock()
	b.published++
	var hs []func(string, []byte)
	for _, h := range b.handlers[eventID] {
		hs = append(hs, h)
	}
	b.mu.Unlock()
	for _, h := range hs {
		h(name, payload)
	}
	return nil
}

func (b *memBus) SubscribeEvent(eventID uuid.UUID, handler func(string, []byte)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[eventID] == nil {
		b.handlers[eventID] = map[int]func(string, []byte){}
	}
	id := b.next
	b.next++
	b.handlers[eventID][id] = handler
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[eventID], id)
	}, nil
}

func (b *memBus) subscribers(eventID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[eventID])
}

func testClient(eventID uuid.UUID) *Client {
	return &Client{ID: uuid.NewString(), EventID: eventID, send: make(chan WSMessage, 8)}
}

func TestHubBroadcastAcrossInstances(t *testing.T) {
	bus := newMemBus()
	a, b := NewHub(nil, bus, bus), NewHub(nil, bus, bus)
	eventID := uuid.New()
	ca, cb := testClient(eventID), testClient(eventID)
	a.Register(ca)
	b.Register(cb)

	a.Broadcast(eventID, EventSeats, []int{1})

	for _, c := range []*Client{ca, cb} {
		select {
		case msg := <-c.send:
			assert.Equal(t, EventSeats, msg.Event)
			assert.JSONEq(t, `[1]`, string(msg.Data))
		default:
			t.Fatal("message not delivered")
		}
		assert.Len(t, c.send, 0, "delivered exactly once")
	}
	assert.Equal(t, 1, bus.published)
}

func TestHubDropsSubscriptionWithLastClient(t *testing.T) {
	bus := newMemBus()
	h := NewHub(nil, bus, bus)
	eventID := uuid.New()
	c1, c2 := testClient(eventID), testClient(eventID)
	h.Register(c1)
	h.Register(c2)
	assert.Equal(t, 2, h.Viewers(eventID))
	assert.Equal(t, 1, bus.subscribers(eventID))

	h.Unregister(c1)
	assert.Equal(t, 1, bus.subscribers(eventID))
	h.Unregister(c2)
	assert.Equal(t, 0, bus.subscribers(eventID))
	assert.Zero(t, h.Viewers(eventID))
	_, open := <-c2.send
	assert.False(t, open)
}

type fakeCatalog struct {
	mu        sync.Mutex
	event     models.Event
	tutorials []models.TutorialSummary
}

func (f *fakeCatalog) GetEventBySlug(_ context.Context, slug string) (*models.Event, error) {
	if slug != f.event.Slug {
		return nil, apperror.NotFound(apperror.CodeEventNotFound, "event not found")
	}
	e := f.event
	return &e, nil
}

func (f *fakeCatalog) ListTutorials(_ context.Context, eventID uuid.UUID) ([]models.TutorialSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if eventID != f.event.ID {
		return nil, nil
	}
	return append([]models.TutorialSummary(nil), f.tutorials...), nil
}

func (f *fakeCatalog) setSubscriptions(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tutorials[0].Subscriptions = n
}

func readSeats(t *testing.T, conn *websocket.Conn) []SeatCount {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, EventSeats, msg.Event)
	var seats []SeatCount
	require.NoError(t, json.Unmarshal(msg.Data, &seats))
	return seats
}

func TestServeWsStreamsSeatCounts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tutorialID := uuid.New()
	catalog := &fakeCatalog{
		event: models.Event{ID: uuid.New(), Slug: "encontro-go"},
		tutorials: []models.TutorialSummary{{
			Tutorial:      models.Tutorial{ID: tutorialID, Vacancies: 2},
			Subscriptions: 1,
		}},
	}
	hub := NewHub(nil, nil, nil)
	board := NewSeatBoard(hub, catalog, nil)
	r := gin.New()
	r.GET("/ws/events/:slug", ServeWs(hub, board, catalog, nil))
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ws/events/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events/encontro-go"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	seats := readSeats(t, conn)
	require.Len(t, seats, 1)
	assert.Equal(t, tutorialID, seats[0].TutorialID)
	assert.True(t, seats[0].Available)

	catalog.setSubscriptions(2)
	board.SeatsChanged(catalog.event.ID, tutorialID)
	seats = readSeats(t, conn)
	assert.Equal(t, 2, seats[0].Subscriptions)
	assert.False(t, seats[0].Available)
}
