package events

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventportal/backend/internal/models"
	"github.com/eventportal/backend/pkg/storage"
)

type memStore struct {
	mu          sync.Mutex
	events      map[uuid.UUID]*models.Event
	tutorials   map[uuid.UUID]*models.Tutorial
	teaches     map[uuid.UUID][]uuid.UUID
	instructors map[uuid.UUID]*models.Instructor
	signers     map[uuid.UUID]*models.CertificateSigner
	links       map[[2]uuid.UUID]int
	confirmed   map[uuid.UUID]int
}

func newMemStore() *memStore {
	return &memStore{
		events:      map[uuid.UUID]*models.Event{},
		tutorials:   map[uuid.UUID]*models.Tutorial{},
		teaches:     map[uuid.UUID][]uuid.UUID{},
		instructors: map[uuid.UUID]*models.Instructor{},
		signers:     map[uuid.UUID]*models.CertificateSigner{},
		links:       map[[2]uuid.UUID]int{},
		confirmed:   map[uuid.UUID]int{},
	}
}

func (m *memStore) ListEvents(context.Context) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Event
	for _, e := range m.events {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

func (m *memStore) GetEvent(_ context.Context, id uuid.UUID) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) GetEventBySlug(_ context.Context, slug string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.Slug == slug {
			cp := *e
			return &cp, nil
		}
	}
	return nil, ErrEventNotFound
}

func (m *memStore) CreateEvent(_ context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.events {
		if other.Slug == e.Slug {
			return ErrSlugTaken
		}
	}
	e.ID = uuid.New()
	cp := *e
	m.events[e.ID] = &cp
	return nil
}

func (m *memStore) UpdateEvent(_ context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[e.ID]; !ok {
		return ErrEventNotFound
	}
	cp := *e
	m.events[e.ID] = &cp
	return nil
}

func (m *memStore) DeleteEvent(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return ErrEventNotFound
	}
	delete(m.events, id)
	for tid, t := range m.tutorials {
		if t.EventID == id {
			delete(m.tutorials, tid)
		}
	}
	return nil
}

func (m *memStore) SetEventImage(_ context.Context, id uuid.UUID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return ErrEventNotFound
	}
	e.ImageKey = key
	return nil
}

func (m *memStore) SetCertificateTemplate(_ context.Context, id uuid.UUID, markup string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return ErrEventNotFound
	}
	e.CertificateTemplate = markup
	return nil
}

func (m *memStore) ListTutorials(_ context.Context, eventID uuid.UUID) ([]models.TutorialSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TutorialSummary
	for _, t := range m.tutorials {
		if t.EventID != eventID {
			continue
		}
		s := models.TutorialSummary{Tutorial: *t, Subscriptions: m.confirmed[t.ID], Instructors: []models.Instructor{}}
		for _, iid := range m.teaches[t.ID] {
			s.Instructors = append(s.Instructors, *m.instructors[iid])
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (m *memStore) GetTutorial(_ context.Context, id uuid.UUID) (*models.Tutorial, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tutorials[id]
	if !ok {
		return nil, ErrTutorialNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) SaveTutorial(_ context.Context, t *models.Tutorial, instructorIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range instructorIDs {
		if _, ok := m.instructors[id]; !ok {
			return ErrInstructorNotFound
		}
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	cp := *t
	m.tutorials[t.ID] = &cp
	m.teaches[t.ID] = instructorIDs
	return nil
}

func (m *memStore) DeleteTutorial(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tutorials[id]; !ok {
		return ErrTutorialNotFound
	}
	delete(m.tutorials, id)
	return nil
}

func (m *memStore) ListInstructors(context.Context) ([]models.Instructor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Instructor
	for _, in := range m.instructors {
		out = append(out, *in)
	}
	return out, nil
}

func (m *memStore) GetInstructor(_ context.Context, id uuid.UUID) (*models.Instructor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.instructors[id]
	if !ok {
		return nil, ErrInstructorNotFound
	}
	cp := *in
	return &cp, nil
}

func (m *memStore) CreateInstructor(_ context.Context, in *models.Instructor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	in.ID = uuid.New()
	cp := *in
	m.instructors[in.ID] = &cp
	return nil
}

func (m *memStore) SetInstructorPhoto(_ context.Context, id uuid.UUID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.instructors[id]
	if !ok {
		return ErrInstructorNotFound
	}
	in.PhotoKey = key
	return nil
}

func (m *memStore) ListSigners(context.Context) ([]models.CertificateSigner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CertificateSigner
	for _, s := range m.signers {
		out = append(out, *s)
	}
	return out, nil
}

func (m *memStore) GetSigner(_ context.Context, id uuid.UUID) (*models.CertificateSigner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signers[id]
	if !ok {
		return nil, ErrSignerNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) CreateSigner(_ context.Context, s *models.CertificateSigner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.New()
	cp := *s
	m.signers[s.ID] = &cp
	return nil
}

func (m *memStore) SetSignerSignature(_ context.Context, id uuid.UUID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signers[id]
	if !ok {
		return ErrSignerNotFound
	}
	s.SignatureKey = key
	return nil
}

func (m *memStore) AttachSigner(_ context.Context, link models.EventCertificateSigner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[[2]uuid.UUID{link.EventID, link.SignerID}] = link.DisplayOrder
	return nil
}

func (m *memStore) DetachSigner(_ context.Context, eventID, signerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [2]uuid.UUID{eventID, signerID}
	if _, ok := m.links[k]; !ok {
		return ErrSignerNotFound
	}
	delete(m.links, k)
	return nil
}

func (m *memStore) ListEventSigners(_ context.Context, eventID uuid.UUID) ([]models.OrderedSigner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.OrderedSigner
	for k, order := range m.links {
		if k[0] == eventID {
			out = append(out, models.OrderedSigner{CertificateSigner: *m.signers[k[1]], DisplayOrder: order})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

type memBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemBlob() *memBlob {
	return &memBlob{objects: map[string][]byte{}, types: map[string]string{}}
}

func (b *memBlob) Put(_ context.Context, key, contentType string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	b.types[key] = contentType
	return nil
}

func (b *memBlob) Open(_ context.Context, key string) (io.ReadCloser, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, "", storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), b.types[key], nil
}

func (b *memBlob) PresignGet(_ context.Context, key string) (string, error) {
	return "https://blob.test/" + key, nil
}

func (b *memBlob) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type testEnv struct {
	store  *memStore
	blob   *memBlob
	router *gin.Engine
}

func newTestEnv() *testEnv {
	gin.SetMode(gin.TestMode)
	env := &testEnv{store: newMemStore(), blob: newMemBlob(), router: gin.New()}
	h := NewHandler(env.store, env.blob, nil)
	h.RegisterPublicRoutes(env.router.Group("/api"))
	h.RegisterAdminRoutes(env.router.Group("/admin"))
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	var out envelope
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func (env *testEnv) uploadImage(t *testing.T, path, filename, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func (env *testEnv) createEvent(t *testing.T, title string) models.Event {
	t.Helper()
	w, out := env.do(t, http.MethodPost, "/admin/events", EventRequest{Title: title, StartDate: "2025-03-10", EndDate: "2025-03-14"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var e models.Event
	require.NoError(t, json.Unmarshal(out.Data, &e))
	return e
}

func TestCreateEventDerivesSlug(t *testing.T) {
	env := newTestEnv()
	e := env.createEvent(t, "Semana de Computação 2025")
	assert.Equal(t, "semana-de-computacao-2025", e.Slug)

	w, out := env.do(t, http.MethodPost, "/admin/events", EventRequest{Title: "Semana de Computação 2025", StartDate: "2025-03-10", EndDate: "2025-03-14"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "SLUG_TAKEN", out.Code)
}

func TestCreateEventValidatesDates(t *testing.T) {
	env := newTestEnv()
	for _, req := range []EventRequest{
		{Title: "x", StartDate: "2025-03-14", EndDate: "2025-03-10"},
		{Title: "x", StartDate: "2025-03-10", EndDate: "2025-03-10"},
		{Title: "x", StartDate: "10/03/2025", EndDate: "2025-03-14"},
	} {
		w, out := env.do(t, http.MethodPost, "/admin/events", req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_DATES", out.Code)
	}
	w, out := env.do(t, http.MethodPost, "/admin/events", EventRequest{Title: "  ", StartDate: "2025-03-10", EndDate: "2025-03-14"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "TITLE_REQUIRED", out.Code)
}

func TestUpdateEventKeepsSlug(t *testing.T) {
	env := newTestEnv()
	e := env.createEvent(t, "Encontro Go")
	title := "Encontro Go Brasil"
	w, out := env.do(t, http.MethodPatch, "/admin/events/"+e.ID.String(), UpdateEventRequest{Title: &title})
	require.Equal(t, http.StatusOK, w.Code)
	var updated models.Event
	require.NoError(t, json.Unmarshal(out.Data, &updated))
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, "encontro-go", updated.Slug)
}

func TestTutorialDurationFixesEnd(t *testing.T) {
	env := newTestEnv()
	e := env.createEvent(t, "Encontro Go")
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	secs := int64(3 * 3600)

	w, out := env.do(t, http.MethodPost, "/admin/events/"+e.ID.String()+"/tutorials", TutorialRequest{
		Title: "Concorrência", StartAt: start, EndAt: start.Add(time.Hour), Duration: &secs, Vacancies: 20,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var tut models.Tutorial
	require.NoError(t, json.Unmarshal(out.Data, &tut))
	assert.True(t, tut.EndAt.Equal(start.Add(3*time.Hour)))

	w, out = env.do(t, http.MethodPost, "/admin/events/"+e.ID.String()+"/tutorials", TutorialRequest{
		Title: "Invertido", StartAt: start, EndAt: start.Add(-time.Hour), Duration: &secs, Vacancies: 20,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_DATES", out.Code)

	w, out = env.do(t, http.MethodPost, "/admin/events/"+e.ID.String()+"/tutorials", TutorialRequest{
		Title: "Sem vagas", StartAt: start, EndAt: start.Add(time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_VACANCIES", out.Code)
}

func TestTutorialUnknownEventOrInstructor(t *testing.T) {
	env := newTestEnv()
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	req := TutorialRequest{Title: "Go", StartAt: start, EndAt: start.Add(time.Hour), Vacancies: 5}

	w, out := env.do(t, http.MethodPost, "/admin/events/"+uuid.NewString()+"/tutorials", req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "EVENT_NOT_FOUND", out.Code)

	e := env.createEvent(t, "Encontro Go")
	req.InstructorIDs = []uuid.UUID{uuid.New()}
	w, out = env.do(t, http.MethodPost, "/admin/events/"+e.ID.String()+"/tutorials", req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "INSTRUCTOR_NOT_FOUND", out.Code)
}

func TestPublicEventDetail(t *testing.T) {
	env := newTestEnv()
	e := env.createEvent(t, "Encontro Go")
	in := &models.Instructor{Name: "Ana"}
	require.NoError(t, env.store.CreateInstructor(context.Background(), in))
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	w, out := env.do(t, http.MethodPost, "/admin/events/"+e.ID.String()+"/tutorials", TutorialRequest{
		Title: "Go", StartAt: start, EndAt: start.Add(2 * time.Hour), Vacancies: 2, InstructorIDs: []uuid.UUID{in.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var tut models.Tutorial
	require.NoError(t, json.Unmarshal(out.Data, &tut))
	env.store.confirmed[tut.ID] = 2

	w, out = env.do(t, http.MethodGet, "/api/events/encontro-go", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var d EventDetail
	require.NoError(t, json.Unmarshal(out.Data, &d))
	require.Len(t, d.Tutorials, 1)
	assert.Equal(t, 2, d.Tutorials[0].Subscriptions)
	assert.False(t, d.Tutorials[0].HasSlotsAvailable())
	require.Len(t, d.Tutorials[0].Instructors, 1)
	assert.Equal(t, "Ana", d.Tutorials[0].Instructors[0].Name)
	assert.NotContains(t, w.Body.String(), "certificate_template")

	w, out = env.do(t, http.MethodGet, "/api/events/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "EVENT_NOT_FOUND", out.Code)
}

func TestCertificateTemplateValidated(t *testing.T) {
	env := newTestEnv()
	e := env.createEvent(t, "Encontro Go")
	path := "/admin/events/" + e.ID.String() + "/certificate-template"

	w, out := env.do(t, http.MethodPut, path, TemplateRequest{Template: "{{.AttendeeName"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_TEMPLATE", out.Code)

	w, out = env.do(t, http.MethodPut, path, TemplateRequest{Template: "<h1>{{.AttendeeNme}}</h1>"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_TEMPLATE", out.Code)
	assert.Empty(t, env.store.events[e.ID].CertificateTemplate)

	w, _ = env.do(t, http.MethodPut, path, TemplateRequest{Template: "<h1>{{.AttendeeName}}</h1>"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<h1>{{.AttendeeName}}</h1>", env.store.events[e.ID].CertificateTemplate)
}

func TestAttachSignerOrder(t *testing.T) {
	env := newTestEnv()
	e := env.createEvent(t, "Encontro Go")
	s := &models.CertificateSigner{Name: "Bia", Title: "Coordenadora"}
	require.NoError(t, env.store.CreateSigner(context.Background(), s))
	path := "/admin/events/" + e.ID.String() + "/signers/" + s.ID.String()

	zero := 0
	w, out := env.do(t, http.MethodPut, path, AttachSignerRequest{DisplayOrder: &zero})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_SIGNER_ORDER", out.Code)

	w, _ = env.do(t, http.MethodPut, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, env.store.links[[2]uuid.UUID{e.ID, s.ID}])

	w, out = env.do(t, http.MethodPut, "/admin/events/"+e.ID.String()+"/signers/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SIGNER_NOT_FOUND", out.Code)

	w, _ = env.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestEventImageUploadAndServe(t *testing.T) {
	env := newTestEnv()
	e := env.createEvent(t, "Encontro Go")
	png := []byte("\x89PNG fake")

	w := env.uploadImage(t, "/admin/events/"+e.ID.String()+"/image", "banner.png", "image/png", png)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	key := storage.EventImageKey(e.ID.String(), "banner.png")
	assert.Equal(t, key, env.store.events[e.ID].ImageKey)

	w, _ = env.do(t, http.MethodGet, "/api/events/encontro-go/image", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, png, w.Body.Bytes())

	w = env.uploadImage(t, "/admin/events/"+e.ID.String()+"/image", "cover.png", "image/png", png)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, env.blob.objects, key)
}

func TestUploadRejectsNonImage(t *testing.T) {
	env := newTestEnv()
	e := env.createEvent(t, "Encontro Go")
	w := env.uploadImage(t, "/admin/events/"+e.ID.String()+"/image", "notes.txt", "text/plain", []byte("hi"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_IMAGE")
}

func TestInstructorPhotoMissing(t *testing.T) {
	env := newTestEnv()
	in := &models.Instructor{Name: "Ana"}
	require.NoError(t, env.store.CreateInstructor(context.Background(), in))
	w, out := env.do(t, http.MethodGet, "/api/instructors/"+in.ID.String()+"/photo", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "FILE_NOT_FOUND", out.Code)
}
