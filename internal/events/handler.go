package events

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventportal/backend/internal/certificates"
	"github.com/eventportal/backend/internal/models"
	"github.com/eventportal/backend/pkg/apperror"
	"github.com/eventportal/backend/pkg/response"
	"github.com/eventportal/backend/pkg/storage"
	"github.com/eventportal/backend/pkg/utils"
)

// DateLayout is the wire format of event dates.
const DateLayout = "2006-01-02"

// Handler handles event catalogue HTTP endpoints.
type Handler struct {
	store  Store
	blob   storage.Blob
	logger *zap.Logger
}

// NewHandler creates an events handler. blob may be nil, which disables uploads and downloads.
func NewHandler(store Store, blob storage.Blob, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, blob: blob, logger: logger}
}

// RegisterPublicRoutes mounts the read-only catalogue.
func (h *Handler) RegisterPublicRoutes(api *gin.RouterGroup) {
	api.GET("/events", h.List)
	api.GET("/events/:slug", h.GetBySlug)
	api.GET("/events/:slug/image", h.EventImage)
	api.GET("/instructors/:id/photo", h.InstructorPhoto)
}

// RegisterAdminRoutes mounts catalogue management.
func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.GET("/events", h.List)
	admin.POST("/events", h.Create)
	admin.GET("/events/:id", h.GetByID)
	admin.PATCH("/events/:id", h.Update)
	admin.DELETE("/events/:id", h.Delete)
	admin.PUT("/events/:id/certificate-template", h.SetCertificateTemplate)
	admin.POST("/events/:id/image", h.UploadEventImage)
	admin.POST("/events/:id/tutorials", h.CreateTutorial)
	admin.GET("/events/:id/signers", h.ListEventSigners)
	admin.PUT("/events/:id/signers/:signerId", h.AttachSigner)
	admin.DELETE("/events/:id/signers/:signerId", h.DetachSigner)

	admin.PUT("/tutorials/:id", h.UpdateTutorial)
	admin.DELETE("/tutorials/:id", h.DeleteTutorial)

	admin.GET("/instructors", h.ListInstructors)
	admin.POST("/instructors", h.CreateInstructor)
	admin.POST("/instructors/:id/photo", h.UploadInstructorPhoto)

	admin.GET("/signers", h.ListSigners)
	admin.POST("/signers", h.CreateSigner)
	admin.POST("/signers/:id/signature", h.UploadSignature)
}

func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Invalid(c, apperror.CodeInvalidRequest)
		return uuid.Nil, false
	}
	return id, true
}

// EventDetail is an event with its tutorials as shown to the public.
type EventDetail struct {
	models.Event
	HasImage  bool                     `json:"has_image"`
	Tutorials []models.TutorialSummary `json:"tutorials"`
}

// AdminEventDetail adds the certificate setup to EventDetail.
type AdminEventDetail struct {
	EventDetail
	CertificateTemplate string                 `json:"certificate_template"`
	Signers             []models.OrderedSigner `json:"signers"`
}

// List handles GET /events.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.ListEvents(c.Request.Context())
	if err != nil {
		h.logger.Error("list events failed", zap.Error(err))
		response.Error(c, err)
		return
	}
	if list == nil {
		list = []models.Event{}
	}
	response.OK(c, list)
}

func (h *Handler) detail(c *gin.Context, e *models.Event) (EventDetail, error) {
	tutorials, err := h.store.ListTutorials(c.Request.Context(), e.ID)
	if err != nil {
		return EventDetail{}, err
	}
	if tutorials == nil {
		tutorials = []models.TutorialSummary{}
	}
	return EventDetail{Event: *e, HasImage: e.ImageKey != "", Tutorials: tutorials}, nil
}

// GetBySlug handles GET /api/events/:slug. Returns the event with tutorials, seat counts and instructors.
func (h *Handler) GetBySlug(c *gin.Context) {
	e, err := h.store.GetEventBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}
	d, err := h.detail(c, e)
	if err != nil {
		h.logger.Error("list tutorials failed", zap.Error(err), zap.String("event_id", e.ID.String()))
		response.Error(c, err)
		return
	}
	response.OK(c, d)
}

// GetByID handles GET /admin/events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	e, err := h.store.GetEvent(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	d, err := h.detail(c, e)
	if err != nil {
		response.Error(c, err)
		return
	}
	signers, err := h.store.ListEventSigners(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if signers == nil {
		signers = []models.OrderedSigner{}
	}
	response.OK(c, AdminEventDetail{EventDetail: d, CertificateTemplate: e.CertificateTemplate, Signers: signers})
}

// EventRequest is the body for POST /admin/events. Slug is derived from the title when empty.
type EventRequest struct {
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	StartDate   string `json:"start_date" binding:"required"`
	EndDate     string `json:"end_date" binding:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
	URL         string `json:"url"`
}

func parseDates(start, end string) (time.Time, time.Time, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return time.Time{}, time.Time{}, models.ErrInvalidDates
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return time.Time{}, time.Time{}, models.ErrInvalidDates
	}
	return s, e, nil
}

func validateEvent(e *models.Event) error {
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" {
		return models.ErrTitleRequired
	}
	if !e.StartDate.Before(e.EndDate) {
		return models.ErrInvalidDates
	}
	return nil
}

// Create handles POST /admin/events.
func (h *Handler) Create(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, apperror.CodeInvalidRequest)
		return
	}
	start, end, err := parseDates(req.StartDate, req.EndDate)
	if err != nil {
		response.Error(c, err)
		return
	}
	e := &models.Event{
		Title:       req.Title,
		StartDate:   start,
		EndDate:     end,
		Description: req.Description,
		Location:    req.Location,
		URL:         req.URL,
	}
	if err := validateEvent(e); err != nil {
		response.Error(c, err)
		return
	}
	e.Slug = utils.Slugify(req.Slug)
	if e.Slug == "" {
		e.Slug = utils.Slugify(e.Title)
	}
	if e.Slug == "" {
		response.Error(c, models.ErrTitleRequired)
		return
	}
	if err := h.store.CreateEvent(c.Request.Context(), e); err != nil {
		if !errors.Is(err, ErrSlugTaken) {
			h.logger.Error("create event failed", zap.Error(err))
		}
		response.Error(c, err)
		return
	}
	h.logger.Info("event created", zap.String("event_id", e.ID.String()), zap.String("slug", e.Slug))
	response.Created(c, e)
}

// UpdateEventRequest is the body for PATCH /admin/events/:id. The slug cannot change.
type UpdateEventRequest struct {
	Title       *string `json:"title"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	URL         *string `json:"url"`
}

// Update handles PATCH /admin/events/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, apperror.CodeInvalidRequest)
		return
	}
	e, err := h.store.GetEvent(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	start, end := e.StartDate.Format(DateLayout), e.EndDate.Format(DateLayout)
	if req.StartDate != nil {
		start = *req.StartDate
	}
	if req.EndDate != nil {
		end = *req.EndDate
	}
	if e.StartDate, e.EndDate, err = parseDates(start, end); err != nil {
		response.Error(c, err)
		return
	}
	if req.Title != nil {
		e.Title = *req.Title
	}
	if req.Description != nil {
		e.Description = *req.Description
	}
	if req.Location != nil {
		e.Location = *req.Location
	}
	if req.URL != nil {
		e.URL = *req.URL
	}
	if err := validateEvent(e); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.store.UpdateEvent(c.Request.Context(), e); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, e)
}

// Delete handles DELETE /admin/events/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteEvent(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("event deleted", zap.String("event_id", id.String()))
	response.NoContent(c)
}

// TemplateRequest is the body for PUT /admin/events/:id/certificate-template.
type TemplateRequest struct {
	Template string `json:"template"`
}

// SetCertificateTemplate handles PUT /admin/events/:id/certificate-template. An empty template
// disables certificates for the event.
func (h *Handler) SetCertificateTemplate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, apperror.CodeInvalidRequest)
		return
	}
	if req.Template != "" {
		if err := certificates.ParseTemplate(req.Template); err != nil {
			response.Error(c, err)
			return
		}
	}
	if err := h.store.SetCertificateTemplate(c.Request.Context(), id, req.Template); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"event_id": id, "has_template": req.Template != ""})
}

// TutorialRequest is the body for creating or replacing a tutorial. Duration is in seconds and,
// when set, fixes the end to start + duration.
type TutorialRequest struct {
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Location      string      `json:"location"`
	StartAt       time.Time   `json:"start_datetime"`
	EndAt         time.Time   `json:"end_datetime"`
	Duration      *int64      `json:"duration"`
	Vacancies     int         `json:"vacancies"`
	InstructorIDs []uuid.UUID `json:"instructors"`
}

func (r TutorialRequest) apply(t *models.Tutorial) {
	t.Title = strings.TrimSpace(r.Title)
	t.Description = r.Description
	t.Location = r.Location
	t.StartAt = r.StartAt
	t.EndAt = r.EndAt
	t.Vacancies = r.Vacancies
	t.Duration = nil
	if r.Duration != nil {
		d := time.Duration(*r.Duration) * time.Second
		t.Duration = &d
	}
}

// CreateTutorial handles POST /admin/events/:id/tutorials.
func (h *Handler) CreateTutorial(c *gin.Context) {
	eventID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req TutorialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, apperror.CodeInvalidRequest)
		return
	}
	if _, err := h.store.GetEvent(c.Request.Context(), eventID); err != nil {
		response.Error(c, err)
		return
	}
	t := &models.Tutorial{EventID: eventID}
	req.apply(t)
	if err := t.Normalize(); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.store.SaveTutorial(c.Request.Context(), t, req.InstructorIDs); err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("tutorial created", zap.String("tutorial_id", t.ID.String()), zap.String("event_id", eventID.String()))
	response.Created(c, t)
}

// UpdateTutorial handles PUT /admin/tutorials/:id. The whole tutorial is replaced.
func (h *Handler) UpdateTutorial(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req TutorialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, apperror.CodeInvalidRequest)
		return
	}
	t, err := h.store.GetTutorial(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	req.apply(t)
	if err := t.Normalize(); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.store.SaveTutorial(c.Request.Context(), t, req.InstructorIDs); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, t)
}

// DeleteTutorial handles DELETE /admin/tutorials/:id.
func (h *Handler) DeleteTutorial(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteTutorial(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListInstructors handles GET /admin/instructors.
func (h *Handler) ListInstructors(c *gin.Context) {
	list, err := h.store.ListInstructors(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if list == nil {
		list = []models.Instructor{}
	}
	response.OK(c, list)
}

// InstructorRequest is the body for POST /admin/instructors.
type InstructorRequest struct {
	Name string `json:"name" binding:"required"`
	Bio  string `json:"bio"`
}

// CreateInstructor handles POST /admin/instructors.
func (h *Handler) CreateInstructor(c *gin.Context) {
	var req InstructorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, apperror.CodeInvalidRequest)
		return
	}
	in := &models.Instructor{Name: strings.TrimSpace(req.Name), Bio: req.Bio}
	if err := h.store.CreateInstructor(c.Request.Context(), in); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, in)
}

// ListSigners handles GET /admin/signers.
func (h *Handler) ListSigners(c *gin.Context) {
	list, err := h.store.ListSigners(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if list == nil {
		list = []models.CertificateSigner{}
	}
	response.OK(c, list)
}

// SignerRequest is the body for POST /admin/signers.
type SignerRequest struct {
	Name  string `json:"name" binding:"required"`
	Title string `json:"title" binding:"required"`
}

// CreateSigner handles POST /admin/signers.
func (h *Handler) CreateSigner(c *gin.Context) {
	var req SignerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, apperror.CodeInvalidRequest)
		return
	}
	s := &models.CertificateSigner{Name: strings.TrimSpace(req.Name), Title: strings.TrimSpace(req.Title)}
	if err := h.store.CreateSigner(c.Request.Context(), s); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, s)
}

// ListEventSigners handles GET /admin/events/:id/signers.
func (h *Handler) ListEventSigners(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	list, err := h.store.ListEventSigners(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if list == nil {
		list = []models.OrderedSigner{}
	}
	response.OK(c, list)
}

// AttachSignerRequest is the body for PUT /admin/events/:id/signers/:signerId. Order defaults to 1.
type AttachSignerRequest struct {
	DisplayOrder *int `json:"display_order"`
}

// AttachSigner handles PUT /admin/events/:id/signers/:signerId.
func (h *Handler) AttachSigner(c *gin.Context) {
	eventID, ok := paramID(c, "id")
	if !ok {
		return
	}
	signerID, ok := paramID(c, "signerId")
	if !ok {
		return
	}
	var req AttachSignerRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Invalid(c, apperror.CodeInvalidRequest)
			return
		}
	}
	order := 1
	if req.DisplayOrder != nil {
		order = *req.DisplayOrder
	}
	if order < 1 {
		response.Error(c, ErrInvalidSignerOrder)
		return
	}
	ctx := c.Request.Context()
	if _, err := h.store.GetEvent(ctx, eventID); err != nil {
		response.Error(c, err)
		return
	}
	if _, err := h.store.GetSigner(ctx, signerID); err != nil {
		response.Error(c, err)
		return
	}
	link := models.EventCertificateSigner{EventID: eventID, SignerID: signerID, DisplayOrder: order}
	if err := h.store.AttachSigner(ctx, link); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, link)
}

// DetachSigner handles DELETE /admin/events/:id/signers/:signerId.
func (h *Handler) DetachSigner(c *gin.Context) {
	eventID, ok := paramID(c, "id")
	if !ok {
		return
	}
	signerID, ok := paramID(c, "signerId")
	if !ok {
		return
	}
	if err := h.store.DetachSigner(c.Request.Context(), eventID, signerID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// upload stores the multipart "file" field under keyFor(filename) and returns the key.
// It writes the error response itself and reports false on failure.
func (h *Handler) upload(c *gin.Context, keyFor func(filename string) string) (string, bool) {
	if h.blob == nil {
		response.Error(c, ErrStorageDisabled)
		return "", false
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.Invalid(c, apperror.CodeInvalidRequest)
		return "", false
	}
	if file.Size > storage.MaxImageFileSize || !storage.ValidateImageType(file.Header.Get("Content-Type"), file.Filename) {
		response.Error(c, ErrInvalidImage)
		return "", false
	}
	contentType := storage.ContentTypeForFilename(file.Filename)
	if ct := strings.ToLower(file.Header.Get("Content-Type")); ct != "" {
		if _, ok := storage.AllowedImageTypes[ct]; ok {
			contentType = ct
		}
	}
	rc, err := file.Open()
	if err != nil {
		h.logger.Error("open uploaded file failed", zap.Error(err))
		response.Invalid(c, apperror.CodeInvalidRequest)
		return "", false
	}
	defer rc.Close()

	key := keyFor(file.Filename)
	if err := h.blob.Put(c.Request.Context(), key, contentType, rc, file.Size); err != nil {
		h.logger.Error("blob upload failed", zap.Error(err), zap.String("key", key))
		response.Error(c, apperror.External(apperror.CodeStorageFailed, "upload image", err))
		return "", false
	}
	return key, true
}

// replaced removes an object superseded by a new upload. Failures are only logged.
func (h *Handler) replaced(c *gin.Context, oldKey, newKey string) {
	if oldKey == "" || oldKey == newKey {
		return
	}
	if err := h.blob.Delete(c.Request.Context(), oldKey); err != nil {
		h.logger.Warn("delete replaced object failed", zap.Error(err), zap.String("key", oldKey))
	}
}

// UploadEventImage handles POST /admin/events/:id/image (multipart field "file").
func (h *Handler) UploadEventImage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	e, err := h.store.GetEvent(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	key, ok := h.upload(c, func(name string) string { return storage.EventImageKey(id.String(), name) })
	if !ok {
		return
	}
	if err := h.store.SetEventImage(c.Request.Context(), id, key); err != nil {
		response.Error(c, err)
		return
	}
	h.replaced(c, e.ImageKey, key)
	response.OK(c, gin.H{"event_id": id, "key": key})
}

// UploadInstructorPhoto handles POST /admin/instructors/:id/photo (multipart field "file").
func (h *Handler) UploadInstructorPhoto(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	in, err := h.store.GetInstructor(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	key, ok := h.upload(c, func(name string) string { return storage.InstructorPhotoKey(id.String(), name) })
	if !ok {
		return
	}
	if err := h.store.SetInstructorPhoto(c.Request.Context(), id, key); err != nil {
		response.Error(c, err)
		return
	}
	h.replaced(c, in.PhotoKey, key)
	response.OK(c, gin.H{"instructor_id": id, "key": key})
}

// UploadSignature handles POST /admin/signers/:id/signature (multipart field "file").
func (h *Handler) UploadSignature(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	s, err := h.store.GetSigner(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	key, ok := h.upload(c, func(name string) string { return storage.SignatureKey(id.String(), name) })
	if !ok {
		return
	}
	if err := h.store.SetSignerSignature(c.Request.Context(), id, key); err != nil {
		response.Error(c, err)
		return
	}
	h.replaced(c, s.SignatureKey, key)
	response.OK(c, gin.H{"signer_id": id, "key": key})
}

// serve streams the object at key.
func (h *Handler) serve(c *gin.Context, key string) {
	if key == "" {
		response.Error(c, ErrFileNotFound)
		return
	}
	if h.blob == nil {
		response.Error(c, ErrStorageDisabled)
		return
	}
	body, contentType, err := h.blob.Open(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.Error(c, ErrFileNotFound)
			return
		}
		h.logger.Error("open object failed", zap.Error(err), zap.String("key", key))
		response.Error(c, apperror.External(apperror.CodeStorageFailed, "open object", err))
		return
	}
	defer body.Close()
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(key)
	}
	c.DataFromReader(http.StatusOK, -1, contentType, body, map[string]string{"Cache-Control": "public, max-age=300"})
}

// EventImage handles GET /api/events/:slug/image.
func (h *Handler) EventImage(c *gin.Context) {
	e, err := h.store.GetEventBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.serve(c, e.ImageKey)
}

// InstructorPhoto handles GET /api/instructors/:id/photo.
func (h *Handler) InstructorPhoto(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	in, err := h.store.GetInstructor(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.serve(c, in.PhotoKey)
}
