package registrations

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventportal/backend/internal/models"
	"github.com/eventportal/backend/pkg/apperror"
	"github.com/eventportal/backend/pkg/response"
)

// Handler handles registration HTTP endpoints.
type Handler struct {
	svc    *Service
	issuer *Issuer
	logger *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(svc *Service, issuer *Issuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, issuer: issuer, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error) {
	if k := apperror.KindOf(err); k == apperror.KindInternal || k == apperror.KindExternal {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	response.Error(c, err)
}

// SubscribeRequest is the body for POST /api/tutorials/:id/subscribe.
type SubscribeRequest struct {
	CPF      string `json:"cpf"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Birthday string `json:"birthday"`
}

// Subscribe handles POST /api/tutorials/:id/subscribe.
func (h *Handler) Subscribe(c *gin.Context) {
	tutorialID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Invalid(c, apperror.CodeInvalidCPFFormat)
		return
	}
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, apperror.CodeInvalidRequest)
		return
	}
	res, err := h.svc.Subscribe(c.Request.Context(), SubscribeInput{
		TutorialID: tutorialID,
		CPF:        req.CPF,
		Name:       req.Name,
		Email:      req.Email,
		Birthday:   req.Birthday,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, res)
}

// UnsubscribeRequest is the body for POST /api/tutorials/:id/unsubscribe.
type UnsubscribeRequest struct {
	CPF string `json:"cpf"`
}

// Unsubscribe handles POST /api/tutorials/:id/unsubscribe.
func (h *Handler) Unsubscribe(c *gin.Context) {
	tutorialID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Invalid(c, apperror.CodeInvalidCPFFormat)
		return
	}
	var req UnsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, apperror.CodeInvalidRequest)
		return
	}
	if err := h.svc.Unsubscribe(c.Request.Context(), tutorialID, req.CPF); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"unsubscribed": true})
}

// CheckRequest is the body for POST /api/tutorials/check_subscription.
type CheckRequest struct {
	TutorialID string `json:"tutorial_id"`
	CPF        string `json:"cpf"`
}

// CheckSubscription handles POST /api/tutorials/check_subscription.
func (h *Handler) CheckSubscription(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, apperror.CodeInvalidRequest)
		return
	}
	tutorialID, err := uuid.Parse(req.TutorialID)
	if err != nil {
		response.Invalid(c, apperror.CodeInvalidCPFFormat)
		return
	}
	res, err := h.svc.CheckSubscription(c.Request.Context(), tutorialID, req.CPF)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, res)
}

// ConfirmRequest is the body for POST /api/tutorials/confirm_subscription.
type ConfirmRequest struct {
	UUID string `json:"uuid"`
}

// Confirm handles POST /api/tutorials/confirm_subscription with the token from the confirmation email.
func (h *Handler) Confirm(c *gin.Context) {
	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, apperror.CodeInvalidToken)
		return
	}
	res, err := h.svc.Confirm(c.Request.Context(), req.UUID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, res)
}

// VerifyCertificate handles GET /api/certificates/:token.
func (h *Handler) VerifyCertificate(c *gin.Context) {
	v, err := h.issuer.Verify(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, v)
}

// DownloadCertificate handles GET /api/certificates/:token/download. Redirects to a signed link.
func (h *Handler) DownloadCertificate(c *gin.Context) {
	v, err := h.issuer.Verify(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, v.DownloadURL)
}

// ListByTutorial handles GET /admin/tutorials/:id/registrations. Optional ?status= filters by state.
func (h *Handler) ListByTutorial(c *gin.Context) {
	tutorialID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Invalid(c, apperror.CodeInvalidRequest)
		return
	}
	status := models.RegistrationStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		response.Invalid(c, apperror.CodeInvalidRequest)
		return
	}
	list, err := h.svc.ListByTutorial(c.Request.Context(), tutorialID, status)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, list)
}

// BulkRequest lists registration ids for operator bulk actions.
type BulkRequest struct {
	RegistrationIDs []uuid.UUID `json:"registration_ids" binding:"required,min=1"`
}

// PresenceRequest is the body for POST /admin/registrations/presence.
type PresenceRequest struct {
	BulkRequest
	Present *bool `json:"present" binding:"required"`
}

// BulkItem is the per-id outcome returned by bulk endpoints.
type BulkItem struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	Status         string    `json:"status,omitempty"`
	OK             bool      `json:"ok"`
	Code           string    `json:"code,omitempty"`
	Error          string    `json:"error,omitempty"`
}

func (h *Handler) bulkItems(c *gin.Context, results []BulkResult) []BulkItem {
	lang := c.GetHeader("Accept-Language")
	items := make([]BulkItem, 0, len(results))
	for _, r := range results {
		item := BulkItem{RegistrationID: r.RegistrationID, Status: string(r.Status), OK: r.Err == nil}
		if r.Err != nil {
			item.Code = string(apperror.CodeOf(r.Err))
			item.Error = apperror.Localize(r.Err, lang)
		}
		items = append(items, item)
	}
	return items
}

// MarkPresence handles POST /admin/registrations/presence.
func (h *Handler) MarkPresence(c *gin.Context) {
	var req PresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, apperror.CodeInvalidRequest)
		return
	}
	results := h.svc.MarkPresence(c.Request.Context(), req.RegistrationIDs, *req.Present)
	response.OK(c, h.bulkItems(c, results))
}

// GenerateCertificates handles POST /admin/registrations/certificates.
func (h *Handler) GenerateCertificates(c *gin.Context) {
	var req BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, apperror.CodeInvalidRequest)
		return
	}
	response.OK(c, h.bulkItems(c, h.issuer.GenerateMany(c.Request.Context(), req.RegistrationIDs)))
}

// SendCertificates handles POST /admin/registrations/certificates/email.
func (h *Handler) SendCertificates(c *gin.Context) {
	var req BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, apperror.CodeInvalidRequest)
		return
	}
	response.OK(c, h.bulkItems(c, h.issuer.SendMany(c.Request.Context(), req.RegistrationIDs)))
}

// RegisterPublicRoutes mounts the attendee-facing endpoints.
func (h *Handler) RegisterPublicRoutes(api *gin.RouterGroup) {
	api.POST("/tutorials/check_subscription", h.CheckSubscription)
	api.POST("/tutorials/confirm_subscription", h.Confirm)
	api.POST("/tutorials/:id/subscribe", h.Subscribe)
	api.POST("/tutorials/:id/unsubscribe", h.Unsubscribe)
	api.GET("/certificates/:token", h.VerifyCertificate)
	api.GET("/certificates/:token/download", h.DownloadCertificate)
}

// RegisterAdminRoutes mounts the operator endpoints. The group must already require authentication.
func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.GET("/tutorials/:id/registrations", h.ListByTutorial)
	admin.POST("/registrations/presence", h.MarkPresence)
	admin.POST("/registrations/certificates", h.GenerateCertificates)
	admin.POST("/registrations/certificates/email", h.SendCertificates)
}
