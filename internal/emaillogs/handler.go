package emaillogs

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventportal/backend/internal/models"
	"github.com/eventportal/backend/pkg/apperror"
	"github.com/eventportal/backend/pkg/queue"
	"github.com/eventportal/backend/pkg/response"
)

// LogStore is the part of the repository the handler reads and writes.
type LogStore interface {
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.EmailLog, error)
	Requeue(ctx context.Context, eventID uuid.UUID, ids []uuid.UUID) (int64, error)
}

// DeadLetterLister lists jobs the worker gave up on.
type DeadLetterLister interface {
	DeadLetters(ctx context.Context, limit int64) ([]queue.Job, error)
}

const (
	defaultDeadLetterLimit = 50
	maxDeadLetterLimit     = 500
)

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo   LogStore
	dlq    DeadLetterLister
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(repo LogStore, dlq DeadLetterLister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, dlq: dlq, logger: logger}
}

// RegisterAdminRoutes mounts the email log routes on the back-office group.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/events/:id/emails", h.ListByEvent)
	rg.POST("/events/:id/emails/resend", h.Resend)
	rg.GET("/emails/dead-letters", h.DeadLetters)
}

// ListByEvent handles GET /admin/events/:id/emails. Returns email logs for the event.
func (h *Handler) ListByEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Invalid(c, apperror.CodeInvalidRequest)
		return
	}
	logs, err := h.repo.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("list email logs failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Error(c, err)
		return
	}
	response.OK(c, logs)
}

// ResendRequest is the body for POST /admin/events/:id/emails/resend.
type ResendRequest struct {
	EmailLogIDs []uuid.UUID `json:"email_log_ids"`
}

// Resend handles POST /admin/events/:id/emails/resend. Puts the selected logs, or every failed
// log of the event when none is given, back in the outbox.
func (h *Handler) Resend(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Invalid(c, apperror.CodeInvalidRequest)
		return
	}
	var body ResendRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.Invalid(c, apperror.CodeInvalidRequest)
			return
		}
	}
	n, err := h.repo.Requeue(c.Request.Context(), eventID, body.EmailLogIDs)
	if err != nil {
		h.logger.Error("requeue email logs failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Error(c, err)
		return
	}
	h.logger.Info("email logs requeued", zap.String("event_id", eventID.String()), zap.Int64("count", n))
	response.OK(c, gin.H{"requeued": n})
}

// DeadLetters handles GET /admin/emails/dead-letters?limit=. Lists dead-lettered email jobs,
// oldest first, without removing them.
func (h *Handler) DeadLetters(c *gin.Context) {
	limit := int64(defaultDeadLetterLimit)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			response.Invalid(c, apperror.CodeInvalidRequest)
			return
		}
		limit = min(n, maxDeadLetterLimit)
	}
	jobs, err := h.dlq.DeadLetters(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list dead letters failed", zap.Error(err))
		response.Error(c, err)
		return
	}
	response.OK(c, jobs)
}
