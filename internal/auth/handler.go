package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eventportal/backend/internal/models"
	"github.com/eventportal/backend/pkg/apperror"
	"github.com/eventportal/backend/pkg/response"
	"github.com/eventportal/backend/pkg/utils"
)

var (
	ErrUserNotFound       = apperror.NotFound(apperror.CodeInvalidCredentials, "user not found")
	ErrInvalidCredentials = apperror.New(apperror.KindUnauthenticated, apperror.CodeInvalidCredentials, "invalid credentials")
	ErrEmailTaken         = apperror.Rule(apperror.CodeEmailTaken, "email already registered")
)

// UserStore is operator persistence.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.UserPublic, error)
	Create(ctx context.Context, u *models.User) error
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// CreateOperatorRequest is the body for POST /admin/users.
type CreateOperatorRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
	Role     string `json:"role"`
}

// TokenResponse is the login response.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Handler handles operator auth endpoints.
type Handler struct {
	store  UserStore
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(store UserStore, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, jwt: jwt, logger: logger}
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, apperror.CodeInvalidRequest)
		return
	}
	user, err := h.store.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			h.logger.Error("load user failed", zap.Error(err))
		}
		response.Error(c, ErrInvalidCredentials)
		return
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		response.Error(c, ErrInvalidCredentials)
		return
	}
	token, err := h.jwt.Generate(user)
	if err != nil {
		h.logger.Error("sign token failed", zap.Error(err))
		response.Error(c, err)
		return
	}
	h.logger.Info("operator logged in", zap.String("user_id", user.ID.String()))
	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// CreateOperator handles POST /admin/users (admin only).
func (h *Handler) CreateOperator(c *gin.Context) {
	var req CreateOperatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, apperror.CodeInvalidRequest)
		return
	}
	role := models.RoleOperator
	switch models.Role(req.Role) {
	case "", models.RoleOperator:
	case models.RoleAdmin:
		role = models.RoleAdmin
	default:
		response.Invalid(c, apperror.CodeInvalidRequest)
		return
	}
	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	u := &models.User{
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Password: hash,
		FullName: strings.TrimSpace(req.FullName),
		Role:     role,
	}
	if err := h.store.Create(c.Request.Context(), u); err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("operator created", zap.String("user_id", u.ID.String()), zap.String("role", string(u.Role)))
	response.Created(c, u.ToPublic())
}

// List handles GET /admin/users (admin only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if list == nil {
		list = []models.UserPublic{}
	}
	response.OK(c, list)
}

// EnsureAdmin creates the bootstrap admin when no operator with that email exists.
// It reports whether a user was created.
func EnsureAdmin(ctx context.Context, store UserStore, email, password, fullName string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	_, err := store.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return false, err
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return false, err
	}
	if fullName == "" {
		fullName = "Administrator"
	}
	u := &models.User{Email: strings.ToLower(email), Password: hash, FullName: fullName, Role: models.RoleAdmin}
	if err := store.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
