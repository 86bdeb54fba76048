package controllers

import (
	"log/slog"
	"net/http"
	"strings"

	h "merchpos/internal/delivery/http/helpers"
	"merchpos/internal/delivery/http/middleware"
	"merchpos/internal/domain"
)

// RegisterRequest is the request body for POST /api/auth/register
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
	Role     string `json:"role"` // optional: member (default), officer or admin
}

// Validate implements Validator.
func (req RegisterRequest) Validate() []string {
	var errs []string
	if strings.TrimSpace(req.Name) == "" && req.Name != "" {
		errs = append(errs, "name must not be blank")
	}
	return errs
}

// LoginRequest is the request body for POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the response body for POST /api/auth/login
type LoginResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	User      *domain.User `json:"user"`
}

// RoleDecisionRequest is the request body for POST /api/auth/approve and POST /api/auth/reject.
type RoleDecisionRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Role   string `json:"role"` // approve only; defaults to the requested role
}

// UserSuccessResponse is the success response envelope for endpoints returning one user.
type UserSuccessResponse struct {
	Data  *domain.User `json:"data"`
	Error *h.APIError  `json:"error"`
}

// ActivityListResponse is the data payload for GET /api/auth/activity.
type ActivityListResponse struct {
	Items      []*domain.ActivityLog `json:"items"`
	Pagination h.PaginationMeta      `json:"pagination"`
}

type AuthController struct {
	Logger   *slog.Logger
	Service  domain.AuthService
	Activity domain.ActivityService
}

func NewAuthController(logger *slog.Logger, svc domain.AuthService, activity domain.ActivityService) *AuthController {
	return &AuthController{
		Logger:   logger,
		Service:  svc,
		Activity: activity,
	}
}

// Register godoc
// @Summary Register a new user
// @Description Members are active immediately. Requesting officer or admin creates a pending member and emails the president for approval.
// @Tags auth
// @Accept json
// @Produce json
// @Param body body RegisterRequest true "Registration data"
// @Success 201 {object} controllers.UserSuccessResponse "data contains the created user"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (email domain not allowed)"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/auth/register [post]
func (c *AuthController) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	user, err := c.Service.Register(r.Context(), domain.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
	})
	if err != nil {
		writeServiceError(w, r, c.Logger, err, "user not found")
		return
	}
	h.WriteJSONSuccess(w, http.StatusCreated, user)
}

// Login godoc
// @Summary Log in
// @Description Authenticate with email and password. Returns a JWT carrying the user id, email and role.
// @Tags auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Login credentials"
// @Success 200 {object} helpers.APIResponse "data contains token, token_type and user"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/auth/login [post]
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	token, user, err := c.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, c.Logger, err, "user not found")
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, LoginResponse{Token: token, TokenType: "Bearer", User: user})
}

// Me godoc
// @Summary Get the current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.UserSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /api/auth/me [get]
func (c *AuthController) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}
	user, err := c.Service.Me(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, c.Logger, err, "user not found")
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, user)
}

// ListActivity godoc
// @Summary List the current user's activity log
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} helpers.APIResponse "data contains items and pagination"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/auth/activity [get]
func (c *AuthController) ListActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}
	params := h.ParsePagination(r)
	logs, total, err := c.Activity.ListByUser(r.Context(), userID, params)
	if err != nil {
		writeServiceError(w, r, c.Logger, err, "user not found")
		return
	}
	if logs == nil {
		logs = []*domain.ActivityLog{}
	}
	h.WriteJSONSuccess(w, http.StatusOK, ActivityListResponse{
		Items:      logs,
		Pagination: h.NewPaginationMeta(params, total),
	})
}

// ListPending godoc
// @Summary List users awaiting role approval
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse "data is an array of users"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Router /api/auth/pending [get]
func (c *AuthController) ListPending(w http.ResponseWriter, r *http.Request) {
	users, err := c.Service.ListPending(r.Context())
	if err != nil {
		writeServiceError(w, r, c.Logger, err, "user not found")
		return
	}
	if users == nil {
		users = []*domain.User{}
	}
	h.WriteJSONSuccess(w, http.StatusOK, users)
}

// Approve godoc
// @Summary Approve a pending role request
// @Description Grants role (member, officer or admin), defaulting to the role the user requested. President only.
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body RoleDecisionRequest true "User and granted role"
// @Success 200 {object} controllers.UserSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (not pending)"
// @Router /api/auth/approve [post]
func (c *AuthController) Approve(w http.ResponseWriter, r *http.Request) {
	var req RoleDecisionRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	approverID, _ := middleware.UserIDFromContext(r.Context())
	user, err := c.Service.Approve(r.Context(), approverID, req.UserID, req.Role)
	if err != nil {
		writeServiceError(w, r, c.Logger, err, "user not found")
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, user)
}

// Reject godoc
// @Summary Reject a pending role request
// @Description The user stays a member and becomes active. President only.
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body RoleDecisionRequest true "User to reject (role is ignored)"
// @Success 200 {object} controllers.UserSuccessResponse
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (not pending)"
// @Router /api/auth/reject [post]
func (c *AuthController) Reject(w http.ResponseWriter, r *http.Request) {
	var req RoleDecisionRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	approverID, _ := middleware.UserIDFromContext(r.Context())
	user, err := c.Service.Reject(r.Context(), approverID, req.UserID)
	if err != nil {
		writeServiceError(w, r, c.Logger, err, "user not found")
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, user)
}

// DeleteUser godoc
// @Summary Delete a user
// @Description President only. A president cannot delete their own account.
// @Tags auth
// @Security BearerAuth
// @Param uid path string true "User ID (UUID)"
// @Success 204 "No Content"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /api/auth/users/{uid} [delete]
func (c *AuthController) DeleteUser(w http.ResponseWriter, r *http.Request) {
	uid, ok := pathID(w, r, "uid")
	if !ok {
		return
	}
	actorID, _ := middleware.UserIDFromContext(r.Context())
	if err := c.Service.DeleteUser(r.Context(), actorID, uid); err != nil {
		writeServiceError(w, r, c.Logger, err, "user not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
