package handler

import (
	"net/http"
	"strconv"

	"shortly/internal/middleware"
	"shortly/internal/models"
	"shortly/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	service service.AuthService
	logger  *zap.Logger
}

func NewAuthHandler(service service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger,
	}
}

type TokenResponse struct {
	Token string `json:"token"`
}

// SignUp godoc
// @Summary Register a new user
// @Description Create an account and receive a JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.SignUpInput true "Signup request"
// @Success 201 {object} TokenResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/auth/signup [post]
func (h *AuthHandler) SignUp(c *gin.Context) {
	var input models.SignUpInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Warn("Invalid signup body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	token, err := h.service.SignUp(c.Request.Context(), &input)
	if err != nil {
		h.logger.Warn("Signup failed", zap.String("username", input.Username), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, TokenResponse{Token: token})
}

// SignIn godoc
// @Summary Sign in
// @Description Exchange email and password for a JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.SignInInput true "Signin request"
// @Success 200 {object} TokenResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/auth/signin [post]
func (h *AuthHandler) SignIn(c *gin.Context) {
	var input models.SignInInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	token, err := h.service.SignIn(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, TokenResponse{Token: token})
}

// ListUsers godoc
// @Summary List users
// @Description All active users without sensitive fields
// @Tags auth
// @Produce json
// @Success 200 {array} models.PublicUser
// @Router /api/auth/users [get]
func (h *AuthHandler) ListUsers(c *gin.Context) {
	users, err := h.service.FindAllUsers(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list users", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, users)
}

// DeleteUser godoc
// @Summary Soft delete a user
// @Description Marks the account deleted; only the owner may delete it
// @Tags auth
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} map[string]string
// @Failure 401 {object} ErrorResponse
// @Router /api/auth/users/{id} [delete]
func (h *AuthHandler) DeleteUser(c *gin.Context) {
	requester, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Authentication required",
		})
		return
	}

	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "User ID must be a number",
		})
		return
	}

	if err := h.service.SoftDeleteUser(c.Request.Context(), userID, requester.ID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
