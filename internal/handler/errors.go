package handler

import (
	"errors"
	"net/http"

	"shortly/internal/repository"
	"shortly/internal/service"

	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// respondError переводит ошибку доменного слоя в HTTP-статус и
// структурированное тело. Всё неожиданное становится 500 без деталей.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserExists):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "conflict",
			Message: "Username or email already exists",
		})

	case errors.Is(err, service.ErrCodeExhausted):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "code_exhausted",
			Message: "Failed to generate unique short code after multiple attempts",
		})

	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid email or password",
		})

	case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrNotSelf):
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Not authorized to perform this action",
		})

	case errors.Is(err, service.ErrNotOwner):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: "You do not own this link",
		})

	case errors.Is(err, service.ErrLimitReached):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "limit_reached",
			Message: "URL shortening limit reached",
		})

	case errors.Is(err, service.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_url",
			Message: "Invalid URL format",
		})

	case errors.Is(err, service.ErrSpamDomain):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "spam_domain",
			Message: "Domain is blacklisted",
		})

	// Просроченная ссылка за пределами редиректа — обычный NotFound
	case errors.Is(err, service.ErrLinkExpired),
		errors.Is(err, repository.ErrLinkNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Resource not found",
		})

	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Internal server error",
		})
	}
}
