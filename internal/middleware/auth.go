package middleware

import (
	"net/http"
	"strings"

	"shortly/internal/models"
	"shortly/internal/service"

	"github.com/gin-gonic/gin"
)

// Ключ принципала в контексте запроса. Доступ только через
// CurrentUser/setCurrentUser, чтобы обработчики не знали про строку.
const principalKey = "shortly/principal"

// TokenHeader — нестандартный заголовок с токеном; проверяется раньше
// Authorization: Bearer.
const TokenHeader = "token"

// RequireAuth требует валидный bearer токен. Без токена или с
// невалидным токеном запрос обрывается с 401 до вызова обработчика.
func RequireAuth(auth service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Missing or invalid token",
			})
			return
		}

		user, err := auth.ValidateToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Invalid token",
			})
			return
		}

		setCurrentUser(c, user)
		c.Next()
	}
}

// OptionalAuth извлекает принципала, если токен есть и валиден, но
// никогда не блокирует запрос. Для публичных ручек с анонимным доступом.
func OptionalAuth(auth service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractToken(c); token != "" {
			if user, err := auth.ValidateToken(c.Request.Context(), token); err == nil {
				setCurrentUser(c, user)
			}
		}
		c.Next()
	}
}

// RequireCredits пропускает анонимные запросы, а для авторизованных
// требует положительный остаток кредитов.
func RequireCredits() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.Next()
			return
		}

		if user.RemainingCredits() <= 0 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "insufficient_credits",
				"message": "URL shortening limit reached",
			})
			return
		}

		c.Next()
	}
}

// CurrentUser возвращает принципала запроса. ok == false для анонимов.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(principalKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}

func setCurrentUser(c *gin.Context, user *models.User) {
	c.Set(principalKey, user)
}

// extractToken достаёт токен из заголовка token либо из
// Authorization: Bearer <token>.
func extractToken(c *gin.Context) string {
	if token := c.GetHeader(TokenHeader); token != "" {
		return token
	}

	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
