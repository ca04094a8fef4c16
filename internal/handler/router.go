package handler

import (
	"net/http"

	"shortly/internal/middleware"
	"shortly/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func NewRouter(
	authService service.AuthService,
	linkService service.LinkService,
	clickProcessor service.ClickProcessor,
	healthHandler *HealthHandler,
	rateLimiter *middleware.RateLimiter,
	logger *zap.Logger,
	perfSampleRate float64,
) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()

	// Глобальный catch-all: любая паника превращается в 500 JSON
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("Panic recovered", zap.Any("panic", recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Internal server error",
		})
	}))

	router.Use(middleware.RequestLogger(logger, perfSampleRate))

	// Rate limiting для всех запросов
	router.Use(rateLimiter.Middleware())

	authHandler := NewAuthHandler(authService, logger)
	linkHandler := NewLinkHandler(linkService, clickProcessor, logger)

	api := router.Group("/api")
	{
		api.GET("/health", healthHandler.Check)

		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.SignUp)
			auth.POST("/signin", authHandler.SignIn)
			auth.GET("/users", authHandler.ListUsers)
			auth.DELETE("/users/:id", middleware.RequireAuth(authService), authHandler.DeleteUser)
		}

		urls := api.Group("/urls")
		{
			urls.GET("", linkHandler.List)
			// Создание доступно анонимам; кредиты проверяются только
			// при наличии принципала
			urls.POST("",
				middleware.OptionalAuth(authService),
				middleware.RequireCredits(),
				linkHandler.Create,
			)
			urls.POST("/qrcode", linkHandler.QRCode)
			urls.GET("/stats/:code", linkHandler.Stats)
			urls.GET("/stats/:code/daily", linkHandler.DailyStats)

			owned := urls.Group("", middleware.RequireAuth(authService))
			{
				owned.GET("/byUser", linkHandler.ListByUser)
				owned.PUT("/:id", linkHandler.Update)
				owned.DELETE("/:id", linkHandler.Delete)
				owned.PUT("/:id/renew", linkHandler.Renew)
			}
		}
	}

	// Редирект по короткому коду: всё, что не совпало с маршрутами выше
	router.NoRoute(linkHandler.Redirect)

	// Swagger документация (без аутентификации)
	AddSwaggerRoutes(router)

	return router
}
