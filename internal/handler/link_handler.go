package handler

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"shortly/internal/middleware"
	"shortly/internal/models"
	"shortly/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// shortCodePattern — ровно 6 символов [A-Za-z0-9]; всё остальное не
// считается кандидатом на редирект.
var shortCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{6}$`)

type LinkHandler struct {
	service        service.LinkService
	clickProcessor service.ClickProcessor
	logger         *zap.Logger
}

func NewLinkHandler(service service.LinkService, clickProcessor service.ClickProcessor, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		service:        service,
		clickProcessor: clickProcessor,
		logger:         logger,
	}
}

type LinkResponse struct {
	ID          int64      `json:"id"`
	ShortCode   string     `json:"shortCode"`
	OriginalURL string     `json:"originalUrl"`
	ShortURL    string     `json:"shortUrl"`
	ClickCount  int64      `json:"clickCount"`
	UserID      *int64     `json:"userId,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (h *LinkHandler) linkResponse(link *models.Link) LinkResponse {
	return LinkResponse{
		ID:          link.ID,
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		ShortURL:    h.service.ShortURL(link.ShortCode),
		ClickCount:  link.ClickCount,
		UserID:      link.UserID,
		ExpiresAt:   link.ExpiresAt,
		CreatedAt:   link.CreatedAt,
	}
}

// Create godoc
// @Summary Create a short link
// @Description Shorten a URL; anonymous callers are allowed, authenticated callers spend a credit
// @Tags urls
// @Accept json
// @Produce json
// @Param request body models.CreateLinkInput true "Link creation request"
// @Success 201 {object} LinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/urls [post]
func (h *LinkHandler) Create(c *gin.Context) {
	var input models.CreateLinkInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	user, _ := middleware.CurrentUser(c)

	link, err := h.service.Create(c.Request.Context(), &input, user)
	if err != nil {
		h.logger.Warn("Failed to create link", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.linkResponse(link))
}

// List godoc
// @Summary List links
// @Description All active links, newest first
// @Tags urls
// @Produce json
// @Success 200 {array} LinkResponse
// @Router /api/urls [get]
func (h *LinkHandler) List(c *gin.Context) {
	links, err := h.service.FindAll(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list links", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.linkResponses(links))
}

// ListByUser godoc
// @Summary List the caller's links
// @Tags urls
// @Produce json
// @Success 200 {array} LinkResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/urls/byUser [get]
func (h *LinkHandler) ListByUser(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Authentication required",
		})
		return
	}

	links, err := h.service.FindByUserID(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("Failed to list user links", zap.Int64("user_id", user.ID), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.linkResponses(links))
}

// Update godoc
// @Summary Update a link's destination
// @Tags urls
// @Accept json
// @Produce json
// @Param id path int true "Link ID"
// @Param request body models.UpdateLinkInput true "New destination"
// @Success 200 {object} LinkResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/urls/{id} [put]
func (h *LinkHandler) Update(c *gin.Context) {
	user, linkID, ok := h.ownerRequest(c)
	if !ok {
		return
	}

	var input models.UpdateLinkInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	link, err := h.service.Update(c.Request.Context(), linkID, user.ID, input.OriginalURL)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.linkResponse(link))
}

// Delete godoc
// @Summary Soft delete a link
// @Tags urls
// @Produce json
// @Param id path int true "Link ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/urls/{id} [delete]
func (h *LinkHandler) Delete(c *gin.Context) {
	user, linkID, ok := h.ownerRequest(c)
	if !ok {
		return
	}

	if err := h.service.SoftDelete(c.Request.Context(), linkID, user.ID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Link deleted successfully"})
}

// Renew godoc
// @Summary Extend or set a link's expiration
// @Description With a duration sets expiry to now+duration; without one extends an existing expiry by 24h
// @Tags urls
// @Accept json
// @Produce json
// @Param id path int true "Link ID"
// @Param request body models.RenewLinkInput true "Renewal request"
// @Success 200 {object} LinkResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/urls/{id}/renew [put]
func (h *LinkHandler) Renew(c *gin.Context) {
	user, linkID, ok := h.ownerRequest(c)
	if !ok {
		return
	}

	var input models.RenewLinkInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	link, err := h.service.RenewExpiration(c.Request.Context(), linkID, user.ID, input.ExpirationDuration)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.linkResponse(link))
}

// QRCode godoc
// @Summary Generate a QR code for a short link
// @Tags urls
// @Accept json
// @Produce png
// @Param request body models.QRCodeInput true "QR code request"
// @Success 200 {string} binary "QR code image"
// @Failure 404 {object} ErrorResponse
// @Router /api/urls/qrcode [post]
func (h *LinkHandler) QRCode(c *gin.Context) {
	var input models.QRCodeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	image, contentType, err := h.service.GenerateQRCode(c.Request.Context(), input.ShortCode, input.Format)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Data(http.StatusOK, contentType, image)
}

// Stats godoc
// @Summary Click statistics for a short link
// @Tags urls
// @Produce json
// @Param code path string true "Short code"
// @Success 200 {object} models.ClickStats
// @Router /api/urls/stats/{code} [get]
func (h *LinkHandler) Stats(c *gin.Context) {
	stats, err := h.clickProcessor.GetStats(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// DailyStats godoc
// @Summary Daily click statistics
// @Tags urls
// @Produce json
// @Param code path string true "Short code"
// @Param days query int false "Number of days" default(7)
// @Success 200 {array} models.DailyClickStats
// @Router /api/urls/stats/{code}/daily [get]
func (h *LinkHandler) DailyStats(c *gin.Context) {
	days := 7
	if d := c.Query("days"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil || parsed < 1 || parsed > 90 {
			parsed = 7
		}
		days = parsed
	}

	stats, err := h.clickProcessor.GetDailyStats(c.Request.Context(), c.Param("code"), days)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Redirect обслуживает GET /{shortCode} как NoRoute-обработчик:
// зарегистрированные маршруты всегда в приоритете, а пути, не похожие
// на короткий код, получают обычный 404.
func (h *LinkHandler) Redirect(c *gin.Context) {
	code := ""
	if c.Request.Method == http.MethodGet {
		code = c.Request.URL.Path[1:] // без ведущего слэша
	}

	if !shortCodePattern.MatchString(code) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Route not found",
		})
		return
	}

	link, err := h.service.FindByShortCode(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrLinkExpired) {
			c.JSON(http.StatusGone, ErrorResponse{
				Error:   "gone",
				Message: "Link has expired",
			})
			return
		}
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Link not found",
		})
		return
	}

	// Асинхронная запись перехода; сбой только логируется
	event := &models.ClickEvent{
		ShortCode: code,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referer:   c.Request.Referer(),
	}
	if err := h.clickProcessor.RecordClick(c.Request.Context(), event); err != nil {
		h.logger.Debug("Failed to record click (non-blocking)", zap.Error(err))
	}

	c.Redirect(http.StatusFound, link.OriginalURL)
}

func (h *LinkHandler) linkResponses(links []models.Link) []LinkResponse {
	responses := make([]LinkResponse, 0, len(links))
	for i := range links {
		responses = append(responses, h.linkResponse(&links[i]))
	}
	return responses
}

// ownerRequest достаёт принципала и числовой id ссылки из запроса
func (h *LinkHandler) ownerRequest(c *gin.Context) (*models.User, int64, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Authentication required",
		})
		return nil, 0, false
	}

	linkID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Link ID must be a number",
		})
		return nil, 0, false
	}

	return user, linkID, true
}
