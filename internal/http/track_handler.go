package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lumenpress/internal/service"
)

// TrackHandler mantiene dependencias para los endpoints de analítica.
type TrackHandler struct {
	logger    *zap.Logger
	analytics *service.AnalyticsService
}

// NewTrackHandler crea una instancia de TrackHandler con dependencias necesarias.
func NewTrackHandler(logger *zap.Logger, analytics *service.AnalyticsService) *TrackHandler {
	return &TrackHandler{logger: logger, analytics: analytics}
}

// PageView maneja POST /track/pageview. Siempre responde éxito: un fallo de
// tracking no puede romper la navegación.
func (h *TrackHandler) PageView(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id"`
		Page      string `json:"page"`
		Referrer  string `json:"referrer"`
	}
	_ = c.ShouldBindJSON(&req)

	var userID string
	if claims, ok := GetAuthClaims(c); ok {
		userID = claims.UserID
	}
	h.analytics.RecordPageView(c.Request.Context(), service.PageViewInput{
		SessionID: req.SessionID,
		UserID:    userID,
		Page:      req.Page,
		Referrer:  req.Referrer,
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	})
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Click maneja POST /track/click.
func (h *TrackHandler) Click(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id"`
		Page      string `json:"page"`
		Element   string `json:"element"`
	}
	_ = c.ShouldBindJSON(&req)

	h.analytics.RecordClick(c.Request.Context(), service.ClickInput{
		SessionID: req.SessionID,
		Page:      req.Page,
		Element:   req.Element,
		UserAgent: c.GetHeader("User-Agent"),
	})
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Stats maneja GET /track/stats. Solo admins.
func (h *TrackHandler) Stats(c *gin.Context) {
	stats, err := h.analytics.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("stats failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
