package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lumenpress/internal/repository"
	"lumenpress/internal/service"
)

const bypassCookieMaxAge = 7 * 24 * 60 * 60

// SettingsHandler mantiene dependencias para el estado público del sitio:
// lock y feature flags.
type SettingsHandler struct {
	logger        *zap.Logger
	lock          *service.LockService
	features      repository.FeatureRepository
	secureCookies bool
}

// NewSettingsHandler crea una instancia de SettingsHandler con dependencias necesarias.
func NewSettingsHandler(logger *zap.Logger, lock *service.LockService, features repository.FeatureRepository, secureCookies bool) *SettingsHandler {
	return &SettingsHandler{
		logger:        logger,
		lock:          lock,
		features:      features,
		secureCookies: secureCookies,
	}
}

// LockStatus maneja GET /settings. Lo consulta el script de arranque del
// cliente antes de renderizar; la política es fail-open.
func (h *SettingsHandler) LockStatus(c *gin.Context) {
	bypass, _ := c.Cookie(BypassCookieName)
	status := h.lock.Status(c.Request.Context(), bypass)
	c.JSON(http.StatusOK, status)
}

// Unlock maneja POST /settings/unlock.
func (h *SettingsHandler) Unlock(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	cookieValue, err := h.lock.Unlock(c.Request.Context(), req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong password"})
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(BypassCookieName, cookieValue, bypassCookieMaxAge, "/", "", h.secureCookies, true)
	c.JSON(http.StatusOK, gin.H{"status": "unlocked"})
}

// Features maneja GET /features.
func (h *SettingsHandler) Features(c *gin.Context) {
	features, err := h.features.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list features failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list features"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"features": features})
}
