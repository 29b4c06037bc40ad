package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"lumenpress/internal/domain"
	"lumenpress/internal/repository"
)

// AdminHandler mantiene dependencias para la consola de administración.
type AdminHandler struct {
	logger   *zap.Logger
	users    repository.UserRepository
	features repository.FeatureRepository
	settings repository.SettingRepository
}

// NewAdminHandler crea una instancia de AdminHandler con dependencias necesarias.
func NewAdminHandler(logger *zap.Logger, users repository.UserRepository, features repository.FeatureRepository, settings repository.SettingRepository) *AdminHandler {
	return &AdminHandler{
		logger:   logger,
		users:    users,
		features: features,
		settings: settings,
	}
}

// ListUsers maneja GET /admin/users.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context(), 0)
	if err != nil {
		h.logger.Error("list users failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// GetUser maneja GET /admin/users/:id.
func (h *AdminHandler) GetUser(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Error("get user failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// PatchUser maneja PATCH /admin/users/:id. Solo los campos presentes en el
// body se actualizan.
func (h *AdminHandler) PatchUser(c *gin.Context) {
	var req struct {
		DisplayName        *string `json:"display_name"`
		PictureURL         *string `json:"picture_url"`
		IsAdmin            *bool   `json:"is_admin"`
		SubscriptionStatus *string `json:"subscription_status"`
		HasBook            *bool   `json:"has_book"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.SubscriptionStatus != nil &&
		*req.SubscriptionStatus != domain.SubscriptionFree &&
		*req.SubscriptionStatus != domain.SubscriptionPremium {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription status"})
		return
	}

	user, err := h.users.Patch(c.Request.Context(), c.Param("id"), repository.UserPatch{
		DisplayName:        req.DisplayName,
		PictureURL:         req.PictureURL,
		IsAdmin:            req.IsAdmin,
		SubscriptionStatus: req.SubscriptionStatus,
		HasBook:            req.HasBook,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Error("patch user failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ListFeatures maneja GET /admin/features.
func (h *AdminHandler) ListFeatures(c *gin.Context) {
	features, err := h.features.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list features failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list features"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"features": features})
}

// GetFeature maneja GET /admin/features/:key.
func (h *AdminHandler) GetFeature(c *gin.Context) {
	feature, err := h.features.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "feature not found"})
			return
		}
		h.logger.Error("get feature failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load feature"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"feature": feature})
}

// PatchFeature maneja PATCH /admin/features/:key.
func (h *AdminHandler) PatchFeature(c *gin.Context) {
	var req struct {
		Label     *string `json:"label"`
		Icon      *string `json:"icon"`
		TargetURL *string `json:"target_url"`
		Enabled   *bool   `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	feature, err := h.features.Patch(c.Request.Context(), c.Param("key"), repository.FeaturePatch{
		Label:     req.Label,
		Icon:      req.Icon,
		TargetURL: req.TargetURL,
		Enabled:   req.Enabled,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "feature not found"})
			return
		}
		h.logger.Error("patch feature failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update feature"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"feature": feature})
}

// ListSettings maneja GET /admin/settings.
func (h *AdminHandler) ListSettings(c *gin.Context) {
	settings, err := h.settings.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list settings failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list settings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// UpsertSetting maneja POST /admin/settings. El password de desbloqueo del
// sitelock nunca se guarda en claro.
func (h *AdminHandler) UpsertSetting(c *gin.Context) {
	var req struct {
		Key   string `json:"key" binding:"required"`
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	value := req.Value
	if req.Key == domain.SettingSitelockPassword && value != "" {
		hashBytes, err := bcrypt.GenerateFromPassword([]byte(value), bcrypt.DefaultCost)
		if err != nil {
			h.logger.Error("hash unlock password failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save setting"})
			return
		}
		value = string(hashBytes)
	}

	if err := h.settings.Set(c.Request.Context(), req.Key, value); err != nil {
		h.logger.Error("upsert setting failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save setting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}
