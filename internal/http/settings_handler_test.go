package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lumenpress/internal/domain"
	"lumenpress/internal/service"
)

type failingSettingRepo struct{}

func (failingSettingRepo) Get(_ context.Context, _ string) (string, error) {
	return "", errors.New("store unreachable")
}

func (failingSettingRepo) Set(_ context.Context, _, _ string) error {
	return errors.New("store unreachable")
}

func (failingSettingRepo) List(_ context.Context) ([]domain.Setting, error) {
	return nil, errors.New("store unreachable")
}

func TestLockStatusFailOpenOverHTTP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	lock := service.NewLockService(logger, failingSettingRepo{}, "secret")
	handler := NewSettingsHandler(logger, lock, nil, false)

	r := gin.New()
	r.GET("/settings", handler.LockStatus)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("lock status must never fail, got %d", w.Code)
	}
	var resp struct {
		Enabled bool `json:"sitelock_enabled"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Enabled {
		t.Fatalf("store failure must read as unlocked")
	}
}

func TestUnlockWrongPassword(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	lock := service.NewLockService(logger, failingSettingRepo{}, "secret")
	handler := NewSettingsHandler(logger, lock, nil, false)

	r := gin.New()
	r.POST("/settings/unlock", handler.Unlock)

	w := postJSON(t, r, "/settings/unlock", gin.H{"password": "nope"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
