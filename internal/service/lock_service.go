package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"lumenpress/internal/domain"
	"lumenpress/internal/repository"
)

// LockService controla el splash de bloqueo del sitio. Política fail-open:
// cualquier error al consultar el estado se comporta como "desbloqueado".
type LockService struct {
	logger   *zap.Logger
	settings repository.SettingRepository
	secret   string
}

var ErrWrongUnlockPassword = errors.New("wrong unlock password")

func NewLockService(logger *zap.Logger, settings repository.SettingRepository, secret string) *LockService {
	return &LockService{logger: logger, settings: settings, secret: secret}
}

type LockStatus struct {
	Enabled bool   `json:"sitelock_enabled"`
	Message string `json:"sitelock_message,omitempty"`
}

// Status devuelve el estado del lock. Un request con cookie de bypass
// válida lee como desbloqueado.
func (s *LockService) Status(ctx context.Context, bypassCookie string) LockStatus {
	if s.settings == nil {
		return LockStatus{}
	}
	enabled, err := s.settings.Get(ctx, domain.SettingSitelockEnabled)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) && s.logger != nil {
			s.logger.Warn("sitelock status lookup failed", zap.Error(err))
		}
		return LockStatus{}
	}
	if enabled != "true" {
		return LockStatus{}
	}
	if s.VerifyBypass(bypassCookie) {
		return LockStatus{}
	}
	message, err := s.settings.Get(ctx, domain.SettingSitelockMessage)
	if err != nil {
		message = ""
	}
	return LockStatus{Enabled: true, Message: message}
}

// Unlock compara el password contra el hash guardado y, si coincide,
// devuelve el valor de la cookie de bypass.
func (s *LockService) Unlock(ctx context.Context, password string) (string, error) {
	if s.settings == nil {
		return "", ErrWrongUnlockPassword
	}
	hash, err := s.settings.Get(ctx, domain.SettingSitelockPassword)
	if err != nil || strings.TrimSpace(hash) == "" {
		return "", ErrWrongUnlockPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrWrongUnlockPassword
	}
	return s.bypassValue(), nil
}

// VerifyBypass valida la cookie de bypass en tiempo constante.
func (s *LockService) VerifyBypass(cookieValue string) bool {
	if cookieValue == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieValue), []byte(s.bypassValue())) == 1
}

// bypassValue es una constante derivada del secreto del servicio: es un
// valor compartido, no un token por sesión. Comportamiento heredado.
func (s *LockService) bypassValue() string {
	sum := sha256.Sum256([]byte("sitelock-bypass:" + s.secret))
	return hex.EncodeToString(sum[:])
}
