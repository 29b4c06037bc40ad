package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lumenpress/internal/domain"
	"lumenpress/internal/repository"
)

// Firmas de user-agent de automatización. Los eventos que matchean se
// aceptan pero no se persisten.
var botSignatures = []string{
	"bot", "crawler", "spider", "slurp", "curl", "wget", "python-requests",
	"headless", "lighthouse", "pingdom", "uptimerobot", "facebookexternalhit",
}

// AnalyticsService ingiere eventos best-effort: un fallo interno jamás debe
// romper la navegación del usuario.
type AnalyticsService struct {
	logger *zap.Logger
	events repository.AnalyticsRepository
}

func NewAnalyticsService(logger *zap.Logger, events repository.AnalyticsRepository) *AnalyticsService {
	return &AnalyticsService{logger: logger, events: events}
}

type PageViewInput struct {
	SessionID string
	UserID    string
	Page      string
	Referrer  string
	IP        string
	UserAgent string
}

type ClickInput struct {
	SessionID string
	Page      string
	Element   string
	UserAgent string
}

// RecordPageView persiste la vista salvo que el user-agent parezca un bot.
// Los errores se loguean y se tragan.
func (s *AnalyticsService) RecordPageView(ctx context.Context, input PageViewInput) {
	if s.events == nil || IsBot(input.UserAgent) {
		return
	}
	view := domain.PageView{
		ID:        uuid.NewString(),
		SessionID: input.SessionID,
		UserID:    input.UserID,
		Page:      input.Page,
		Referrer:  input.Referrer,
		IP:        input.IP,
		UserAgent: input.UserAgent,
		Device:    DeviceClass(input.UserAgent),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.events.InsertPageView(ctx, view); err != nil && s.logger != nil {
		s.logger.Warn("record page view failed", zap.Error(err))
	}
}

// RecordClick persiste el click con la misma política best-effort y el
// mismo filtro de bots que las vistas.
func (s *AnalyticsService) RecordClick(ctx context.Context, input ClickInput) {
	if s.events == nil || IsBot(input.UserAgent) {
		return
	}
	click := domain.Click{
		ID:        uuid.NewString(),
		SessionID: input.SessionID,
		Page:      input.Page,
		Element:   input.Element,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.events.InsertClick(ctx, click); err != nil && s.logger != nil {
		s.logger.Warn("record click failed", zap.Error(err))
	}
}

// Stats arma el agregado para el dashboard de administración.
func (s *AnalyticsService) Stats(ctx context.Context) (domain.Stats, error) {
	if s.events == nil {
		return domain.Stats{}, nil
	}
	return s.events.Stats(ctx, time.Now().UTC())
}

// IsBot reconoce user-agents de automatización conocidos.
func IsBot(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	if ua == "" {
		return true
	}
	for _, sig := range botSignatures {
		if strings.Contains(ua, sig) {
			return true
		}
	}
	return false
}

// DeviceClass clasifica el user-agent en mobile, tablet o desktop con
// patrones gruesos.
func DeviceClass(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return domain.DeviceTablet
	case strings.Contains(ua, "android") && !strings.Contains(ua, "mobile"):
		return domain.DeviceTablet
	case strings.Contains(ua, "mobi") || strings.Contains(ua, "iphone") || strings.Contains(ua, "android"):
		return domain.DeviceMobile
	default:
		return domain.DeviceDesktop
	}
}
