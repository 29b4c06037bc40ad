package domain

import "time"

// Clases de dispositivo derivadas del user-agent.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

type PageView struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id,omitempty"`
	Page      string    `json:"page"`
	Referrer  string    `json:"referrer,omitempty"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Device    string    `json:"device"`
	CreatedAt time.Time `json:"created_at"`
}

type Click struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Page      string    `json:"page"`
	Element   string    `json:"element"`
	CreatedAt time.Time `json:"created_at"`
}

type CountedItem struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Stats es el agregado que consume el dashboard de administración.
type Stats struct {
	TotalViews      int64         `json:"total_views"`
	ViewsLastDay    int64         `json:"views_last_day"`
	ViewsLastWeek   int64         `json:"views_last_week"`
	ViewsLastMonth  int64         `json:"views_last_month"`
	UniqueSessions  int64         `json:"unique_sessions"`
	UniqueIPs       int64         `json:"unique_ips"`
	TopPages        []CountedItem `json:"top_pages"`
	DeviceBreakdown []CountedItem `json:"device_breakdown"`
	TopReferrers    []CountedItem `json:"top_referrers"`
	TopClicks       []CountedItem `json:"top_clicks"`
	RecentViews     []PageView    `json:"recent_views"`
}
