package domain

import "time"

type Feature struct {
	Key       string    `json:"key"`
	Label     string    `json:"label"`
	Icon      string    `json:"icon,omitempty"`
	TargetURL string    `json:"target_url,omitempty"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultFeatures es el set sembrado en el primer arranque. Nunca se borra
// automáticamente; los admins solo alternan enabled.
func DefaultFeatures() []Feature {
	return []Feature{
		{Key: "home", Label: "Inicio", Icon: "home", TargetURL: "/", Enabled: true},
		{Key: "book", Label: "Libro", Icon: "book", TargetURL: "/book", Enabled: true},
		{Key: "premium", Label: "Premium", Icon: "star", TargetURL: "/premium", Enabled: true},
		{Key: "blog", Label: "Blog", Icon: "pencil", TargetURL: "/blog", Enabled: true},
		{Key: "account", Label: "Cuenta", Icon: "user", TargetURL: "/account", Enabled: true},
	}
}
