package domain

// Claves de settings usadas por el servicio.
const (
	SettingSitelockEnabled  = "sitelock_enabled"
	SettingSitelockMessage  = "sitelock_message"
	SettingSitelockPassword = "sitelock_password"
)

type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
