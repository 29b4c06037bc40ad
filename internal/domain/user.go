package domain

import "time"

// Niveles de suscripción conocidos.
const (
	SubscriptionFree    = "free"
	SubscriptionPremium = "premium"
)

// Métodos de autenticación soportados.
const (
	ProviderGoogle = "google"
	ProviderApple  = "apple"
	ProviderEmail  = "email"
)

type User struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	DisplayName        string     `json:"display_name,omitempty"`
	PictureURL         string     `json:"picture_url,omitempty"`
	AuthProvider       string     `json:"auth_provider,omitempty"`
	AuthSubject        string     `json:"-"`
	PasswordHash       string     `json:"-"`
	IsAdmin            bool       `json:"is_admin"`
	SubscriptionStatus string     `json:"subscription_status"`
	HasBook            bool       `json:"has_book"`
	StripeCustomerID   string     `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
}

// IsPremium indica si el usuario tiene acceso de pago vigente.
func (u User) IsPremium() bool {
	return u.SubscriptionStatus == SubscriptionPremium
}
