package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort        string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL     string `env:"DATABASE_URL,required"`
	JWTSecret       string `env:"JWT_SECRET,required"`
	SessionTTLHours int    `env:"SESSION_TTL_HOURS" envDefault:"720"`
	AdminEmail      string `env:"ADMIN_EMAIL"`
	GoogleClientID  string `env:"GOOGLE_CLIENT_ID"`

	StripeSecretKey      string `env:"STRIPE_SECRET_KEY"`
	StripePublishableKey string `env:"STRIPE_PUBLISHABLE_KEY"`
	StripeWebhookSecret  string `env:"STRIPE_WEBHOOK_SECRET"`
	StripePriceBook      string `env:"STRIPE_PRICE_BOOK"`
	StripePricePremium   string `env:"STRIPE_PRICE_PREMIUM"`
	PublicBaseURL        string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	CheckoutSuccessURL   string `env:"CHECKOUT_SUCCESS_URL" envDefault:"/account?purchase=success"`
	AccountURL           string `env:"ACCOUNT_URL" envDefault:"/account"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	StaticDir   string   `env:"STATIC_DIR"`
	Production  bool     `env:"PRODUCTION" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
