package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lumenpress/internal/service"
)

// RouterOptions agrupa las dependencias del router.
type RouterOptions struct {
	Logger      *zap.Logger
	Tokens      *service.TokenService
	Users       AdminLookup
	Auth        *AuthHandler
	Admin       *AdminHandler
	Billing     *BillingHandler
	Track       *TrackHandler
	Settings    *SettingsHandler
	CORSOrigins []string
	StaticDir   string
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(opts RouterOptions) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(opts.Logger), gin.Recovery())
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))
	r.Use(SessionMiddleware(opts.Tokens))

	if opts.StaticDir != "" {
		r.Use(static.Serve("/", static.LocalFile(opts.StaticDir, true)))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	auth := r.Group("/auth")
	auth.POST("/google", opts.Auth.GoogleLogin)
	auth.POST("/apple", opts.Auth.AppleLogin)
	auth.POST("/email/signup", opts.Auth.SignUp)
	auth.POST("/email/signin", opts.Auth.SignIn)
	auth.POST("/logout", opts.Auth.Logout)
	auth.GET("/me", RequireAuth(), opts.Auth.Me)

	admin := r.Group("/admin", RequireAdmin(opts.Users))
	admin.GET("/users", opts.Admin.ListUsers)
	admin.GET("/users/:id", opts.Admin.GetUser)
	admin.PATCH("/users/:id", opts.Admin.PatchUser)
	admin.GET("/features", opts.Admin.ListFeatures)
	admin.GET("/features/:key", opts.Admin.GetFeature)
	admin.PATCH("/features/:key", opts.Admin.PatchFeature)
	admin.GET("/settings", opts.Admin.ListSettings)
	admin.POST("/settings", opts.Admin.UpsertSetting)

	stripe := r.Group("/stripe")
	stripe.GET("/config", opts.Billing.Config)
	stripe.POST("/create-checkout", RequireAuth(), opts.Billing.CreateCheckout)
	stripe.GET("/checkout-success", opts.Billing.CheckoutSuccess)
	// El webhook lee el body crudo él mismo; no pasa por binding JSON.
	stripe.POST("/webhook", opts.Billing.Webhook)

	track := r.Group("/track")
	track.POST("/pageview", opts.Track.PageView)
	track.POST("/click", opts.Track.Click)
	track.GET("/stats", RequireAdmin(opts.Users), opts.Track.Stats)

	r.GET("/settings", opts.Settings.LockStatus)
	r.POST("/settings/unlock", opts.Settings.Unlock)
	r.GET("/features", opts.Settings.Features)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Stripe-Signature"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
