package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"lumenpress/internal/config"
	"lumenpress/internal/db"
	"lumenpress/internal/domain"
	apihttp "lumenpress/internal/http"
	"lumenpress/internal/repository"
	"lumenpress/internal/service"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	// El esquema se aplica una sola vez, antes de aceptar tráfico.
	if err := db.InitSchema(ctx, pool); err != nil {
		logger.Fatal("schema init", zap.Error(err))
	}
	analyticsReady := true
	if err := db.InitAnalytics(ctx, pool); err != nil {
		logger.Warn("analytics init failed, tracking degraded", zap.Error(err))
		analyticsReady = false
	}

	userRepo := repository.NewPgUserRepository(pool)
	featureRepo := repository.NewPgFeatureRepository(pool)
	settingRepo := repository.NewPgSettingRepository(pool)

	if err := featureRepo.SeedDefaults(ctx, domain.DefaultFeatures()); err != nil {
		logger.Warn("feature seed failed", zap.Error(err))
	}

	var signInLimiter service.SignInRateLimiter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			signInLimiter = service.NewRedisSignInRateLimiter(redisClient, 10*time.Minute, 10)
		}
		cancel()
	}

	verifiers := map[string]service.IdentityVerifier{
		domain.ProviderGoogle: service.NewGoogleVerifier(cfg.GoogleClientID),
		domain.ProviderApple:  service.NewAppleVerifier(),
	}

	tokenSvc := service.NewTokenService(cfg.JWTSecret, time.Duration(cfg.SessionTTLHours)*time.Hour)
	authSvc := service.NewAuthService(logger, userRepo, verifiers, cfg.AdminEmail, signInLimiter)
	billingSvc := service.NewBillingService(logger, userRepo, service.BillingConfig{
		SecretKey:      cfg.StripeSecretKey,
		PublishableKey: cfg.StripePublishableKey,
		WebhookSecret:  cfg.StripeWebhookSecret,
		PriceBook:      cfg.StripePriceBook,
		PricePremium:   cfg.StripePricePremium,
		PublicBaseURL:  cfg.PublicBaseURL,
		SuccessURL:     cfg.CheckoutSuccessURL,
		AccountURL:     cfg.AccountURL,
	})
	lockSvc := service.NewLockService(logger, settingRepo, cfg.JWTSecret)

	var analyticsSvc *service.AnalyticsService
	if analyticsReady {
		analyticsSvc = service.NewAnalyticsService(logger, repository.NewPgAnalyticsRepository(pool))
	} else {
		analyticsSvc = service.NewAnalyticsService(logger, nil)
	}

	router := apihttp.NewRouter(apihttp.RouterOptions{
		Logger:      logger,
		Tokens:      tokenSvc,
		Users:       userRepo,
		Auth:        apihttp.NewAuthHandler(logger, authSvc, tokenSvc, cfg.Production),
		Admin:       apihttp.NewAdminHandler(logger, userRepo, featureRepo, settingRepo),
		Billing:     apihttp.NewBillingHandler(logger, billingSvc),
		Track:       apihttp.NewTrackHandler(logger, analyticsSvc),
		Settings:    apihttp.NewSettingsHandler(logger, lockSvc, featureRepo, cfg.Production),
		CORSOrigins: cfg.CORSOrigins,
		StaticDir:   cfg.StaticDir,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
