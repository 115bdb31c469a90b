package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/authentic/backend/internal/client"
	"github.com/authentic/backend/internal/config"
	"github.com/authentic/backend/internal/db"
	"github.com/authentic/backend/internal/handler"
	"github.com/authentic/backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const sessionSweepInterval = time.Hour

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using process environment")
	}

	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("postgres init failed: %v", err)
	}
	defer pool.Close()

	store := &db.Postgres{Pool: pool}
	if err := store.EnsureAuthSchema(ctx); err != nil {
		log.Fatalf("schema init failed: %v", err)
	}

	tokenSvc, err := service.NewTokenService(store, cfg.Auth)
	if err != nil {
		log.Fatalf("token service init failed: %v", err)
	}

	otpSvc, err := service.NewOtpService(store, store, cfg.Auth)
	if err != nil {
		log.Fatalf("otp service init failed: %v", err)
	}

	googleClient, err := client.NewGoogleClient(ctx, cfg.Google)
	if err != nil {
		log.Fatalf("google client init failed: %v", err)
	}
	if !googleClient.IsConfigured() {
		log.Println("google login disabled: GOOGLE_CLIENT_ID not set")
	}

	mailer := client.NewMailer(cfg.Mail)
	if !mailer.IsConfigured() {
		log.Println("otp mail delivery disabled: SENDER_EMAIL/SENDER_PASSWORD not set")
	}

	captcha := client.NewCaptchaClient(cfg.Captcha)

	limiter, err := service.NewRateLimiter(cfg.RateLimit)
	if err != nil {
		log.Fatalf("rate limiter init failed: %v", err)
	}
	if !limiter.IsConfigured() {
		log.Println("rate limiting disabled: REDIS_URL not set")
	}

	authSvc := service.NewAuthService(store, otpSvc, tokenSvc, mailer, googleClient, captcha)
	authHandler := handler.NewAuthHandler(authSvc, tokenSvc, cfg.Server.FrontendOrigin)

	go sweepExpiredSessions(ctx, store)

	router := gin.Default()
	router.Use(handler.CORSMiddleware(strings.Split(cfg.Server.AllowedOrigins, ","), true))

	router.GET("/", handler.Root)
	router.GET("/healthz", handler.Ping)
	router.GET("/openapi.json", handler.OpenAPIDoc)

	auth := router.Group("/api/auth")
	auth.Use(handler.RateLimitMiddleware(limiter))
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/google", authHandler.GoogleLogin)
		auth.GET("/google/callback", authHandler.GoogleCallback)
		auth.POST("/resend-otp", authHandler.ResendOtp)
		auth.POST("/verify-otp", authHandler.VerifyOtp)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", authHandler.Logout)

		protected := auth.Group("")
		protected.Use(handler.AuthMiddleware(tokenSvc))
		protected.GET("/whoami", authHandler.Whoami)
		protected.GET("/security-audit", authHandler.SecurityAudit)
	}

	log.Printf("server listening on :%s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func sweepExpiredSessions(ctx context.Context, store *db.Postgres) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		purged, err := store.PurgeExpiredRefreshSessions(ctx)
		if err != nil {
			log.Printf("session sweep failed: %v", err)
			continue
		}
		if purged > 0 {
			log.Printf("session sweep removed %d expired rows", purged)
		}
	}
}
