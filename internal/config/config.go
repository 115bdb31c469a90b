package config

import "os"

type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Google    GoogleConfig
	Mail      MailConfig
	Captcha   CaptchaConfig
	RateLimit RateLimitConfig
	Postgres  PostgresConfig
}

type ServerConfig struct {
	Port           string
	FrontendOrigin string
	AllowedOrigins string
}

type AuthConfig struct {
	JWTSecret      string
	JWTAccessTTL   string
	JWTRefreshTTL  string
	OtpTTL         string
	CookieSecure   string
	CookieSameSite string
	CookiePath     string
	CookieDomain   string
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

type MailConfig struct {
	SMTPHost   string
	SMTPPort   string
	SenderName string
	Sender     string
	Password   string
}

type CaptchaConfig struct {
	Secret    string
	VerifyURL string
}

type RateLimitConfig struct {
	RedisURL    string
	MaxRequests string
	Window      string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			Port:           getenv("PORT", "4000"),
			FrontendOrigin: getenv("FRONTEND_ORIGIN", "http://localhost:5173"),
			AllowedOrigins: getenv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080"),
		},
		Auth: AuthConfig{
			JWTSecret:      os.Getenv("JWT_SECRET"),
			JWTAccessTTL:   getenv("JWT_ACCESS_TTL", "15m"),
			JWTRefreshTTL:  getenv("JWT_REFRESH_TTL", "720h"),
			OtpTTL:         getenv("OTP_TTL", "5m"),
			CookieSecure:   os.Getenv("AUTH_COOKIE_SECURE"),
			CookieSameSite: getenv("AUTH_COOKIE_SAMESITE", "strict"),
			CookiePath:     getenv("AUTH_COOKIE_PATH", "/api/auth"),
			CookieDomain:   os.Getenv("AUTH_COOKIE_DOMAIN"),
		},
		Google: GoogleConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURI:  os.Getenv("GOOGLE_REDIRECT_URI"),
		},
		Mail: MailConfig{
			SMTPHost:   getenv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:   getenv("SMTP_PORT", "587"),
			SenderName: getenv("SENDER_NAME", "Authentic"),
			Sender:     os.Getenv("SENDER_EMAIL"),
			Password:   os.Getenv("SENDER_PASSWORD"),
		},
		Captcha: CaptchaConfig{
			Secret:    os.Getenv("CAPTCHA_SECRET"),
			VerifyURL: getenv("CAPTCHA_VERIFY_URL", "https://www.google.com/recaptcha/api/siteverify"),
		},
		RateLimit: RateLimitConfig{
			RedisURL:    os.Getenv("REDIS_URL"),
			MaxRequests: getenv("RATE_LIMIT_MAX", "100"),
			Window:      getenv("RATE_LIMIT_WINDOW", "15m"),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
