package config

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Server   ServerConfig   `env:",prefix=SERVER_"`
	Postgres PostgresConfig `env:",prefix=POSTGRES_"`
	Redis    RedisConfig    `env:",prefix=REDIS_"`
	JWT      JWTConfig      `env:",prefix=JWT_"`
	Whoop    WhoopConfig    `env:",prefix=WHOOP_"`
	Sync     SyncConfig     `env:",prefix=SYNC_"`
	Security SecurityConfig `env:",prefix="`
	CORS     CORSConfig     `env:",prefix=CORS_"`
	Env      string         `env:"ENV,default=development"`
}

type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=60s"`
}

type PostgresConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=5432"`
	User     string `env:"USER,default=wearable_sync"`
	Password string `env:"PASSWORD,default=wearable_sync_password"`
	DBName   string `env:"DB,default=wearable_sync_db"`
	SSLMode  string `env:"SSLMODE,default=disable"`
}

type RedisConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=6379"`
	Password string `env:"PASSWORD,default="`
	DB       int    `env:"DB,default=0"`
}

// JWTConfig holds the secret shared with the platform auth service that
// issues user bearer tokens.
type JWTConfig struct {
	Secret string `env:"SECRET,required"`
}

type WhoopConfig struct {
	ClientID          string   `env:"CLIENT_ID,required"`
	ClientSecret      string   `env:"CLIENT_SECRET,required"`
	RedirectURI       string   `env:"REDIRECT_URI,required"`
	AuthURL           string   `env:"AUTH_URL,default=https://api.prod.whoop.com/oauth/oauth2/auth"`
	TokenURL          string   `env:"TOKEN_URL,default=https://api.prod.whoop.com/oauth/oauth2/token"`
	APIBaseURL        string   `env:"API_BASE_URL,default=https://api.prod.whoop.com/developer"`
	Scopes            []string `env:"SCOPES,default=offline,read:recovery,read:cycles,read:workout,read:sleep,read:profile,read:body_measurement"`
	AppCallbackURL    string   `env:"APP_CALLBACK_URL,default=http://localhost:3000/integrations/whoop"`
	StateTTL          Duration `env:"STATE_TTL,default=10m"`
	RequestsPerMinute int      `env:"REQUESTS_PER_MINUTE,default=100"`
}

type SyncConfig struct {
	LookbackDays    int  `env:"LOOKBACK_DAYS,default=30"`
	ExtendedStreams bool `env:"EXTENDED_STREAMS,default=false"`
	MaxParallel     int  `env:"MAX_PARALLEL,default=3"`
}

type SecurityConfig struct {
	TokenEncryptionKey string   `env:"TOKEN_ENCRYPTION_KEY,required"`
	RateLimitRequests  int      `env:"RATE_LIMIT_REQUESTS,default=20"`
	RateLimitWindow    Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization"`
}

// DSN returns PostgreSQL connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// AppOrigin returns the scheme and host of the frontend callback page,
// used as the postMessage target origin.
func (w WhoopConfig) AppOrigin() string {
	u, err := url.Parse(w.AppCallbackURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	var config Config

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	if len(c.Security.TokenEncryptionKey) < 32 {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be at least 32 characters long")
	}

	if _, err := url.ParseRequestURI(c.Whoop.RedirectURI); err != nil {
		return fmt.Errorf("WHOOP_REDIRECT_URI is not a valid URL: %w", err)
	}

	if c.Sync.LookbackDays <= 0 {
		return fmt.Errorf("SYNC_LOOKBACK_DAYS must be positive")
	}

	if c.Sync.MaxParallel <= 0 {
		c.Sync.MaxParallel = 1
	}

	return nil
}
