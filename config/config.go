package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Redis      RedisConfig
	Database   DatabaseConfig
	Firebase   FirebaseConfig
	Render     RenderConfig
	Upload     UploadConfig
	Visualizer VisualizerConfig
	App        AppConfig
}

type ServerConfig struct {
	Port        string
	CORSOrigins []string
}

type StoreConfig struct {
	Backend string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type DatabaseConfig struct {
	DSN       string
	MaxConns  int
	ConnectTO time.Duration
}

type FirebaseConfig struct {
	CredentialsPath string
	// ProjectID overrides the project read from the credentials file.
	ProjectID string
	// DevFallback accepts the X-User-Id header when no Firebase client is configured.
	DevFallback bool
}

type RenderConfig struct {
	BaseURL    string
	APIKey     string
	Provider   string
	Model      string
	Timeout    time.Duration
	RatePerMin int
}

type UploadConfig struct {
	MaxBytes      int64
	ProgressStep  int
	ProgressEvery time.Duration
	RedirectDelay time.Duration
}

type VisualizerConfig struct {
	// IdleTTL closes sessions nobody touched or streamed for this long.
	IdleTTL    time.Duration
	SweepEvery time.Duration
}

type AppConfig struct {
	Environment string
	LogLevel    string
	LogPretty   bool
	Version     string
}

func Load() (*Config, error) {
	// .env is optional; production injects the environment directly
	loadedEnv := godotenv.Load() == nil

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{"*"}),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", StoreRedis)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			DSN:       getEnv("DB_DSN", ""),
			MaxConns:  getEnvAsInt("DB_MAX_CONNS", 10),
			ConnectTO: getEnvAsDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
		},
		Firebase: FirebaseConfig{
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			DevFallback:     getEnvAsBool("AUTH_DEV_FALLBACK", false),
		},
		Render: RenderConfig{
			BaseURL:    getEnv("RENDER_BASE_URL", ""),
			APIKey:     getEnv("RENDER_API_KEY", ""),
			Provider:   getEnv("RENDER_PROVIDER", "gemini"),
			Model:      getEnv("RENDER_MODEL", "gemini-2.5-flash-image-preview"),
			Timeout:    getEnvAsDuration("RENDER_TIMEOUT", 2*time.Minute),
			RatePerMin: getEnvAsInt("RENDER_RATE_PER_MIN", 6),
		},
		Upload: UploadConfig{
			MaxBytes:      int64(getEnvAsInt("UPLOAD_MAX_BYTES", 10<<20)),
			ProgressStep:  getEnvAsInt("UPLOAD_PROGRESS_STEP", 15),
			ProgressEvery: getEnvAsDuration("UPLOAD_PROGRESS_INTERVAL", 100*time.Millisecond),
			RedirectDelay: getEnvAsDuration("UPLOAD_REDIRECT_DELAY", 600*time.Millisecond),
		},
		Visualizer: VisualizerConfig{
			IdleTTL:    getEnvAsDuration("VISUALIZER_IDLE_TTL", 30*time.Minute),
			SweepEvery: getEnvAsDuration("VISUALIZER_SWEEP_INTERVAL", time.Minute),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogPretty:   getEnvAsBool("LOG_PRETTY", false),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
	}

	if !loadedEnv && cfg.App.Environment == "development" {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	switch c.Store.Backend {
	case StoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis store")
		}
	case StorePostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("DB_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}

	if c.Render.BaseURL == "" {
		return fmt.Errorf("RENDER_BASE_URL is required")
	}

	if c.Firebase.CredentialsPath == "" && !c.Firebase.DevFallback {
		return fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required unless AUTH_DEV_FALLBACK is set")
	}

	if c.Upload.ProgressStep <= 0 {
		return fmt.Errorf("UPLOAD_PROGRESS_STEP must be positive")
	}

	if c.Upload.ProgressEvery <= 0 {
		return fmt.Errorf("UPLOAD_PROGRESS_INTERVAL must be positive")
	}

	if c.Visualizer.IdleTTL <= 0 || c.Visualizer.SweepEvery <= 0 {
		return fmt.Errorf("VISUALIZER_IDLE_TTL and VISUALIZER_SWEEP_INTERVAL must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Invalid integer for %s, using default: %d\n", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Invalid duration for %s, using default: %s\n", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
