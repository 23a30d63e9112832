package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Google      GoogleConfig
	Classroom   ClassroomConfig
	Sync        SyncConfig
	Leaderboard LeaderboardConfig
	Stats       StatsConfig
	Jobs        JobsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// GoogleConfig holds the OAuth client registered with the classroom provider.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
}

// ClassroomConfig tunes outbound calls to the classroom directory API.
type ClassroomConfig struct {
	Endpoint       string
	PageSize       int64
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// SyncConfig bounds a single roster synchronisation.
type SyncConfig struct {
	FetchConcurrency int
	Timeout          time.Duration
}

// LeaderboardConfig governs leaderboard caching.
type LeaderboardConfig struct {
	CacheTTL time.Duration
}

// StatsConfig tunes per-student diagnostic flags.
type StatsConfig struct {
	LowAttendanceThreshold float64
	RecentWindow           int
}

// JobsConfig configures the background queue.
type JobsConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Google = GoogleConfig{
		ClientID:     v.GetString("GOOGLE_CLIENT_ID"),
		ClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
		RedirectURL:  v.GetString("GOOGLE_REDIRECT_URL"),
		AuthURL:      v.GetString("GOOGLE_AUTH_URL"),
		TokenURL:     v.GetString("GOOGLE_TOKEN_URL"),
	}

	pageSize := v.GetInt64("CLASSROOM_PAGE_SIZE")
	if pageSize <= 0 {
		pageSize = 100
	}
	cfg.Classroom = ClassroomConfig{
		Endpoint:       v.GetString("CLASSROOM_ENDPOINT"),
		PageSize:       pageSize,
		RequestTimeout: parseDuration(v.GetString("CLASSROOM_REQUEST_TIMEOUT"), 15*time.Second),
		MaxRetries:     v.GetInt("CLASSROOM_MAX_RETRIES"),
		RetryBaseDelay: parseDuration(v.GetString("CLASSROOM_RETRY_BASE_DELAY"), 250*time.Millisecond),
	}

	cfg.Sync = SyncConfig{
		FetchConcurrency: v.GetInt("SYNC_FETCH_CONCURRENCY"),
		Timeout:          parseDuration(v.GetString("SYNC_TIMEOUT"), 2*time.Minute),
	}

	cfg.Leaderboard = LeaderboardConfig{
		CacheTTL: parseDuration(v.GetString("LEADERBOARD_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Stats = StatsConfig{
		LowAttendanceThreshold: v.GetFloat64("STATS_LOW_ATTENDANCE_THRESHOLD"),
		RecentWindow:           v.GetInt("STATS_RECENT_WINDOW"),
	}

	cfg.Jobs = JobsConfig{
		Workers:    v.GetInt("JOBS_WORKERS"),
		MaxRetries: v.GetInt("JOBS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("JOBS_RETRY_DELAY"), time.Second),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "classroom_engagement")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "classroom-engagement-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_REDIRECT_URL", "http://localhost:5173/auth/callback")
	v.SetDefault("GOOGLE_AUTH_URL", "")
	v.SetDefault("GOOGLE_TOKEN_URL", "")

	v.SetDefault("CLASSROOM_ENDPOINT", "")
	v.SetDefault("CLASSROOM_PAGE_SIZE", 100)
	v.SetDefault("CLASSROOM_REQUEST_TIMEOUT", "15s")
	v.SetDefault("CLASSROOM_MAX_RETRIES", 2)
	v.SetDefault("CLASSROOM_RETRY_BASE_DELAY", "250ms")

	v.SetDefault("SYNC_FETCH_CONCURRENCY", 8)
	v.SetDefault("SYNC_TIMEOUT", "2m")

	v.SetDefault("LEADERBOARD_CACHE_TTL", "5m")
	v.SetDefault("STATS_LOW_ATTENDANCE_THRESHOLD", 0.75)
	v.SetDefault("STATS_RECENT_WINDOW", 3)

	v.SetDefault("JOBS_WORKERS", 2)
	v.SetDefault("JOBS_MAX_RETRIES", 3)
	v.SetDefault("JOBS_RETRY_DELAY", "1s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
