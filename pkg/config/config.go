package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
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

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Attendance AttendanceConfig
	Schedules  ScheduleCacheConfig
	Proofs     ProofsConfig
	S3         S3Config
	Exports    ExportsConfig
	Realtime   RealtimeConfig
	Metrics    MetricsConfig
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
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AttendanceConfig drives the eligibility engine and the submission workflow.
// PracticeDays uses time.Weekday numbering (Sunday = 0).
type AttendanceConfig struct {
	Timezone                string
	PracticeDays            []int
	OpenTime                string
	CloseTime               string
	LookaheadDays           int
	UpcomingDays            int
	StoreTimeout            time.Duration
	AllowDuplicates         bool
	FallbackOnEmptySchedule bool
}

// ScheduleCacheConfig toggles the redis cache in front of schedule lookups.
type ScheduleCacheConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// ProofsConfig controls evidence storage & validation.
type ProofsConfig struct {
	Driver           string
	StorageDir       string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	CleanupWorkers   int
	CleanupRetries   int
}

// S3Config is only consulted when ProofsConfig.Driver is "s3".
type S3Config struct {
	Bucket        string
	Region        string
	PublicBaseURL string
}

// ExportsConfig configures recap export files.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	TTL             time.Duration
	CleanupSchedule string
}

type RealtimeConfig struct {
	Enabled bool
}

type MetricsConfig struct {
	Enabled bool
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
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	practiceDays, err := parseWeekdays(v.GetString("ATTENDANCE_PRACTICE_DAYS"))
	if err != nil {
		return nil, err
	}
	cfg.Attendance = AttendanceConfig{
		Timezone:                v.GetString("ATTENDANCE_TIMEZONE"),
		PracticeDays:            practiceDays,
		OpenTime:                v.GetString("ATTENDANCE_OPEN_TIME"),
		CloseTime:               v.GetString("ATTENDANCE_CLOSE_TIME"),
		LookaheadDays:           v.GetInt("ATTENDANCE_LOOKAHEAD_DAYS"),
		UpcomingDays:            v.GetInt("ATTENDANCE_UPCOMING_DAYS"),
		StoreTimeout:            parseDuration(v.GetString("ATTENDANCE_STORE_TIMEOUT"), 5*time.Second),
		AllowDuplicates:         v.GetBool("ATTENDANCE_ALLOW_DUPLICATES"),
		FallbackOnEmptySchedule: v.GetBool("ATTENDANCE_FALLBACK_ON_EMPTY_SCHEDULE"),
	}

	cfg.Schedules = ScheduleCacheConfig{
		CacheEnabled: v.GetBool("ENABLE_SCHEDULE_CACHE"),
		CacheTTL:     parseDuration(v.GetString("SCHEDULE_CACHE_TTL"), time.Minute),
	}

	maxProofSize := v.GetInt64("PROOFS_MAX_FILE_SIZE")
	if maxProofSize <= 0 {
		maxProofSize = 5 * 1024 * 1024
	}
	cfg.Proofs = ProofsConfig{
		Driver:           strings.ToLower(v.GetString("PROOFS_STORAGE_DRIVER")),
		StorageDir:       v.GetString("PROOFS_STORAGE_DIR"),
		SignedURLSecret:  v.GetString("PROOFS_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("PROOFS_SIGNED_URL_TTL"), 30*time.Minute),
		MaxFileSizeBytes: maxProofSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("PROOFS_ALLOWED_MIME_TYPES")),
		CleanupWorkers:   v.GetInt("PROOFS_CLEANUP_WORKERS"),
		CleanupRetries:   v.GetInt("PROOFS_CLEANUP_RETRIES"),
	}

	cfg.S3 = S3Config{
		Bucket:        v.GetString("S3_BUCKET"),
		Region:        v.GetString("S3_REGION"),
		PublicBaseURL: v.GetString("S3_PUBLIC_BASE_URL"),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), time.Hour),
		TTL:             parseDuration(v.GetString("EXPORTS_TTL"), 24*time.Hour),
		CleanupSchedule: v.GetString("EXPORTS_CLEANUP_SCHEDULE"),
	}

	cfg.Realtime = RealtimeConfig{Enabled: v.GetBool("ENABLE_REALTIME")}
	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "ukm_attendance")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ATTENDANCE_TIMEZONE", "Asia/Jakarta")
	v.SetDefault("ATTENDANCE_PRACTICE_DAYS", "1,3,5")
	v.SetDefault("ATTENDANCE_OPEN_TIME", "13:00")
	v.SetDefault("ATTENDANCE_CLOSE_TIME", "22:00")
	v.SetDefault("ATTENDANCE_LOOKAHEAD_DAYS", 7)
	v.SetDefault("ATTENDANCE_UPCOMING_DAYS", 14)
	v.SetDefault("ATTENDANCE_STORE_TIMEOUT", "5s")
	v.SetDefault("ATTENDANCE_ALLOW_DUPLICATES", true)
	v.SetDefault("ATTENDANCE_FALLBACK_ON_EMPTY_SCHEDULE", false)

	v.SetDefault("ENABLE_SCHEDULE_CACHE", false)
	v.SetDefault("SCHEDULE_CACHE_TTL", "1m")

	v.SetDefault("PROOFS_STORAGE_DRIVER", "local")
	v.SetDefault("PROOFS_STORAGE_DIR", "./proofs")
	v.SetDefault("PROOFS_SIGNED_URL_SECRET", "dev_proofs_secret")
	v.SetDefault("PROOFS_SIGNED_URL_TTL", "30m")
	v.SetDefault("PROOFS_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("PROOFS_ALLOWED_MIME_TYPES", "image/jpeg,image/png,application/pdf")
	v.SetDefault("PROOFS_CLEANUP_WORKERS", 1)
	v.SetDefault("PROOFS_CLEANUP_RETRIES", 0)

	v.SetDefault("S3_BUCKET", "attendance-proofs")
	v.SetDefault("S3_REGION", "ap-southeast-1")
	v.SetDefault("S3_PUBLIC_BASE_URL", "")

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "1h")
	v.SetDefault("EXPORTS_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_SCHEDULE", "@hourly")

	v.SetDefault("ENABLE_REALTIME", true)
	v.SetDefault("ENABLE_METRICS", true)
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

// parseWeekdays turns "1,3,5" into sorted, de-duplicated weekday numbers.
func parseWeekdays(raw string) ([]int, error) {
	seen := make(map[int]struct{})
	days := make([]int, 0, 7)
	for _, part := range splitAndTrim(raw) {
		day, err := strconv.Atoi(part)
		if err != nil || day < 0 || day > 6 {
			return nil, fmt.Errorf("invalid practice day %q", part)
		}
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	if len(days) == 0 {
		return nil, errors.New("at least one practice day is required")
	}
	sort.Ints(days)
	return days, nil
}
