package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
// Values come from the environment (optionally seeded by a .env file);
// CLI flags override them after Load.
type Config struct {
	// 输入输出
	InputDir      string
	OutputDir     string
	DefaultPreset string
	PresetFile    string // Optional YAML file with extra presets
	WorkDir       string // Scratch space for intermediate artifacts, OS temp dir when empty

	// ffmpeg
	FFmpegPath      string
	FFprobePath     string
	FFmpegTimeout   time.Duration // Per stage invocation
	MaxOutputSizeMB int

	Workers         int
	FailOnFileError bool // Exit non-zero when any file fails
	WatchSettle     time.Duration

	// 日志
	LogLevel  string
	LogFile   string
	LogFormat string // "json" or "console"

	// HTTP status API
	ServerAddr string

	// Redis配置，REDIS_HOST 为空时不启用
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	// MySQL run history, DB_HOST 为空时不启用
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// MinIO archive, MINIO_ENDPOINT 为空时不启用
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool
	MinioPrefix    string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool accepts the forms strconv.ParseBool does plus yes/no and on/off.
func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
		return b
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s", "5m") or plain seconds ("300").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
// godotenv.Load does not override variables that are already set.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		InputDir:      getEnv("INPUT_DIR", "input"),
		OutputDir:     getEnv("OUTPUT_DIR", "output"),
		DefaultPreset: getEnv("DEFAULT_PRESET", "default"),
		PresetFile:    getEnv("PRESET_FILE", ""),
		WorkDir:       getEnv("WORK_DIR", ""),

		FFmpegPath:      getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:     getEnv("FFPROBE_PATH", "ffprobe"),
		FFmpegTimeout:   getEnvDuration("FFMPEG_TIMEOUT", 10*time.Minute),
		MaxOutputSizeMB: getEnvInt("MAX_OUTPUT_SIZE_MB", 0),

		Workers:         getEnvInt("WORKERS", 0),
		FailOnFileError: getEnvBool("FAIL_ON_FILE_ERROR", false),
		WatchSettle:     getEnvDuration("WATCH_SETTLE", 2*time.Second),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFile:   getEnv("LOG_FILE", ""),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		ServerAddr: getEnv("SERVER_ADDR", ":8080"),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""), // 默认无密码
		RedisDB:       getEnvInt("REDIS_DB", 0),     // 默认使用0号数据库
		RedisTTL:      getEnvDuration("REDIS_TTL", 7*24*time.Hour),

		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "voicecleaner"),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "voicecleaner"),
		MinioRegion:    getEnv("MINIO_REGION", ""),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioPrefix:    getEnv("MINIO_PREFIX", "runs"),
	}
}

// MaxOutputBytes converts MaxOutputSizeMB to bytes; zero means unlimited.
func (c *Config) MaxOutputBytes() int64 {
	if c.MaxOutputSizeMB <= 0 {
		return 0
	}
	return int64(c.MaxOutputSizeMB) * 1024 * 1024
}

// RedisEnabled reports whether a Redis report cache is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// DBEnabled reports whether MySQL run history is configured.
func (c *Config) DBEnabled() bool {
	return c.DBHost != ""
}

// MinioEnabled reports whether the MinIO archive is configured.
func (c *Config) MinioEnabled() bool {
	return c.MinioEndpoint != ""
}
