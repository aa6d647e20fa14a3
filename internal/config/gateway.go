package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// GatewayConfig holds every path and limit the detection pipeline needs. It
// is passed to the service at construction; nothing reads the environment later.
type GatewayConfig struct {
	Port             string        `validate:"required,numeric"`
	Interpreter      string        `validate:"required"`
	Script           string        `validate:"required"`
	Weights          string        `validate:"required"`
	WorkDir          string        `validate:"required"`
	Subcommand       string        `validate:"required"`
	Timeout          time.Duration `validate:"gt=0"`
	StagingDir       string        `validate:"required"`
	MaxUploadSize    int64         `validate:"gt=0"`
	CORSAllowOrigins string        `validate:"required"`
	RedisAddress     string
	RedisPassword    string
	RedisDB          int           `validate:"gte=0"`
	ResultCacheTTL   time.Duration `validate:"gt=0"`
}

func LoadGatewayConfig(validate *validator.Validate) (*GatewayConfig, error) {
	root := getEnv("MODEL_ROOT", ".")

	cfg := &GatewayConfig{
		Port:             getEnv("APP_PORT", "3001"),
		Interpreter:      getEnv("MODEL_INTERPRETER", filepath.Join(root, ".venv", "bin", "python")),
		Script:           getEnv("MODEL_SCRIPT", filepath.Join(root, "AI-Model", "main.py")),
		Weights:          getEnv("MODEL_WEIGHTS", filepath.Join(root, "runs", "detect", "train2", "weights", "best.pt")),
		WorkDir:          getEnv("MODEL_WORKDIR", root),
		Subcommand:       getEnv("MODEL_SUBCOMMAND", "detect"),
		Timeout:          getEnvAsDuration("MODEL_TIMEOUT", 60*time.Second),
		StagingDir:       getEnv("STAGING_DIR", "uploads"),
		MaxUploadSize:    getEnvAsInt64("MAX_UPLOAD_SIZE", 10*1024*1024),
		CORSAllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "*"),
		RedisAddress:     os.Getenv("REDIS_ADDRESS"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getEnvAsInt("REDIS_DB", 0),
		ResultCacheTTL:   getEnvAsDuration("RESULT_CACHE_TTL", 10*time.Minute),
	}

	cfg.Interpreter = absCommand(cfg.Interpreter)
	cfg.Script = absPath(cfg.Script)
	cfg.Weights = absPath(cfg.Weights)
	cfg.WorkDir = absPath(cfg.WorkDir)
	cfg.StagingDir = absPath(cfg.StagingDir)

	if validate == nil {
		validate = validator.New()
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid gateway configuration: %w", err)
	}

	return cfg, nil
}

// absPath anchors a relative path at the gateway's working directory, so the
// prober and the child process (which runs in WorkDir) agree on it.
func absPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// absCommand is absPath for the interpreter, except that bare names such as
// "python3" are left for the PATH lookup.
func absCommand(p string) string {
	if !strings.ContainsRune(p, filepath.Separator) {
		return p
	}
	return absPath(p)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
