package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Upload flag modes for UPLOAD_TO_S3
const (
	// UploadFlagBool parses UPLOAD_TO_S3 with strconv.ParseBool
	UploadFlagBool = "bool"
	// UploadFlagTruthy opens the gate for any non-empty value, "false" included
	UploadFlagTruthy = "truthy"
)

// Config holds all configuration for the function
type Config struct {
	Environment string `validate:"required"`
	Port        string `validate:"required"`
	Log         LogConfig
	Render      RenderConfig
	Upload      UploadConfig
	Storage     StorageConfig
	Metrics     MetricsConfig
	Server      ServerConfig
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `validate:"oneof=trace debug info warn warning error fatal panic"`
	Format string `validate:"oneof=json text"`
}

// RenderConfig holds renderer subprocess configuration
type RenderConfig struct {
	StartURL           string        `validate:"required,url"`
	ArtifactPath       string        `validate:"required"`
	UniqueArtifactPath bool
	RendererBin        string `validate:"required"`
	RendererArgs       []string
	RenderTimeout      time.Duration `validate:"gt=0"`
	InvocationTimeout  time.Duration `validate:"gte=0"`
	ViewportWidth      int           `validate:"gt=0"`
	ViewportHeight     int           `validate:"gt=0"`
	FullPage           bool
	ChromeBin          string
}

// UploadConfig holds screenshot upload configuration
type UploadConfig struct {
	Flag          string // raw UPLOAD_TO_S3 value
	FlagMode      string `validate:"oneof=bool truthy"`
	Enabled       bool
	Await         bool
	Timeout       time.Duration `validate:"gt=0"`
	EnvironmentID string        `validate:"required"`
	BucketName    string        `validate:"required"`
	BucketPrefix  string
	ExpiryDays    int `validate:"gte=0"`
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Type      string `validate:"oneof=local s3 mock"` // "local" or "s3"
	LocalPath string
	Region    string
}

// MetricsConfig holds CloudWatch metrics configuration
type MetricsConfig struct {
	Enabled   bool
	Namespace string `validate:"required"`
	Region    string
}

// ServerConfig holds local HTTP server limits
type ServerConfig struct {
	MaxConcurrentRenders int64   `validate:"gt=0"`
	RateLimitRPS         float64 `validate:"gt=0"`
	RateLimitBurst       int     `validate:"gt=0"`
}

// Load loads configuration from environment variables and a .env file
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	viper.AutomaticEnv()
	viper.SetDefault("PORT", "8081")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")

	viper.SetDefault("START_URL", "https://www.google.com/")
	viper.SetDefault("SCREENSHOT_TEMP_FILE", "/tmp/phantomjs_screenshot.png")
	viper.SetDefault("UNIQUE_ARTIFACT_PATH", true)
	viper.SetDefault("RENDERER_BIN", "./renderer")
	viper.SetDefault("RENDER_TIMEOUT", "30s")
	viper.SetDefault("INVOCATION_TIMEOUT", "0s")
	viper.SetDefault("VIEWPORT_WIDTH", 1280)
	viper.SetDefault("VIEWPORT_HEIGHT", 800)
	viper.SetDefault("FULL_PAGE", true)

	viper.SetDefault("UPLOAD_FLAG_MODE", UploadFlagBool)
	viper.SetDefault("UPLOAD_AWAIT", false)
	viper.SetDefault("UPLOAD_TIMEOUT", "30s")
	viper.SetDefault("ENVIRONMENT_ID", "development")
	viper.SetDefault("BUCKET_NAME", "ssh-pipeline")
	viper.SetDefault("BUCKET_PREFIX", "phantomjs/screenshots")
	viper.SetDefault("BUCKET_EXPIRY_DAYS", 14)

	viper.SetDefault("STORAGE_TYPE", "local")
	viper.SetDefault("STORAGE_LOCAL_PATH", "./data/screenshots")

	viper.SetDefault("PUBLISH_METRICS", false)
	viper.SetDefault("METRIC_NAMESPACE", "PhantomJS")

	viper.SetDefault("MAX_CONCURRENT_RENDERS", 2)
	viper.SetDefault("RATE_LIMIT_RPS", 1.0)
	viper.SetDefault("RATE_LIMIT_BURST", 2)

	config := &Config{
		Environment: viper.GetString("ENVIRONMENT"),
		Port:        viper.GetString("PORT"),
		Log: LogConfig{
			Level:  strings.ToLower(viper.GetString("LOG_LEVEL")),
			Format: strings.ToLower(viper.GetString("LOG_FORMAT")),
		},
		Render: RenderConfig{
			StartURL:           viper.GetString("START_URL"),
			ArtifactPath:       viper.GetString("SCREENSHOT_TEMP_FILE"),
			UniqueArtifactPath: viper.GetBool("UNIQUE_ARTIFACT_PATH"),
			RendererBin:        viper.GetString("RENDERER_BIN"),
			RendererArgs:       viper.GetStringSlice("RENDERER_ARGS"),
			RenderTimeout:      viper.GetDuration("RENDER_TIMEOUT"),
			InvocationTimeout:  viper.GetDuration("INVOCATION_TIMEOUT"),
			ViewportWidth:      viper.GetInt("VIEWPORT_WIDTH"),
			ViewportHeight:     viper.GetInt("VIEWPORT_HEIGHT"),
			FullPage:           viper.GetBool("FULL_PAGE"),
			ChromeBin:          viper.GetString("CHROME_BIN"),
		},
		Upload: UploadConfig{
			// No default: an unset flag must stay distinguishable from "false"
			Flag:          viper.GetString("UPLOAD_TO_S3"),
			FlagMode:      strings.ToLower(viper.GetString("UPLOAD_FLAG_MODE")),
			Await:         viper.GetBool("UPLOAD_AWAIT"),
			Timeout:       viper.GetDuration("UPLOAD_TIMEOUT"),
			EnvironmentID: viper.GetString("ENVIRONMENT_ID"),
			BucketName:    viper.GetString("BUCKET_NAME"),
			BucketPrefix:  strings.Trim(viper.GetString("BUCKET_PREFIX"), "/"),
			ExpiryDays:    viper.GetInt("BUCKET_EXPIRY_DAYS"),
		},
		Storage: StorageConfig{
			Type:      strings.ToLower(viper.GetString("STORAGE_TYPE")),
			LocalPath: viper.GetString("STORAGE_LOCAL_PATH"),
			Region:    viper.GetString("AWS_REGION"),
		},
		Metrics: MetricsConfig{
			Enabled:   viper.GetBool("PUBLISH_METRICS"),
			Namespace: viper.GetString("METRIC_NAMESPACE"),
			Region:    viper.GetString("AWS_REGION"),
		},
		Server: ServerConfig{
			MaxConcurrentRenders: viper.GetInt64("MAX_CONCURRENT_RENDERS"),
			RateLimitRPS:         viper.GetFloat64("RATE_LIMIT_RPS"),
			RateLimitBurst:       viper.GetInt("RATE_LIMIT_BURST"),
		},
	}

	enabled, err := UploadGate(config.Upload.Flag, config.Upload.FlagMode)
	if err != nil {
		return nil, err
	}
	config.Upload.Enabled = enabled

	return config, nil
}

// Validate checks the configuration against its struct tags
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// EffectiveInvocationTimeout is the wall-clock limit for one invocation.
// Zero InvocationTimeout means the render timeout plus a grace period for
// browser start-up and teardown.
func (r RenderConfig) EffectiveInvocationTimeout() time.Duration {
	if r.InvocationTimeout > 0 {
		return r.InvocationTimeout
	}
	return r.RenderTimeout + 10*time.Second
}

// UploadGate decides whether UPLOAD_TO_S3 enables uploads under mode.
//
// In UploadFlagBool mode the value is parsed as a boolean and garbage is an
// error. In UploadFlagTruthy mode any non-empty string enables the upload,
// which is how the flag historically behaved: "false" turns uploads on.
func UploadGate(flag, mode string) (bool, error) {
	switch mode {
	case UploadFlagTruthy:
		return flag != "", nil
	case UploadFlagBool, "":
		if strings.TrimSpace(flag) == "" {
			return false, nil
		}
		enabled, err := strconv.ParseBool(strings.TrimSpace(flag))
		if err != nil {
			return false, fmt.Errorf("UPLOAD_TO_S3: cannot parse %q as boolean", flag)
		}
		return enabled, nil
	default:
		return false, fmt.Errorf("UPLOAD_FLAG_MODE: unknown mode %q", mode)
	}
}

// GetEnv gets an environment variable with a fallback value
func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
