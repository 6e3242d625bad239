package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("UPLOAD_TO_S3", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Render.StartURL != "https://www.google.com/" {
		t.Errorf("StartURL = %q", cfg.Render.StartURL)
	}
	if cfg.Render.ArtifactPath != "/tmp/phantomjs_screenshot.png" {
		t.Errorf("ArtifactPath = %q", cfg.Render.ArtifactPath)
	}
	if cfg.Metrics.Namespace != "PhantomJS" {
		t.Errorf("Namespace = %q", cfg.Metrics.Namespace)
	}
	if cfg.Upload.EnvironmentID != "development" {
		t.Errorf("EnvironmentID = %q", cfg.Upload.EnvironmentID)
	}
	if cfg.Upload.BucketName != "ssh-pipeline" {
		t.Errorf("BucketName = %q", cfg.Upload.BucketName)
	}
	if cfg.Upload.BucketPrefix != "phantomjs/screenshots" {
		t.Errorf("BucketPrefix = %q", cfg.Upload.BucketPrefix)
	}
	if cfg.Upload.ExpiryDays != 14 {
		t.Errorf("ExpiryDays = %d", cfg.Upload.ExpiryDays)
	}
	if cfg.Upload.Enabled {
		t.Error("Upload should be disabled by default")
	}
	if cfg.Render.RenderTimeout != 30*time.Second {
		t.Errorf("RenderTimeout = %v", cfg.Render.RenderTimeout)
	}
	if !cfg.Render.UniqueArtifactPath {
		t.Error("UniqueArtifactPath should default to true")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("START_URL", "https://example.com")
	t.Setenv("SCREENSHOT_TEMP_FILE", "/tmp/x.png")
	t.Setenv("UPLOAD_TO_S3", "true")
	t.Setenv("BUCKET_PREFIX", "/shots/")
	t.Setenv("RENDER_TIMEOUT", "5s")
	t.Setenv("RENDERER_ARGS", "--flag value")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Render.StartURL != "https://example.com" {
		t.Errorf("StartURL = %q", cfg.Render.StartURL)
	}
	if cfg.Render.ArtifactPath != "/tmp/x.png" {
		t.Errorf("ArtifactPath = %q", cfg.Render.ArtifactPath)
	}
	if !cfg.Upload.Enabled {
		t.Error("Upload should be enabled")
	}
	if cfg.Upload.BucketPrefix != "shots" {
		t.Errorf("BucketPrefix = %q", cfg.Upload.BucketPrefix)
	}
	if cfg.Render.RenderTimeout != 5*time.Second {
		t.Errorf("RenderTimeout = %v", cfg.Render.RenderTimeout)
	}
	if got := cfg.Render.EffectiveInvocationTimeout(); got != 15*time.Second {
		t.Errorf("EffectiveInvocationTimeout = %v", got)
	}
	if len(cfg.Render.RendererArgs) != 2 || cfg.Render.RendererArgs[0] != "--flag" {
		t.Errorf("RendererArgs = %v", cfg.Render.RendererArgs)
	}
}

func TestLoadRejectsUnparseableFlag(t *testing.T) {
	t.Setenv("UPLOAD_TO_S3", "maybe")
	t.Setenv("UPLOAD_FLAG_MODE", "bool")

	if _, err := Load(); err == nil {
		t.Error("Expected error for unparseable UPLOAD_TO_S3")
	}
}

func TestUploadGate(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		mode    string
		want    bool
		wantErr bool
	}{
		{"bool unset", "", UploadFlagBool, false, false},
		{"bool false", "false", UploadFlagBool, false, false},
		{"bool true", "true", UploadFlagBool, true, false},
		{"bool one", "1", UploadFlagBool, true, false},
		{"bool garbage", "yes please", UploadFlagBool, false, true},
		{"empty mode is bool", "false", "", false, false},
		{"truthy unset", "", UploadFlagTruthy, false, false},
		{"truthy literal false", "false", UploadFlagTruthy, true, false},
		{"truthy anything", "0", UploadFlagTruthy, true, false},
		{"unknown mode", "true", "yaml", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UploadGate(tt.flag, tt.mode)
			if (err != nil) != tt.wantErr {
				t.Fatalf("UploadGate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("UploadGate(%q, %q) = %v, want %v", tt.flag, tt.mode, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("UPLOAD_TO_S3", "")

	base := func() *Config {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad url", func(c *Config) { c.Render.StartURL = "not a url" }},
		{"zero render timeout", func(c *Config) { c.Render.RenderTimeout = 0 }},
		{"unknown storage", func(c *Config) { c.Storage.Type = "gcs" }},
		{"negative expiry", func(c *Config) { c.Upload.ExpiryDays = -1 }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"no bucket", func(c *Config) { c.Upload.BucketName = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestAdaptConfigForServerless(t *testing.T) {
	t.Setenv("UPLOAD_TO_S3", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg.Log.Format = "text"

	t.Run("NotLambda", func(t *testing.T) {
		out := AdaptConfigForServerless(cfg, &ServerlessConfig{IsLambda: false})
		if out.Storage.Type != "local" {
			t.Errorf("Storage.Type = %q, want local", out.Storage.Type)
		}
	})

	t.Run("Lambda", func(t *testing.T) {
		out := AdaptConfigForServerless(cfg, &ServerlessConfig{
			IsLambda: true,
			Region:   "eu-west-1",
			TaskRoot: "/var/task",
		})
		if out.Storage.Type != "s3" {
			t.Errorf("Storage.Type = %q, want s3", out.Storage.Type)
		}
		if out.Storage.Region != "eu-west-1" {
			t.Errorf("Storage.Region = %q", out.Storage.Region)
		}
		if out.Render.RendererBin != "/var/task/renderer" {
			t.Errorf("RendererBin = %q", out.Render.RendererBin)
		}
		if out.Log.Format != "json" {
			t.Errorf("Log.Format = %q", out.Log.Format)
		}
	})
}
