package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ServerlessConfig holds serverless-specific configuration
type ServerlessConfig struct {
	IsLambda     bool
	FunctionName string
	Region       string
	TaskRoot     string
}

var (
	serverlessConfig *ServerlessConfig
	serverlessOnce   sync.Once
)

// GetServerlessConfig returns the serverless configuration
func GetServerlessConfig() *ServerlessConfig {
	serverlessOnce.Do(func() {
		serverlessConfig = detectServerless()
	})
	return serverlessConfig
}

func detectServerless() *ServerlessConfig {
	return &ServerlessConfig{
		IsLambda:     isRunningInLambda(),
		FunctionName: os.Getenv("AWS_LAMBDA_FUNCTION_NAME"),
		Region:       os.Getenv("AWS_REGION"),
		TaskRoot:     GetEnv("LAMBDA_TASK_ROOT", "/var/task"),
	}
}

// isRunningInLambda detects if the application is running in AWS Lambda
func isRunningInLambda() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

// IsServerlessMode returns true if running in serverless mode
func IsServerlessMode() bool {
	return GetServerlessConfig().IsLambda
}

// GetDeploymentMode returns the current deployment mode
func GetDeploymentMode() string {
	if IsServerlessMode() {
		return "serverless"
	}
	return "server"
}

// AdaptConfigForServerless modifies configuration for a Lambda deployment
func AdaptConfigForServerless(config *Config, sc *ServerlessConfig) *Config {
	if sc == nil || !sc.IsLambda {
		return config
	}

	// Only /tmp is writable inside Lambda and there is no local bucket
	if config.Storage.Type == "local" {
		config.Storage.Type = "s3"
	}
	if config.Storage.Region == "" {
		config.Storage.Region = sc.Region
	}
	if config.Metrics.Region == "" {
		config.Metrics.Region = sc.Region
	}

	// The renderer ships next to the handler in the deployment package
	if !filepath.IsAbs(config.Render.RendererBin) {
		config.Render.RendererBin = filepath.Join(sc.TaskRoot, strings.TrimPrefix(config.Render.RendererBin, "./"))
	}

	// CloudWatch Logs indexes JSON lines
	config.Log.Format = "json"

	return config
}

// GetOptimizedConfig returns validated configuration for the current deployment mode
func GetOptimizedConfig() (*Config, error) {
	config, err := Load()
	if err != nil {
		return nil, err
	}

	config = AdaptConfigForServerless(config, GetServerlessConfig())

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}
