package config

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/RMahshie/sedconv/internal/storage"
)

// Config holds all configuration for the application
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Storage  StorageConfig
	AWS      AWSConfig
	Minio    MinioConfig
	Log      LogConfig
	Pipeline PipelineFileConfig
}

// DatabaseConfig holds database configuration. An empty URL selects the
// in-memory run repository.
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

// StorageConfig selects the artifact backend
type StorageConfig struct {
	Backend string
}

// AWSConfig holds AWS/S3 configuration
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	S3Endpoint      string
}

// MinioConfig holds MinIO configuration
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// PipelineFileConfig points at the pipeline YAML file
type PipelineFileConfig struct {
	Path string
}

// Load loads configuration from environment variables and .env files
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PIPELINE_CONFIG", "")
	v.SetDefault("STORAGE_BACKEND", storage.BackendLocal)
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_ACCESS_KEY_ID", "")
	v.SetDefault("AWS_SECRET_ACCESS_KEY", "")
	v.SetDefault("S3_BUCKET", "sedconv-artifacts")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")

	// Environment variables are bound first so ENVIRONMENT can pick the .env file
	v.AutomaticEnv()
	for _, key := range []string{
		"DATABASE_URL", "PORT", "ENVIRONMENT", "LOG_LEVEL", "PIPELINE_CONFIG",
		"STORAGE_BACKEND", "AWS_REGION", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
		"S3_BUCKET", "S3_ENDPOINT", "MINIO_ENDPOINT", "MINIO_ACCESS_KEY",
		"MINIO_SECRET_KEY", "MINIO_USE_SSL", "ALLOWED_ORIGINS",
	} {
		_ = v.BindEnv(key)
	}

	env := v.GetString("ENVIRONMENT")
	if env == "" {
		env = "dev" // Use "dev" to match .env.dev filename
	}

	v.SetConfigName(".env." + env)
	v.SetConfigType("env")
	v.AddConfigPath(".")

	// Read .env file (ignore error if file doesn't exist)
	_ = v.ReadInConfig()

	var config Config
	config.Database.URL = v.GetString("DATABASE_URL")
	config.Server.Port = v.GetString("PORT")
	config.Server.Env = env
	config.Server.AllowedOrigins = splitList(v.GetString("ALLOWED_ORIGINS"))
	config.Storage.Backend = strings.ToLower(v.GetString("STORAGE_BACKEND"))
	config.AWS.Region = v.GetString("AWS_REGION")
	config.AWS.AccessKeyID = v.GetString("AWS_ACCESS_KEY_ID")
	config.AWS.SecretAccessKey = v.GetString("AWS_SECRET_ACCESS_KEY")
	config.AWS.S3Bucket = v.GetString("S3_BUCKET")
	config.AWS.S3Endpoint = v.GetString("S3_ENDPOINT")
	config.Minio.Endpoint = v.GetString("MINIO_ENDPOINT")
	config.Minio.AccessKey = v.GetString("MINIO_ACCESS_KEY")
	config.Minio.SecretKey = v.GetString("MINIO_SECRET_KEY")
	config.Minio.UseSSL = v.GetBool("MINIO_USE_SSL")
	config.Minio.Bucket = v.GetString("S3_BUCKET")
	config.Log.Level = v.GetString("LOG_LEVEL")
	config.Pipeline.Path = v.GetString("PIPELINE_CONFIG")

	log.Debug().
		Str("environment", config.Server.Env).
		Str("storage_backend", config.Storage.Backend).
		Bool("database", config.Database.URL != "").
		Strs("allowed_origins", config.Server.AllowedOrigins).
		Msg("Configuration loaded")

	return &config, nil
}

// StorageFor builds the artifact store configuration rooted at outputRoot
func (c *Config) StorageFor(outputRoot string) storage.Config {
	return storage.Config{
		Backend: c.Storage.Backend,
		Root:    outputRoot,
		S3: storage.S3Config{
			Bucket:    c.AWS.S3Bucket,
			Endpoint:  c.AWS.S3Endpoint,
			Region:    c.AWS.Region,
			AccessKey: c.AWS.AccessKeyID,
			SecretKey: c.AWS.SecretAccessKey,
		},
		Minio: storage.MinioConfig{
			Endpoint:  c.Minio.Endpoint,
			AccessKey: c.Minio.AccessKey,
			SecretKey: c.Minio.SecretKey,
			UseSSL:    c.Minio.UseSSL,
			Bucket:    c.Minio.Bucket,
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
