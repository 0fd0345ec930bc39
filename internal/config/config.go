package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	S3         S3Config
	Classifier ClassifierConfig
	Processing ProcessingConfig
	Buyer      BuyerConfig
	Queue      QueueConfig
	CORS       CORSConfig
	Log        LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
	IncomingDir  string        `mapstructure:"incoming_dir"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds AWS S3 settings.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	MaxFileSizeMB int64  `mapstructure:"max_file_size_mb"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
	UploadWorkers int    `mapstructure:"upload_workers"`
}

// ClassifierConfig holds vision classifier settings.
type ClassifierConfig struct {
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	TimeoutSecs int    `mapstructure:"timeout_secs"`
}

// ProcessingConfig holds the two-pass analysis and grouping thresholds.
type ProcessingConfig struct {
	MaxConcurrent       int     `mapstructure:"max_concurrent"`
	RetryConcurrent     int     `mapstructure:"retry_concurrent"`
	MaxRetries          int     `mapstructure:"max_retries"`
	BackoffBaseMillis   int     `mapstructure:"backoff_base_millis"`
	LowConfidence       float64 `mapstructure:"low_confidence"`
	ReviewThreshold     float64 `mapstructure:"review_threshold"`
	RasterQuality       int     `mapstructure:"raster_quality"`
	BatchTimeoutMinutes int     `mapstructure:"batch_timeout_minutes"`
}

// BuyerConfig identifies the buying organization so its own letterhead is
// never mistaken for a supplier.
type BuyerConfig struct {
	NamePatterns []string `mapstructure:"name_patterns"`
	TaxIDs       []string `mapstructure:"tax_ids"`
}

// QueueConfig holds batch queue worker settings.
type QueueConfig struct {
	PollIntervalSecs int `mapstructure:"poll_interval_secs"`
	Concurrency      int `mapstructure:"concurrency"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from environment variables with the SCANFLOW_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCANFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.incoming_dir", "/var/lib/scanflow/incoming")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "scanflow")
	v.SetDefault("db.password", "scanflow_secret")
	v.SetDefault("db.name", "scanflow_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// S3 defaults
	v.SetDefault("s3.region", "eu-west-1")
	v.SetDefault("s3.bucket", "scanflow-artifacts")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.max_file_size_mb", 100)
	v.SetDefault("s3.presign_expiry", 3600)
	v.SetDefault("s3.upload_workers", 4)

	// Classifier defaults
	v.SetDefault("classifier.api_key", "")
	v.SetDefault("classifier.model", "gpt-4o")
	v.SetDefault("classifier.timeout_secs", 60)

	// Processing defaults
	v.SetDefault("processing.max_concurrent", 10)
	v.SetDefault("processing.retry_concurrent", 3)
	v.SetDefault("processing.max_retries", 3)
	v.SetDefault("processing.backoff_base_millis", 500)
	v.SetDefault("processing.low_confidence", 0.6)
	v.SetDefault("processing.review_threshold", 0.7)
	v.SetDefault("processing.raster_quality", 85)
	v.SetDefault("processing.batch_timeout_minutes", 30)

	// Buyer defaults (comma-separated)
	v.SetDefault("buyer.name_patterns", "")
	v.SetDefault("buyer.tax_ids", "")

	// Queue defaults
	v.SetDefault("queue.poll_interval_secs", 10)
	v.SetDefault("queue.concurrency", 2)

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":          "SCANFLOW_SERVER_PORT",
		"server.read_timeout":  "SCANFLOW_SERVER_READ_TIMEOUT",
		"server.write_timeout": "SCANFLOW_SERVER_WRITE_TIMEOUT",
		"server.environment":   "SCANFLOW_SERVER_ENVIRONMENT",
		"server.incoming_dir":  "SCANFLOW_SERVER_INCOMING_DIR",
		"db.host":              "SCANFLOW_DB_HOST",
		"db.port":              "SCANFLOW_DB_PORT",
		"db.user":              "SCANFLOW_DB_USER",
		"db.password":          "SCANFLOW_DB_PASSWORD",
		"db.name":              "SCANFLOW_DB_NAME",
		"db.sslmode":           "SCANFLOW_DB_SSLMODE",
		"db.max_open":          "SCANFLOW_DB_MAX_OPEN",
		"db.max_idle":          "SCANFLOW_DB_MAX_IDLE",
		"s3.region":            "SCANFLOW_S3_REGION",
		"s3.bucket":            "SCANFLOW_S3_BUCKET",
		"s3.endpoint":          "SCANFLOW_S3_ENDPOINT",
		"s3.access_key":        "SCANFLOW_S3_ACCESS_KEY",
		"s3.secret_key":        "SCANFLOW_S3_SECRET_KEY",
		"s3.max_file_size_mb":  "SCANFLOW_S3_MAX_FILE_SIZE_MB",
		"s3.presign_expiry":    "SCANFLOW_S3_PRESIGN_EXPIRY",
		"s3.upload_workers":    "SCANFLOW_S3_UPLOAD_WORKERS",
		"classifier.api_key":      "SCANFLOW_CLASSIFIER_API_KEY",
		"classifier.model":        "SCANFLOW_CLASSIFIER_MODEL",
		"classifier.timeout_secs": "SCANFLOW_CLASSIFIER_TIMEOUT_SECS",
		"processing.max_concurrent":        "SCANFLOW_PROCESSING_MAX_CONCURRENT",
		"processing.retry_concurrent":      "SCANFLOW_PROCESSING_RETRY_CONCURRENT",
		"processing.max_retries":           "SCANFLOW_PROCESSING_MAX_RETRIES",
		"processing.backoff_base_millis":   "SCANFLOW_PROCESSING_BACKOFF_BASE_MILLIS",
		"processing.low_confidence":        "SCANFLOW_PROCESSING_LOW_CONFIDENCE",
		"processing.review_threshold":      "SCANFLOW_PROCESSING_REVIEW_THRESHOLD",
		"processing.raster_quality":        "SCANFLOW_PROCESSING_RASTER_QUALITY",
		"processing.batch_timeout_minutes": "SCANFLOW_PROCESSING_BATCH_TIMEOUT_MINUTES",
		"buyer.name_patterns":      "SCANFLOW_BUYER_NAME_PATTERNS",
		"buyer.tax_ids":            "SCANFLOW_BUYER_TAX_IDS",
		"queue.poll_interval_secs": "SCANFLOW_QUEUE_POLL_INTERVAL_SECS",
		"queue.concurrency":        "SCANFLOW_QUEUE_CONCURRENCY",
		"cors.allowed_origins":     "SCANFLOW_CORS_ALLOWED_ORIGINS",
		"log.level":                "SCANFLOW_LOG_LEVEL",
		"log.format":               "SCANFLOW_LOG_FORMAT",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if SCANFLOW_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("SCANFLOW_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
		IncomingDir:  v.GetString("server.incoming_dir"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		MaxFileSizeMB: v.GetInt64("s3.max_file_size_mb"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
		UploadWorkers: v.GetInt("s3.upload_workers"),
	}
	cfg.Classifier = ClassifierConfig{
		APIKey:      v.GetString("classifier.api_key"),
		Model:       v.GetString("classifier.model"),
		TimeoutSecs: v.GetInt("classifier.timeout_secs"),
	}
	cfg.Processing = ProcessingConfig{
		MaxConcurrent:       v.GetInt("processing.max_concurrent"),
		RetryConcurrent:     v.GetInt("processing.retry_concurrent"),
		MaxRetries:          v.GetInt("processing.max_retries"),
		BackoffBaseMillis:   v.GetInt("processing.backoff_base_millis"),
		LowConfidence:       v.GetFloat64("processing.low_confidence"),
		ReviewThreshold:     v.GetFloat64("processing.review_threshold"),
		RasterQuality:       v.GetInt("processing.raster_quality"),
		BatchTimeoutMinutes: v.GetInt("processing.batch_timeout_minutes"),
	}
	cfg.Buyer = BuyerConfig{
		NamePatterns: splitCSV(v.GetString("buyer.name_patterns")),
		TaxIDs:       splitCSV(v.GetString("buyer.tax_ids")),
	}
	cfg.Queue = QueueConfig{
		PollIntervalSecs: v.GetInt("queue.poll_interval_secs"),
		Concurrency:      v.GetInt("queue.concurrency"),
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: splitCSV(v.GetString("cors.allowed_origins")),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	return cfg, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
