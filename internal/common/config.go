package common

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/medflow/ocr-service/constants"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig         `mapstructure:"app"`
	Log       LogConfig         `mapstructure:"log"`
	OCR       OCRConfig         `mapstructure:"ocr"`
	Supported SupportedConfig   `mapstructure:"supported"`
	Thumbnail ThumbnailConfig   `mapstructure:"thumbnail"`
	Match     MatchConfig       `mapstructure:"match"`
	Shares    map[string]string `mapstructure:"network_shares"`
	MedFlow   MedFlowConfig     `mapstructure:"medflow"`
	Database  DatabaseConfig    `mapstructure:"db"`
	Batch     BatchConfig       `mapstructure:"batch"`
	Watch     WatchConfig       `mapstructure:"watch"`
	Server    ServerConfig      `mapstructure:"server"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Debug   bool   `mapstructure:"debug"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Lang                string  `mapstructure:"lang" validate:"required"`
	UseGPU              bool    `mapstructure:"use_gpu"`
	Engine              string  `mapstructure:"engine" validate:"oneof=gosseract tesseract-cli"`
	TesseractBin        string  `mapstructure:"tesseract_bin"`
	TessdataDir         string  `mapstructure:"tessdata_dir"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" validate:"gte=0,lte=1"`
}

// SupportedConfig holds the extension sets used for classification.
type SupportedConfig struct {
	ImageTypes []string `mapstructure:"image_types" validate:"required"`
	PDFTypes   []string `mapstructure:"pdf_types" validate:"required"`
	DICOMTypes []string `mapstructure:"dicom_types" validate:"required"`
}

type ThumbnailConfig struct {
	CacheDir    string         `mapstructure:"cache_dir" validate:"required"`
	Sizes       map[string]int `mapstructure:"sizes" validate:"required,dive,gt=0"`
	DefaultSize string         `mapstructure:"default_size" validate:"required"`
}

// MatchConfig holds the patient matching thresholds forwarded to the backend.
type MatchConfig struct {
	AutoLinkThreshold float64 `mapstructure:"auto_link_threshold" validate:"gte=0,lte=1"`
	SuggestThreshold  float64 `mapstructure:"suggest_threshold" validate:"gte=0,lte=1,ltefield=AutoLinkThreshold"`
}

type MedFlowConfig struct {
	BackendURL       string        `mapstructure:"backend_url" validate:"required,url"`
	Timeout          time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RequestsPerSec   float64       `mapstructure:"requests_per_sec" validate:"gt=0"`
	BreakerFailures  uint32        `mapstructure:"breaker_failures" validate:"gt=0"`
	BreakerOpenDelay time.Duration `mapstructure:"breaker_open_delay" validate:"gt=0"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type BatchConfig struct {
	Workers        int           `mapstructure:"workers" validate:"gte=1"`
	QueueSize      int           `mapstructure:"queue_size" validate:"gte=1"`
	ProcessTimeout time.Duration `mapstructure:"process_timeout" validate:"gt=0"`
	ResultTTL      time.Duration `mapstructure:"result_ttl" validate:"gt=0"`
}

type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Roots    []string      `mapstructure:"roots"`
	Device   string        `mapstructure:"device"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr         string        `mapstructure:"grpc_addr" validate:"required"`
	MetricsAddr      string        `mapstructure:"metrics_addr" validate:"required"`
	ShareCheckSpec   string        `mapstructure:"share_check_spec" validate:"required"`
	PurgeExpiredSpec string        `mapstructure:"purge_expired_spec" validate:"required"`
	ShutdownGrace    time.Duration `mapstructure:"shutdown_grace" validate:"gt=0"`
}

// DefaultNetworkShares mirrors the mount points the MedFlow backend prepares.
var DefaultNetworkShares = map[string]string{
	"zeiss":        "/tmp/medflow_mounts/ZEISS_RETINO",
	"solix":        "/tmp/medflow_mounts/Export_Solix_OCT",
	"tomey":        "/tmp/medflow_mounts/TOMEY_DATA",
	"export":       "/tmp/medflow_mounts/Export",
	"archives":     "/Volumes/Archives",
	"image_matrix": "/tmp/medflow_mounts/image_matrix",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "MedFlow OCR Service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.debug", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("ocr.lang", "fra")
	v.SetDefault("ocr.use_gpu", false)
	v.SetDefault("ocr.engine", "gosseract")
	v.SetDefault("ocr.tesseract_bin", "tesseract")
	v.SetDefault("ocr.tessdata_dir", "")
	v.SetDefault("ocr.confidence_threshold", 0.6)

	v.SetDefault("supported.image_types", constants.DefaultImageExtensions)
	v.SetDefault("supported.pdf_types", constants.DefaultPDFExtensions)
	v.SetDefault("supported.dicom_types", constants.DefaultDICOMExtensions)

	v.SetDefault("thumbnail.cache_dir", "/tmp/medflow_thumbnails")
	v.SetDefault("thumbnail.sizes", map[string]int{"small": 120, "medium": 720, "large": 1600})
	v.SetDefault("thumbnail.default_size", "medium")

	v.SetDefault("match.auto_link_threshold", 0.85)
	v.SetDefault("match.suggest_threshold", 0.60)

	v.SetDefault("network_shares", DefaultNetworkShares)

	v.SetDefault("medflow.backend_url", "http://localhost:5001")
	v.SetDefault("medflow.timeout", 30*time.Second)
	v.SetDefault("medflow.requests_per_sec", 10.0)
	v.SetDefault("medflow.breaker_failures", 5)
	v.SetDefault("medflow.breaker_open_delay", 30*time.Second)

	v.SetDefault("db.path", "medflow_ocr.db")

	v.SetDefault("batch.workers", 4)
	v.SetDefault("batch.queue_size", 256)
	v.SetDefault("batch.process_timeout", 3*time.Minute)
	v.SetDefault("batch.result_ttl", time.Hour)

	v.SetDefault("watch.enabled", false)
	v.SetDefault("watch.roots", []string{})
	v.SetDefault("watch.device", string(constants.GENERIC))
	v.SetDefault("watch.debounce", 2*time.Second)

	v.SetDefault("server.grpc_addr", ":8090")
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("server.share_check_spec", "@every 5m")
	v.SetDefault("server.purge_expired_spec", "@every 10m")
	v.SetDefault("server.shutdown_grace", 15*time.Second)
}

// LoadConfig reads defaults, an optional YAML file and the environment.
// Environment keys are the upper-cased config keys with dots replaced by
// underscores (OCR_LANG, THUMBNAIL_CACHE_DIR, MEDFLOW_BACKEND_URL, ...).
// An empty path looks for ./config.yaml and tolerates its absence.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, NewAppError(CodeConfig, "read config file "+path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, NewAppError(CodeConfig, "read config file", err)
			}
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// short aliases used by the deployment scripts
	_ = v.BindEnv("server.grpc_addr", "SERVER_GRPC_ADDR", "GRPC_ADDR")
	_ = v.BindEnv("server.metrics_addr", "SERVER_METRICS_ADDR", "METRICS_ADDR")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, NewAppError(CodeConfig, "decode config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if err := ValidateStruct(c); err != nil {
		return NewAppError(CodeConfig, "invalid configuration", err)
	}
	if _, ok := c.Thumbnail.Sizes[c.Thumbnail.DefaultSize]; !ok {
		return NewAppError(CodeConfig, "thumbnail.default_size must name a configured size", ErrInvalidInput)
	}
	return nil
}

// ExtensionSets returns the configured classification sets.
func (c *Config) ExtensionSets() constants.ExtensionSets {
	return constants.ExtensionSets{
		Image: c.Supported.ImageTypes,
		PDF:   c.Supported.PDFTypes,
		DICOM: c.Supported.DICOMTypes,
	}
}
