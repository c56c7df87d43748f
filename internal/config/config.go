package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root configuration for the service.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Models   ModelsConfig   `mapstructure:"models"`
	Matcher  MatcherConfig  `mapstructure:"matcher"`
	Index    IndexConfig    `mapstructure:"index"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`   // sqlite file path
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the driver-specific connection string.
// Parameters: none.
// Returns:
//   - string: DSN for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
	return c.Path
}

type StorageConfig struct {
	Type      string `mapstructure:"type"` // local or s3
	LocalDir  string `mapstructure:"local_dir"`
	PublicURL string `mapstructure:"public_url"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
}

// ModelsConfig groups the model artifacts and remote inference endpoints.
type ModelsConfig struct {
	Dir      string          `mapstructure:"dir"` // classifier artifact directory
	Vision   InferenceConfig `mapstructure:"vision"`
	Reranker InferenceConfig `mapstructure:"reranker"`
	Matting  MattingConfig   `mapstructure:"matting"`
}

// InferenceConfig describes one remote inference endpoint.
type InferenceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MattingConfig describes the optional background-removal endpoint.
type MattingConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type MatcherConfig struct {
	TopK    int `mapstructure:"top_k"`     // default result truncation
	MaxTopK int `mapstructure:"max_top_k"` // upper bound for caller-supplied top_k
}

// IndexConfig configures the optional vector shortlist index.
type IndexConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Collection    string `mapstructure:"collection"`
	APIKey        string `mapstructure:"api_key"`
	UseTLS        bool   `mapstructure:"use_tls"`
	VectorDim     int    `mapstructure:"vector_dim"`
	MinPoolSize   int    `mapstructure:"min_pool_size"`  // pools at or below this size skip the shortlist
	ShortlistSize int    `mapstructure:"shortlist_size"` // candidates kept when shortlisting
}

type UploadConfig struct {
	MaxSizeMB int `mapstructure:"max_size_mb"`
	ImageSize int `mapstructure:"image_size"` // square edge of processed images
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// Load reads configuration from file and environment.
// Parameters:
//   - configPath: explicit config file path; empty searches ./configs and the
//     working directory for config.yaml.
// Returns:
//   - *Config: populated configuration.
//   - error: non-nil if the file is malformed or unmarshaling fails.
func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("models.vision.api_key", "VISION_API_KEY")
	v.BindEnv("models.reranker.api_key", "RERANKER_API_KEY")
	v.BindEnv("models.matting.api_key", "MATTING_API_KEY")
	v.BindEnv("index.api_key", "QDRANT_API_KEY")
	v.BindEnv("index.host", "QDRANT_HOST")
	v.BindEnv("index.port", "QDRANT_PORT")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/refind.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_dir", "./static/uploads")
	v.SetDefault("storage.public_url", "/uploads")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "refind-items")

	v.SetDefault("models.dir", "./ml_models")
	v.SetDefault("models.vision.base_url", "http://localhost:8501")
	v.SetDefault("models.vision.model", "dinov2-base")
	v.SetDefault("models.vision.timeout", "30s")
	v.SetDefault("models.reranker.base_url", "http://localhost:8502")
	v.SetDefault("models.reranker.model", "bge-reranker-v2-m3")
	v.SetDefault("models.reranker.timeout", "15s")
	v.SetDefault("models.matting.enabled", false)
	v.SetDefault("models.matting.base_url", "http://localhost:7000")
	v.SetDefault("models.matting.timeout", "60s")

	v.SetDefault("matcher.top_k", 5)
	v.SetDefault("matcher.max_top_k", 50)

	v.SetDefault("index.enabled", false)
	v.SetDefault("index.host", "localhost")
	v.SetDefault("index.port", 6334)
	v.SetDefault("index.collection", "item_embeddings")
	v.SetDefault("index.vector_dim", 768)
	v.SetDefault("index.min_pool_size", 200)
	v.SetDefault("index.shortlist_size", 100)

	v.SetDefault("upload.max_size_mb", 10)
	v.SetDefault("upload.image_size", 448)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.compress", true)
}
