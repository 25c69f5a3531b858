package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Catalog   CatalogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Import    ImportConfig
	Quiz      QuizConfig
	JWT       JWTConfig
	Log       LogConfig
	Tracing   TracingConfig   `mapstructure:"tracing"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ImportOnce   string `mapstructure:"-"`
	ValidateOnly bool   `mapstructure:"-"`
}

type ServerConfig struct {
	Port string
	Mode string
}

// CatalogConfig 题库存储根目录；Root 可通过 CFAQUIZ_CATALOG_ROOT 覆盖，
// 方便在应用目录之外运行的导入工具使用
type CatalogConfig struct {
	Root             string `mapstructure:"root"`
	Backend          string `mapstructure:"backend"` // file | database | redis
	BundledQuestions string `mapstructure:"bundled_questions"`
	BundledFormulas  string `mapstructure:"bundled_formulas"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite | mysql
	DSN    string `mapstructure:"dsn"`
	Debug  bool   `mapstructure:"debug"`
}

type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string `mapstructure:"key_prefix"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioSecure   bool   `mapstructure:"minio_secure"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type ImportConfig struct {
	InboxDir          string        `mapstructure:"inbox_dir"`
	WatchInbox        bool          `mapstructure:"watch_inbox"`
	Debounce          time.Duration `mapstructure:"debounce"`
	ExplanationPolicy string        `mapstructure:"explanation_policy"` // placeholder | empty
	MaxChoices        int           `mapstructure:"max_choices"`
	MaxUploadMB       int64         `mapstructure:"max_upload_mb"`
}

type QuizConfig struct {
	DefaultQuestions int `mapstructure:"default_questions"`
	SnapshotEvery    int `mapstructure:"snapshot_every"` // 计时模式下每隔多少秒写一次快照
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("catalog.root", "./data")
	v.SetDefault("catalog.backend", "file")
	v.SetDefault("catalog.bundled_questions", "")
	v.SetDefault("catalog.bundled_formulas", "")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.key_prefix", "cfaquiz:")

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "")

	v.SetDefault("import.inbox_dir", "")
	v.SetDefault("import.watch_inbox", true)
	v.SetDefault("import.debounce", time.Second)
	v.SetDefault("import.explanation_policy", "placeholder")
	v.SetDefault("import.max_choices", 6)
	v.SetDefault("import.max_upload_mb", 256)

	v.SetDefault("quiz.default_questions", 20)
	v.SetDefault("quiz.snapshot_every", 10)

	v.SetDefault("jwt.expire_hours", 24)

	v.SetDefault("log.level", "")
	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)

	v.SetDefault("rate_limit.max_requests", 600)
	v.SetDefault("rate_limit.window_minutes", 1)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("CFAQUIZ")
	v.AutomaticEnv()

	// Catalog
	v.BindEnv("catalog.root", "CFAQUIZ_CATALOG_ROOT", "CFAPP_REPO_ROOT")
	v.BindEnv("catalog.backend", "CATALOG_BACKEND")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("server.port", "SERVER_PORT")

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.dsn", "DATABASE_DSN")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")
	v.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	v.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	v.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	v.BindEnv("storage.oss_bucket", "OSS_BUCKET")

	// Import
	v.BindEnv("import.inbox_dir", "IMPORT_INBOX_DIR")
	v.BindEnv("import.explanation_policy", "IMPORT_EXPLANATION_POLICY")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")
}

// LoadConfig 读取 path 目录下的 config.yaml，环境变量优先
func LoadConfig(path string) (*Config, error) {
	return load(path, true)
}

// LoadConfigOrDefault 配置文件缺失时退回默认值，供命令行工具使用
func LoadConfigOrDefault(path string) (*Config, error) {
	return load(path, false)
}

func load(path string, requireFile bool) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if requireFile || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.Server.Mode == "release" && c.JWT.Secret != "" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}

	switch c.Import.ExplanationPolicy {
	case "placeholder", "empty":
	default:
		return fmt.Errorf("unknown import.explanation_policy %q", c.Import.ExplanationPolicy)
	}
	if c.Import.MaxChoices != 4 && c.Import.MaxChoices != 6 {
		return fmt.Errorf("import.max_choices must be 4 or 6, got %d", c.Import.MaxChoices)
	}

	if c.Storage.LocalPath == "" {
		c.Storage.LocalPath = c.AssetsDir()
	}
	if c.Import.InboxDir == "" {
		c.Import.InboxDir = c.ImportInbox()
	}
	if c.Database.Driver == "sqlite" && c.Database.DSN == "" {
		c.Database.DSN = filepath.Join(c.Catalog.Root, "cfaquiz.db")
	}
	return nil
}

// ImportInbox 待导入文件的投递目录，处理后文件会被删除
func (c *Config) ImportInbox() string {
	return filepath.Join(c.Catalog.Root, "ImportInbox")
}

func (c *Config) AppDataDir() string {
	return filepath.Join(c.Catalog.Root, "CFApp")
}

func (c *Config) AssetsDir() string {
	return filepath.Join(c.AppDataDir(), "ImportedAssets")
}

// EnsureDirectories 创建存储根目录下的固定子目录
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Import.InboxDir, c.AppDataDir()}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.LocalPath)
	}
	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}
	}
	return nil
}
