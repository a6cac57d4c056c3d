package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "CUTOUTKIT"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Remover  RemoverConfig  `mapstructure:"remover"`
	GrabCut  GrabCutConfig  `mapstructure:"grabcut"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Session  SessionConfig  `mapstructure:"session"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port" validate:"required"`
	Mode         string        `mapstructure:"mode" validate:"oneof=debug release test"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"gte=0"`
	TTL      time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size" validate:"gt=0"`
	AllowedTypes []string `mapstructure:"allowed_types" validate:"min=1"`
}

// PipelineConfig holds the two widths every image is kept at.
type PipelineConfig struct {
	HighResWidth int    `mapstructure:"high_res_width" validate:"gt=0"`
	DisplayWidth int    `mapstructure:"display_width" validate:"gt=0,ltefield=HighResWidth"`
	DownloadName string `mapstructure:"download_name" validate:"required"`
}

type RemoverConfig struct {
	// Backend selects the matting implementation: "http" or "grabcut".
	Backend   string        `mapstructure:"backend" validate:"oneof=http grabcut"`
	Endpoint  string        `mapstructure:"endpoint" validate:"required_if=Backend http"`
	FormField string        `mapstructure:"form_field"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type GrabCutConfig struct {
	Iterations        int  `mapstructure:"iterations" validate:"gt=0"`
	BorderSize        int  `mapstructure:"border_size" validate:"gte=0"`
	MaxSize           int  `mapstructure:"max_size" validate:"gt=0"`
	MaxConcurrent     int  `mapstructure:"max_concurrent" validate:"gt=0"`
	QueueTimeout      int  `mapstructure:"queue_timeout" validate:"gt=0"`
	MaxForegroundOnly bool `mapstructure:"max_foreground_only"`
}

type CacheConfig struct {
	MaxEntries int `mapstructure:"max_entries" validate:"gt=0"`
}

type SessionConfig struct {
	TTL         time.Duration `mapstructure:"ttl" validate:"gt=0"`
	MaxSessions int           `mapstructure:"max_sessions" validate:"gt=0"`
	SweepSpec   string        `mapstructure:"sweep_spec" validate:"required"`
}

// Load 从 YAML 文件加载配置，环境变量 CUTOUTKIT_* 覆盖文件中的值
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// New 使用默认配置路径加载配置。配置文件不存在时使用默认配置，
// 文件存在但无法解析或校验失败时返回错误
func New() (*Config, error) {
	path := os.Getenv(envPrefix + "_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return getDefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

// Validate 校验配置取值范围
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := getDefaultConfig()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)

	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)

	v.SetDefault("redis.enabled", d.Redis.Enabled)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.ttl", d.Redis.TTL)

	v.SetDefault("upload.max_size", d.Upload.MaxSize)
	v.SetDefault("upload.allowed_types", d.Upload.AllowedTypes)

	v.SetDefault("pipeline.high_res_width", d.Pipeline.HighResWidth)
	v.SetDefault("pipeline.display_width", d.Pipeline.DisplayWidth)
	v.SetDefault("pipeline.download_name", d.Pipeline.DownloadName)

	v.SetDefault("remover.backend", d.Remover.Backend)
	v.SetDefault("remover.endpoint", d.Remover.Endpoint)
	v.SetDefault("remover.form_field", d.Remover.FormField)
	v.SetDefault("remover.timeout", d.Remover.Timeout)

	v.SetDefault("grabcut.iterations", d.GrabCut.Iterations)
	v.SetDefault("grabcut.border_size", d.GrabCut.BorderSize)
	v.SetDefault("grabcut.max_size", d.GrabCut.MaxSize)
	v.SetDefault("grabcut.max_concurrent", d.GrabCut.MaxConcurrent)
	v.SetDefault("grabcut.queue_timeout", d.GrabCut.QueueTimeout)
	v.SetDefault("grabcut.max_foreground_only", d.GrabCut.MaxForegroundOnly)

	v.SetDefault("cache.max_entries", d.Cache.MaxEntries)

	v.SetDefault("session.ttl", d.Session.TTL)
	v.SetDefault("session.max_sessions", d.Session.MaxSessions)
	v.SetDefault("session.sweep_spec", d.Session.SweepSpec)
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Log: LogConfig{
			MaxSizeMB:  100,
			MaxBackups: 7,
			MaxAgeDays: 30,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
			TTL:     24 * time.Hour,
		},
		Upload: UploadConfig{
			MaxSize:      20 * 1024 * 1024,
			AllowedTypes: []string{"image/jpeg", "image/png", "image/jpg"},
		},
		Pipeline: PipelineConfig{
			HighResWidth: 1200,
			DisplayWidth: 600,
			DownloadName: "edited_image_final.png",
		},
		Remover: RemoverConfig{
			Backend:   "http",
			Endpoint:  "http://localhost:7000/api/remove",
			FormField: "file",
			Timeout:   60 * time.Second,
		},
		GrabCut: GrabCutConfig{
			Iterations:    5,
			BorderSize:    10,
			MaxSize:       1200,
			MaxConcurrent: 3,
			QueueTimeout:  30,
		},
		Cache: CacheConfig{
			MaxEntries: 32,
		},
		Session: SessionConfig{
			TTL:         30 * time.Minute,
			MaxSessions: 256,
			SweepSpec:   "@every 1m",
		},
	}
}

// Default 返回内置默认配置的副本
func Default() *Config {
	return getDefaultConfig()
}
