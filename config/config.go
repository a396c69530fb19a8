package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/chaos-io/rmbg/compose"
)

// DefaultMaxPixels 解码后像素上限，约 1 亿像素，与 Pillow 的 MAX_IMAGE_PIXELS 一致
const DefaultMaxPixels = 89478485

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Model    ModelConfig    `mapstructure:"model"`
	RemoveBG RemoveBGConfig `mapstructure:"removebg"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	Debug          bool          `mapstructure:"debug"`
	MaxUpload      int64         `mapstructure:"max_upload"`
	MaxPixels      int64         `mapstructure:"max_pixels"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	Burst          int           `mapstructure:"burst"`
	PNGCompression string        `mapstructure:"png_compression"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

type ModelConfig struct {
	ID              string        `mapstructure:"id"`
	Device          string        `mapstructure:"device"`
	Endpoint        string        `mapstructure:"endpoint"`
	InputSize       int           `mapstructure:"input_size"`
	Timeout         time.Duration `mapstructure:"timeout"`
	SkipTransparent bool          `mapstructure:"skip_transparent"`
}

type RemoveBGConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type StorageConfig struct {
	Dir       string        `mapstructure:"dir"`
	Retention time.Duration `mapstructure:"retention"`
	Cleanup   string        `mapstructure:"cleanup"`
}

// 配置项与环境变量的对应关系
var envBindings = map[string][]string{
	"server.port":            {"PORT"},
	"server.debug":           {"RMBG_DEBUG", "FLASK_DEBUG"},
	"server.max_upload":      {"RMBG_MAX_UPLOAD"},
	"server.max_pixels":      {"RMBG_MAX_PIXELS"},
	"server.rate_limit":      {"RMBG_RATE_LIMIT"},
	"server.burst":           {"RMBG_BURST"},
	"server.png_compression": {"RMBG_PNG_COMPRESSION"},
	"model.id":               {"RMBG_MODEL"},
	"model.device":           {"RMBG_DEVICE"},
	"model.endpoint":         {"RMBG_ENDPOINT"},
	"model.input_size":       {"RMBG_INPUT_SIZE"},
	"model.timeout":          {"RMBG_TIMEOUT"},
	"model.skip_transparent": {"RMBG_SKIP_TRANSPARENT"},
	"removebg.api_key":       {"REMOVE_BG_API_KEY"},
	"removebg.endpoint":      {"REMOVE_BG_ENDPOINT"},
	"redis.addr":             {"REDIS_ADDR"},
	"redis.password":         {"REDIS_PASSWORD"},
	"redis.db":               {"REDIS_DB"},
	"redis.ttl":              {"REDIS_TTL"},
	"storage.dir":            {"RESULT_DIR"},
	"storage.retention":      {"RESULT_RETENTION"},
	"storage.cleanup":        {"RESULT_CLEANUP"},
}

// Load 读取默认值、可选的 YAML 文件和环境变量，后者优先
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.max_upload", 20<<20)
	v.SetDefault("server.max_pixels", DefaultMaxPixels)
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.burst", 5)
	v.SetDefault("server.png_compression", "default")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)

	v.SetDefault("model.id", "briaai/RMBG-1.4")
	v.SetDefault("model.device", "0")
	v.SetDefault("model.endpoint", "")
	v.SetDefault("model.input_size", 1024)
	v.SetDefault("model.timeout", 60*time.Second)
	v.SetDefault("model.skip_transparent", false)

	v.SetDefault("removebg.api_key", "")
	v.SetDefault("removebg.endpoint", "https://api.remove.bg/v1.0/removebg")
	v.SetDefault("removebg.timeout", 60*time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("storage.dir", "")
	v.SetDefault("storage.retention", 24*time.Hour)
	v.SetDefault("storage.cleanup", "@every 10m")
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Server.MaxUpload <= 0 {
		return fmt.Errorf("invalid max upload size %d", c.Server.MaxUpload)
	}
	if c.Server.MaxPixels < 0 {
		return fmt.Errorf("invalid max pixels %d", c.Server.MaxPixels)
	}
	if c.Model.InputSize < 0 {
		return fmt.Errorf("invalid model input size %d", c.Model.InputSize)
	}
	if _, err := compose.ParseCompression(c.Server.PNGCompression); err != nil {
		return err
	}
	return nil
}

// Addr 监听地址
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// Mode 对应 gin 的运行模式
func (s ServerConfig) Mode() string {
	if s.Debug {
		return "debug"
	}
	return "release"
}
