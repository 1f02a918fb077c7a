package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Http struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
		MaxBodyBytes   int64         `yaml:"max_body_bytes"`
		RateLimit      struct {
			Requests int           `yaml:"requests"`
			Window   time.Duration `yaml:"window"`
		} `yaml:"rate_limit"`
	} `yaml:"http"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"log"`
	ML struct {
		ArtifactDir   string        `yaml:"artifact_dir"`
		ModelType     string        `yaml:"model_type"`
		ModelPath     string        `yaml:"model_path"`
		ScalerPath    string        `yaml:"scaler_path"`
		ColumnsPath   string        `yaml:"columns_path"`
		EncoderPath   string        `yaml:"encoder_path"`
		PositiveClass int           `yaml:"positive_class"`
		Watch         bool          `yaml:"watch"`
		Debounce      time.Duration `yaml:"debounce"`
	} `yaml:"ml"`
	Cache struct {
		Backend string        `yaml:"backend"`
		Size    int           `yaml:"size"`
		TTL     time.Duration `yaml:"ttl"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	UI struct {
		Locale string `yaml:"locale"`
		Title  string `yaml:"title"`
	} `yaml:"ui"`
}

func Default() *Config {
	var c Config
	c.Http.Port = 8080
	c.Http.Timeout = 30 * time.Second
	c.Http.AllowedOrigins = []string{"*"}
	c.Http.MaxBodyBytes = 1 << 16
	c.Http.RateLimit.Requests = 60
	c.Http.RateLimit.Window = time.Minute
	c.Log.Level = "info"
	c.Log.MaxSizeMB = 50
	c.Log.MaxBackups = 3
	c.Log.MaxAgeDays = 28
	c.ML.ArtifactDir = "artifacts"
	c.ML.PositiveClass = 1
	c.ML.Debounce = 250 * time.Millisecond
	c.Cache.Backend = "lru"
	c.Cache.Size = 1024
	c.Cache.TTL = time.Hour
	c.Cache.Redis.Prefix = "xente"
	c.UI.Locale = "en"
	c.UI.Title = "Loan Default Predictor - Xente"
	return &c
}

// Load reads path over the defaults, then applies XENTE_* environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	config := Default()
	if path != "" {
		file, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			defer file.Close()
			if err := yaml.NewDecoder(file).Decode(config); err != nil {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		}
	}
	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the loaded values. Port 0 lets the kernel pick a free port.
func (c *Config) Validate() error {
	if c.Http.Port < 0 || c.Http.Port > 65535 {
		return fmt.Errorf("invalid http port %d", c.Http.Port)
	}
	switch c.Cache.Backend {
	case "", "none", "lru", "redis":
	default:
		return fmt.Errorf("unsupported cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return errors.New("cache.redis.addr is required for the redis backend")
	}
	if c.Cache.Backend == "lru" && c.Cache.Size <= 0 {
		return fmt.Errorf("invalid lru cache size %d", c.Cache.Size)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("XENTE_HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("XENTE_HTTP_PORT: %w", err)
		}
		c.Http.Port = port
	}
	setString(&c.Log.Level, "XENTE_LOG_LEVEL")
	setString(&c.Log.File, "XENTE_LOG_FILE")
	setString(&c.ML.ArtifactDir, "XENTE_ARTIFACT_DIR")
	setString(&c.ML.ModelType, "XENTE_MODEL_TYPE")
	setString(&c.Cache.Backend, "XENTE_CACHE_BACKEND")
	setString(&c.Cache.Redis.Addr, "XENTE_REDIS_ADDR")
	setString(&c.Cache.Redis.Password, "XENTE_REDIS_PASSWORD")
	setString(&c.Database.Path, "XENTE_DB_PATH")
	if v := os.Getenv("XENTE_ML_WATCH"); v != "" {
		watch, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("XENTE_ML_WATCH: %w", err)
		}
		c.ML.Watch = watch
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
