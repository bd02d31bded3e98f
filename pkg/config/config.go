package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/217th/tda-bq-marketdata-exporter/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Service     struct {
		Name string `yaml:"name" default:"marketdata-exporter" validate:"required"`
	} `yaml:"service"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stderr" validate:"required"`
	} `yaml:"log"`
	ClickHouse struct {
		Host             string        `yaml:"host" validate:"required"`
		Port             int           `yaml:"port" default:"9000" validate:"gt=0"`
		Database         string        `yaml:"database" default:"marketdata" validate:"required"`
		Table            string        `yaml:"table" default:"candles" validate:"required"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Retry struct {
		BaseDelay   time.Duration `yaml:"base_delay" default:"1s" validate:"gt=0"`
		Factor      float64       `yaml:"factor" default:"2.0" validate:"gt=1"`
		MaxDelay    time.Duration `yaml:"max_delay" default:"32s" validate:"gt=0"`
		MaxAttempts int           `yaml:"max_attempts" default:"5" validate:"gte=1"`
	} `yaml:"retry"`
	Output struct {
		Dir     string `yaml:"dir" default:"."`
		Storage struct {
			Enabled   bool          `yaml:"enabled"`
			Endpoint  string        `yaml:"endpoint" validate:"required_if=Enabled true"`
			Bucket    string        `yaml:"bucket" validate:"required_if=Enabled true"`
			AccessKey string        `yaml:"access_key"`
			SecretKey string        `yaml:"secret_key"`
			Secure    bool          `yaml:"secure"`
			URLExpiry time.Duration `yaml:"url_expiry" default:"24h"`
		} `yaml:"storage"`
	} `yaml:"output"`
}

// TableFQN returns the fully qualified candles table name.
func (c *Config) TableFQN() string {
	return c.ClickHouse.Database + "." + c.ClickHouse.Table
}

// Load reads and parses a YAML configuration file, fills defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment
// variables. A .env file in the working directory is read first if present,
// so credentials never need to live in the YAML file.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Override with environment variables
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PORT"); v != "" {
		c.ClickHouse.Port = util.ParseIntDefault(v, c.ClickHouse.Port)
	}
	if v := os.Getenv("CLICKHOUSE_DATABASE"); v != "" {
		c.ClickHouse.Database = v
	}
	if v := os.Getenv("CLICKHOUSE_TABLE"); v != "" {
		c.ClickHouse.Table = v
	}
	if v := os.Getenv("CLICKHOUSE_USER"); v != "" {
		c.ClickHouse.User = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		c.Output.Dir = v
	}
	if v := os.Getenv("STORAGE_ENDPOINT"); v != "" {
		c.Output.Storage.Endpoint = v
	}
	if v := os.Getenv("STORAGE_BUCKET"); v != "" {
		c.Output.Storage.Bucket = v
	}
	if v := os.Getenv("STORAGE_ACCESS_KEY"); v != "" {
		c.Output.Storage.AccessKey = v
	}
	if v := os.Getenv("STORAGE_SECRET_KEY"); v != "" {
		c.Output.Storage.SecretKey = v
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

var validate = validator.New()

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			fe := ve[0]
			return fmt.Errorf("field %s failed %q validation", fe.Namespace(), fe.Tag())
		}
		return err
	}
	if c.Output.Storage.Enabled && (c.Output.Storage.AccessKey == "" || c.Output.Storage.SecretKey == "") {
		return fmt.Errorf("output.storage requires access_key and secret_key (or STORAGE_ACCESS_KEY / STORAGE_SECRET_KEY)")
	}
	return nil
}
