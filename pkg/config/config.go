package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"FloodCast/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Kafka struct {
		Brokers       []string `yaml:"brokers"`
		ReadingsTopic string   `yaml:"readings_topic"`
		ForecastTopic string   `yaml:"forecast_topic"`
		LogsTopic     string   `yaml:"logs_topic"`
		RequiredAcks  int      `yaml:"required_acks"`
		Compression   string   `yaml:"compression"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Forecast struct {
		Station        string        `yaml:"station"`
		Resolution     string        `yaml:"resolution"`
		SequenceLength int           `yaml:"sequence_length"`
		LSTMUnits      []int         `yaml:"lstm_units"`
		DropoutRate    float64       `yaml:"dropout_rate"`
		ModelPath      string        `yaml:"model_path"`
		Seed           int64         `yaml:"seed"`
		Interval       time.Duration `yaml:"interval"`
		LookbackRows   int           `yaml:"lookback_rows"`
		CacheTTL       time.Duration `yaml:"cache_ttl"`
	} `yaml:"forecast"`
	Cache struct {
		Type  string `yaml:"type"` // memory or redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Training struct {
		Epochs         int           `yaml:"epochs"`
		BatchSize      int           `yaml:"batch_size"`
		HistoryRows    int           `yaml:"history_rows"`
		CheckpointPath string        `yaml:"checkpoint_path"`
		Timeout        time.Duration `yaml:"timeout"`
	} `yaml:"training"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("READINGS_TOPIC"); v != "" {
		c.Kafka.ReadingsTopic = v
	}
	if v := os.Getenv("FORECAST_TOPIC"); v != "" {
		c.Kafka.ForecastTopic = v
	}
	if v := os.Getenv("STATION"); v != "" {
		c.Forecast.Station = v
	}
	if v := os.Getenv("MODEL_PATH"); v != "" {
		c.Forecast.ModelPath = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	c.Server.Port = util.ParseIntDefault(os.Getenv("SERVER_PORT"), c.Server.Port)

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	if c.Kafka.ReadingsTopic == "" {
		return fmt.Errorf("kafka.readings_topic is required")
	}
	if c.Kafka.ForecastTopic == "" {
		return fmt.Errorf("kafka.forecast_topic is required")
	}
	if c.Cache.Type != "" && c.Cache.Type != "memory" && c.Cache.Type != "redis" {
		return fmt.Errorf("cache.type must be 'memory' or 'redis', got '%s'", c.Cache.Type)
	}
	if c.Forecast.ModelPath == "" {
		return fmt.Errorf("forecast.model_path is required")
	}
	if c.Forecast.Station == "" {
		return fmt.Errorf("forecast.station is required")
	}
	return nil
}
