package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Analytics struct {
		Series       []string      `yaml:"series"` // price series ids, e.g. WTI, BRENT
		Window       int           `yaml:"window"`
		Lags         int           `yaml:"lags"`
		MaxGap       int           `yaml:"max_gap"`
		Step         time.Duration `yaml:"step"`
		Horizon      int           `yaml:"horizon"`
		BoundSigma   float64       `yaml:"bound_sigma"`
		Seed         int64         `yaml:"seed"`
		MinTrainRows int           `yaml:"min_train_rows"`
		Anomaly      struct {
			Trees       int     `yaml:"trees"`
			SampleSize  int     `yaml:"sample_size"`
			Threshold   float64 `yaml:"threshold"`
			MinBaseline int     `yaml:"min_baseline"`
		} `yaml:"anomaly"`
	} `yaml:"analytics"`
	Refresh struct {
		Timeout      time.Duration `yaml:"timeout"`
		RateCapacity float64       `yaml:"rate_capacity"`
		RateRefill   float64       `yaml:"rate_refill"` // tokens per second
	} `yaml:"refresh"`
	ModelDir string `yaml:"model_dir"`
	Redis    struct {
		Enabled  bool          `yaml:"enabled"`
		Host     string        `yaml:"host"`
		Port     int           `yaml:"port"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"redis"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		AlertsTopic  string   `yaml:"alerts_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
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

	c.applyDefaults()
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

	if v := os.Getenv("SERIES"); v != "" {
		c.Analytics.Series = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("MODEL_DIR"); v != "" {
		c.ModelDir = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	a := &c.Analytics
	if a.Window == 0 {
		a.Window = 5
	}
	if a.Lags == 0 {
		a.Lags = 3
	}
	if a.MaxGap == 0 {
		a.MaxGap = 3
	}
	if a.Step == 0 {
		a.Step = 24 * time.Hour
	}
	if a.Horizon == 0 {
		a.Horizon = 30
	}
	if a.BoundSigma == 0 {
		a.BoundSigma = 1.96
	}
	if a.Seed == 0 {
		a.Seed = 42
	}
	if a.MinTrainRows == 0 {
		a.MinTrainRows = 10
	}
	if a.Anomaly.Trees == 0 {
		a.Anomaly.Trees = 100
	}
	if a.Anomaly.SampleSize == 0 {
		a.Anomaly.SampleSize = 256
	}
	if a.Anomaly.Threshold == 0 {
		a.Anomaly.Threshold = 0.6
	}
	if a.Anomaly.MinBaseline == 0 {
		a.Anomaly.MinBaseline = 8
	}
	if c.Refresh.Timeout == 0 {
		c.Refresh.Timeout = 30 * time.Second
	}
	if c.Refresh.RateCapacity == 0 {
		c.Refresh.RateCapacity = 3
	}
	if c.Refresh.RateRefill == 0 {
		c.Refresh.RateRefill = 0.2
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 10 * time.Minute
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Analytics.Series) == 0 {
		return fmt.Errorf("analytics.series cannot be empty")
	}
	if c.Analytics.Window < 2 {
		return fmt.Errorf("analytics.window must be at least 2, got %d", c.Analytics.Window)
	}
	if c.Analytics.Lags < 1 {
		return fmt.Errorf("analytics.lags must be at least 1, got %d", c.Analytics.Lags)
	}
	if c.Analytics.Horizon < 1 {
		return fmt.Errorf("analytics.horizon must be at least 1, got %d", c.Analytics.Horizon)
	}
	if c.Analytics.BoundSigma < 0 {
		return fmt.Errorf("analytics.bound_sigma must be >= 0, got %f", c.Analytics.BoundSigma)
	}
	if c.Analytics.Anomaly.Threshold < 0 {
		return fmt.Errorf("analytics.anomaly.threshold must be >= 0, got %f", c.Analytics.Anomaly.Threshold)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Kafka.Enabled && c.Kafka.AlertsTopic == "" {
		return fmt.Errorf("kafka.alerts_topic is required when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	return nil
}
