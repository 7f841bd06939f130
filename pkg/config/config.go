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
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Kafka struct {
		Brokers        []string `yaml:"brokers"`
		TradeTopic     string   `yaml:"trade_topic"`
		MetricTopic    string   `yaml:"metric_topic"`
		ApprovedTopic  string   `yaml:"approved_topic"`
		RequiredAcks   int      `yaml:"required_acks"`
		Compression    string   `yaml:"compression"`
		Producer       struct {
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
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Queue struct {
		Workers    int           `yaml:"workers"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"queue"`
	Consensus struct {
		MinAttestors         int           `yaml:"min_attestors"`
		AutoApproveThreshold float64       `yaml:"auto_approve_threshold"`
		RiskCeiling          float64       `yaml:"risk_ceiling"`
		AttestationTimeout   time.Duration `yaml:"attestation_timeout"`
		SweepInterval        time.Duration `yaml:"sweep_interval"`
		TrustAlpha           float64       `yaml:"trust_alpha"`
		TrustEpsilon         float64       `yaml:"trust_epsilon"`
		VarianceWeight       float64       `yaml:"variance_weight"`
		FlagWeight           float64       `yaml:"flag_weight"`
	} `yaml:"consensus"`
	Aggregation struct {
		FinalizeInterval time.Duration `yaml:"finalize_interval"`
		EventBuffer      int           `yaml:"event_buffer"`
	} `yaml:"aggregation"`
	Rebuild struct {
		BucketRetries int `yaml:"bucket_retries"`
	} `yaml:"rebuild"`
	Cache struct {
		CandleTTL time.Duration `yaml:"candle_ttl"`
	} `yaml:"cache"`
	Symbols []string `yaml:"symbols"`
	Stream  struct {
		Enabled        bool          `yaml:"enabled"`
		SourceKey      string        `yaml:"source_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		APIKey         string        `yaml:"api_key"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		MaxEventRate   int           `yaml:"max_event_rate"`
		EventBuffer    int           `yaml:"event_buffer"`
	} `yaml:"stream"`
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

	// Override with environment variables
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("STREAM_API_KEY"); v != "" {
		c.Stream.APIKey = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Consensus.MinAttestors <= 0 {
		c.Consensus.MinAttestors = 3
	}
	if c.Consensus.AutoApproveThreshold <= 0 {
		c.Consensus.AutoApproveThreshold = 70
	}
	if c.Consensus.RiskCeiling <= 0 {
		c.Consensus.RiskCeiling = 30
	}
	if c.Consensus.AttestationTimeout <= 0 {
		c.Consensus.AttestationTimeout = 5 * time.Minute
	}
	if c.Consensus.SweepInterval <= 0 {
		c.Consensus.SweepInterval = 30 * time.Second
	}
	if c.Consensus.TrustAlpha <= 0 {
		c.Consensus.TrustAlpha = 0.1
	}
	if c.Consensus.TrustEpsilon <= 0 {
		c.Consensus.TrustEpsilon = 5
	}
	if c.Consensus.VarianceWeight <= 0 {
		c.Consensus.VarianceWeight = 0.6
	}
	if c.Consensus.FlagWeight <= 0 {
		c.Consensus.FlagWeight = 0.4
	}
	if c.Aggregation.FinalizeInterval <= 0 {
		c.Aggregation.FinalizeInterval = 5 * time.Second
	}
	if c.Aggregation.EventBuffer <= 0 {
		c.Aggregation.EventBuffer = 1024
	}
	if c.Rebuild.BucketRetries <= 0 {
		c.Rebuild.BucketRetries = 3
	}
	if c.Cache.CandleTTL <= 0 {
		c.Cache.CandleTTL = 15 * time.Second
	}
	if c.Stream.MaxEventRate <= 0 {
		c.Stream.MaxEventRate = 20
	}
	if c.Stream.EventBuffer <= 0 {
		c.Stream.EventBuffer = 1000
	}
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = 4
	}
	if c.Queue.RetryLimit <= 0 {
		c.Queue.RetryLimit = 3
	}
	if c.Queue.RetryDelay <= 0 {
		c.Queue.RetryDelay = 10 * time.Second
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols cannot be empty")
	}
	if c.Consensus.AutoApproveThreshold > 100 {
		return fmt.Errorf("consensus.auto_approve_threshold must be <= 100")
	}
	if c.Consensus.RiskCeiling > 100 {
		return fmt.Errorf("consensus.risk_ceiling must be <= 100")
	}
	if c.Consensus.TrustAlpha >= 1 {
		return fmt.Errorf("consensus.trust_alpha must be < 1")
	}
	if c.Stream.Enabled && c.Stream.WebSocketURL == "" {
		return fmt.Errorf("stream.websocket_url is required when stream is enabled")
	}
	return nil
}
