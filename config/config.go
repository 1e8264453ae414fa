// Package config holds the typed configuration for a consumer process built
// on this module, loadable from a YAML file with environment-variable
// overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/tinexw/sqslistener"
)

// Config is the root configuration.
type Config struct {
	AWS      AWSConfig      `yaml:"aws"`
	Listener ListenerConfig `yaml:"listener"`
	Logger   LoggerConfig   `yaml:"logger"`
}

// AWSConfig configures the SQS/SNS clients.
type AWSConfig struct {
	Region string `yaml:"region" envconfig:"AWS_REGION"`
	// Endpoint overrides the service endpoint, e.g. for localstack.
	Endpoint string `yaml:"endpoint" envconfig:"AWS_ENDPOINT"`
}

// QueueConfig configures one listened queue.
type QueueConfig struct {
	Name string `yaml:"name"`
	// MaxMessages bounds one receive batch, 1..10. Zero applies the
	// container default of 10.
	MaxMessages       int32         `yaml:"max_messages"`
	WaitTime          time.Duration `yaml:"wait_time"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
	// SendTo routes handler return values to another destination.
	SendTo string `yaml:"send_to"`
}

// ListenerConfig configures the listener container.
type ListenerConfig struct {
	Queues           []QueueConfig `yaml:"queues"`
	WorkerCount      int           `yaml:"worker_count" envconfig:"LISTENER_WORKER_COUNT"`
	Backoff          time.Duration `yaml:"backoff" envconfig:"LISTENER_BACKOFF"`
	ShutdownGrace    time.Duration `yaml:"shutdown_grace" envconfig:"LISTENER_SHUTDOWN_GRACE"`
	AutoCreateQueues bool          `yaml:"auto_create_queues" envconfig:"LISTENER_AUTO_CREATE_QUEUES"`
}

// LoggerConfig configures the zap logger.
type LoggerConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"` // json or console
}

// Default returns the configuration defaults. Deliberately not envconfig
// default tags: those would overwrite file-loaded values whenever the
// environment variable is unset.
func Default() *Config {
	return &Config{
		AWS: AWSConfig{Region: "us-east-1"},
		Listener: ListenerConfig{
			Backoff:       10 * time.Second,
			ShutdownGrace: 20 * time.Second,
		},
		Logger: LoggerConfig{Level: "info", Format: "json"},
	}
}

// Load reads configuration from an optional YAML file and applies
// environment-variable overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	return decoder.Decode(cfg)
}

// Validate checks the configuration for mistakes that would otherwise only
// surface when the container starts.
func (c *Config) Validate() error {
	if len(c.Listener.Queues) == 0 {
		return fmt.Errorf("at least one queue is required")
	}
	seen := make(map[string]bool, len(c.Listener.Queues))
	for _, q := range c.Listener.Queues {
		if q.Name == "" {
			return fmt.Errorf("queue name is required")
		}
		if seen[q.Name] {
			return fmt.Errorf("queue %q configured twice", q.Name)
		}
		seen[q.Name] = true
		if q.MaxMessages < 0 || q.MaxMessages > 10 {
			return fmt.Errorf("queue %q: max_messages must be between 0 and 10, 0 meaning the default of 10", q.Name)
		}
		if q.WaitTime > 20*time.Second {
			return fmt.Errorf("queue %q: wait_time must not exceed 20s", q.Name)
		}
	}
	if _, err := zapcore.ParseLevel(c.Logger.Level); err != nil {
		return fmt.Errorf("invalid log level %q", c.Logger.Level)
	}
	return nil
}

// ContainerConfig maps the listener section onto the container's own
// configuration type.
func (c *Config) ContainerConfig() sqslistener.ContainerConfig {
	queues := make([]sqslistener.QueueConfig, 0, len(c.Listener.Queues))
	for _, q := range c.Listener.Queues {
		queues = append(queues, sqslistener.QueueConfig{
			Name:              q.Name,
			MaxMessages:       q.MaxMessages,
			WaitTime:          q.WaitTime,
			VisibilityTimeout: q.VisibilityTimeout,
		})
	}
	return sqslistener.ContainerConfig{
		Queues:        queues,
		WorkerCount:   c.Listener.WorkerCount,
		Backoff:       c.Listener.Backoff,
		ShutdownGrace: c.Listener.ShutdownGrace,
	}
}

// BuildLogger constructs the zap logger described by the logger section.
func (c *LoggerConfig) BuildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if c.Format == "console" {
		zapCfg.Encoding = "console"
		zapCfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return zapCfg.Build()
}
