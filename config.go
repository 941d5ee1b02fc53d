package pbuffer

import (
	"fmt"

	"github.com/FerroO2000/pbuffer/internal"
	"github.com/FerroO2000/pbuffer/internal/config"
)

// Default values for the buffer configuration.
const (
	DefaultConfigCapacity = 64
	DefaultConfigStrategy = StrategyCondVar
)

// Config is the configuration of a buffer.
type Config struct {
	// Capacity is the number of slots of the buffer.
	// It must be at least 1, it is never replaced by a fallback.
	Capacity int

	// Strategy is the concurrency-control strategy.
	Strategy Strategy

	// Name identifies the buffer in logs and metrics.
	Name string
}

// NewConfig returns the default buffer configuration.
func NewConfig() *Config {
	return &Config{
		Capacity: DefaultConfigCapacity,
		Strategy: DefaultConfigStrategy,
		Name:     DefaultName,
	}
}

// Validate checks the configuration.
func (c *Config) Validate(ac *config.AnomalyCollector) {
	config.CheckOneOf(ac, "Strategy", &c.Strategy, Strategies, DefaultConfigStrategy)
	config.CheckNotEmpty(ac, "Name", &c.Name, DefaultName)
}

// NewFromConfig returns a new buffer built from the configuration.
// Soft anomalies are fixed and logged, an invalid capacity is an error.
func NewFromConfig[T any](cfg *Config, opts ...Option[T]) (Buffer[T], error) {
	if cfg.Capacity < 1 {
		return nil, fmt.Errorf("invalid capacity %d: %w", cfg.Capacity, ErrInvalidCapacity)
	}

	validator := config.NewValidator(internal.NewTelemetry("config", "buffer"))
	validator.Validate(cfg)

	opts = append([]Option[T]{WithName[T](cfg.Name)}, opts...)

	return New(cfg.Capacity, cfg.Strategy, opts...)
}
