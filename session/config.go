package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FerroO2000/pbuffer"
	"github.com/FerroO2000/pbuffer/internal/config"
)

// ErrUnknownMode is returned when parsing an unknown access mode.
var ErrUnknownMode = errors.New("session: unknown mode")

// Mode is the access mode used by producers and consumers.
type Mode uint8

const (
	// ModeBlocking waits for every insert and take without a deadline.
	// It runs on OfferContext and PollContext bound to the run context,
	// so the buffer reports these operations as offer and poll, and
	// closing the session can interrupt a stuck wait.
	ModeBlocking Mode = iota
	// ModeNonBlocking uses non-blocking inserts and takes, retried after a delay.
	ModeNonBlocking
	// ModeTimed uses timed inserts and takes, retried on timeout.
	ModeTimed
)

// Modes lists every access mode.
var Modes = []Mode{ModeBlocking, ModeNonBlocking, ModeTimed}

func (m Mode) String() string {
	switch m {
	case ModeBlocking:
		return "blocking"
	case ModeNonBlocking:
		return "nonblocking"
	case ModeTimed:
		return "timed"
	default:
		return "unknown"
	}
}

// ParseMode returns the mode with the given name.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "blocking":
		return ModeBlocking, nil
	case "nonblocking", "non-blocking":
		return ModeNonBlocking, nil
	case "timed":
		return ModeTimed, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
}

// Default values for the session configuration.
const (
	DefaultConfigBufferCapacity   = 8
	DefaultConfigStrategy         = pbuffer.StrategyCondVar
	DefaultConfigProducers        = 2
	DefaultConfigConsumers        = 2
	DefaultConfigItemsPerProducer = 1000
	DefaultConfigMode             = ModeBlocking
	DefaultConfigTimeout          = 100 * time.Millisecond
	DefaultConfigRetryDelay       = time.Millisecond
	DefaultConfigLogActivity      = false
)

// Config is the configuration of a producer/consumer session.
type Config struct {
	// BufferCapacity is the capacity of the shared buffer.
	// It must be at least 1, it is never replaced by a fallback.
	BufferCapacity int

	// Strategy is the concurrency-control strategy of the shared buffer.
	Strategy pbuffer.Strategy

	// Producers is the number of producer goroutines.
	Producers int

	// Consumers is the number of consumer goroutines.
	Consumers int

	// ItemsPerProducer is the number of distinct items inserted by each producer.
	ItemsPerProducer int

	// Mode is the access mode used by producers and consumers.
	Mode Mode

	// Timeout bounds every timed operation.
	// It is only used when Mode is ModeTimed.
	Timeout time.Duration

	// RetryDelay is the pause after a failed non-blocking operation.
	// Zero only yields the processor before retrying.
	// It is only used when Mode is ModeNonBlocking.
	RetryDelay time.Duration

	// LogActivity states whether every buffer operation is logged (debug level).
	LogActivity bool
}

// NewConfig returns the default session configuration.
func NewConfig() *Config {
	return &Config{
		BufferCapacity:   DefaultConfigBufferCapacity,
		Strategy:         DefaultConfigStrategy,
		Producers:        DefaultConfigProducers,
		Consumers:        DefaultConfigConsumers,
		ItemsPerProducer: DefaultConfigItemsPerProducer,
		Mode:             DefaultConfigMode,
		Timeout:          DefaultConfigTimeout,
		RetryDelay:       DefaultConfigRetryDelay,
		LogActivity:      DefaultConfigLogActivity,
	}
}

// Validate checks the configuration.
func (c *Config) Validate(ac *config.AnomalyCollector) {
	config.CheckOneOf(ac, "Strategy", &c.Strategy, pbuffer.Strategies, DefaultConfigStrategy)

	config.CheckNotLower(ac, "Producers", &c.Producers, 1)
	config.CheckNotLower(ac, "Consumers", &c.Consumers, 1)
	config.CheckNotNegative(ac, "ItemsPerProducer", &c.ItemsPerProducer, DefaultConfigItemsPerProducer)

	config.CheckOneOf(ac, "Mode", &c.Mode, Modes, DefaultConfigMode)

	config.CheckNotNegative(ac, "Timeout", &c.Timeout, DefaultConfigTimeout)
	config.CheckNotZero(ac, "Timeout", &c.Timeout, DefaultConfigTimeout)

	config.CheckNotNegative(ac, "RetryDelay", &c.RetryDelay, DefaultConfigRetryDelay)
}
