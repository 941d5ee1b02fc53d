// Package session runs producers and consumers against a shared bounded buffer
// and reports whether every item was delivered exactly once.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/FerroO2000/pbuffer"
	"github.com/FerroO2000/pbuffer/internal"
	"github.com/FerroO2000/pbuffer/internal/config"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrAlreadyRun is returned when a session is run more than once.
	ErrAlreadyRun = errors.New("session: already run")
	// ErrClosed is returned when a closed session is run.
	ErrClosed = errors.New("session: closed")
)

const maxDeliveredHint = 1 << 16

// Item is the value exchanged through the buffer.
// Each item is identified by its producer and its sequence number.
type Item struct {
	Producer int
	Seq      int
}

func (i Item) String() string {
	return fmt.Sprintf("p%d#%d", i.Producer, i.Seq)
}

// Report summarizes a session run.
type Report struct {
	Strategy pbuffer.Strategy
	Mode     Mode

	// Produced is the number of items inserted into the buffer.
	Produced int64
	// Consumed is the number of items taken from the buffer.
	Consumed int64
	// Duplicates is the number of items taken more than once.
	Duplicates int64
	// Missing is the number of expected items never taken.
	Missing int64

	Retries  int64
	Timeouts int64

	// MaxOccupancy is the peak number of items resident in the buffer.
	MaxOccupancy int64

	Duration time.Duration
}

// Valid states whether every expected item was delivered exactly once.
func (r *Report) Valid() bool {
	return r.Duplicates == 0 && r.Missing == 0
}

// Option configures a session.
type Option func(*Session)

// WithMeterProvider sets the meter provider used for the session
// and buffer metrics.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(s *Session) {
		s.meterProvider = provider
	}
}

// WithTracerProvider sets the tracer provider used for the run span.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(s *Session) {
		s.tracerProvider = provider
	}
}

// Session runs a fixed number of producers and consumers
// against a shared buffer.
type Session struct {
	tel *internal.Telemetry

	cfg *Config

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider

	buffer   pbuffer.Buffer[Item]
	observer *occupancyObserver
	metrics  *workerMetrics

	// delivered maps every taken item to the number of times it was taken
	deliveredMux sync.Mutex
	delivered    map[Item]int

	wg        *sync.WaitGroup
	isRunning atomic.Bool

	cancelMux sync.Mutex
	cancel    context.CancelFunc
	isClosed  bool
}

// New returns a new session.
// Soft configuration anomalies are fixed and logged,
// an invalid buffer capacity is an error.
func New(cfg *Config, opts ...Option) (*Session, error) {
	s := &Session{
		cfg: cfg,

		wg: &sync.WaitGroup{},
	}

	for _, opt := range opts {
		opt(s)
	}

	telOpts := []internal.TelemetryOption{}
	if s.meterProvider != nil {
		telOpts = append(telOpts, internal.WithMeterProvider(s.meterProvider))
	}
	if s.tracerProvider != nil {
		telOpts = append(telOpts, internal.WithTracerProvider(s.tracerProvider))
	}

	validator := config.NewValidator(internal.NewTelemetry("config", "session"))
	validator.Validate(cfg)

	s.tel = internal.NewTelemetry("session", cfg.Strategy.String()+"/"+cfg.Mode.String(), telOpts...)

	s.observer = &occupancyObserver{}
	if cfg.LogActivity {
		s.observer.inner = pbuffer.NewLogObserver[Item](cfg.Strategy.String())
	}

	bufOpts := []pbuffer.Option[Item]{pbuffer.WithObserver[Item](s.observer)}
	if s.meterProvider != nil {
		bufOpts = append(bufOpts, pbuffer.WithMeterProvider[Item](s.meterProvider))
	}

	bufCfg := &pbuffer.Config{
		Capacity: cfg.BufferCapacity,
		Strategy: cfg.Strategy,
		Name:     cfg.Strategy.String(),
	}

	buffer, err := pbuffer.NewFromConfig(bufCfg, bufOpts...)
	if err != nil {
		return nil, err
	}

	s.buffer = buffer
	s.metrics = newWorkerMetrics(s.tel)

	return s, nil
}

// Init initializes the session metrics.
func (s *Session) Init(_ context.Context) error {
	s.metrics.init()

	s.tel.LogInfo("initialized",
		"capacity", s.cfg.BufferCapacity, "mode", s.cfg.Mode.String(),
		"producers", s.cfg.Producers, "consumers", s.cfg.Consumers,
		"items_per_producer", s.cfg.ItemsPerProducer)

	return nil
}

// Run starts the producers and the consumers and blocks until
// all of them are done or the context is done.
// The returned report is never nil, the error is the context one
// if the run was interrupted.
func (s *Session) Run(ctx context.Context) (*Report, error) {
	if !s.isRunning.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.cancelMux.Lock()
	if s.isClosed {
		s.cancelMux.Unlock()
		return nil, ErrClosed
	}
	s.cancel = cancel
	s.wg.Add(s.cfg.Producers + s.cfg.Consumers)
	s.cancelMux.Unlock()

	runCtx, span := s.tel.NewTrace(runCtx, "run session")
	defer span.End()

	span.SetAttributes(
		attribute.String("strategy", s.cfg.Strategy.String()),
		attribute.String("mode", s.cfg.Mode.String()),
		attribute.Int("capacity", s.cfg.BufferCapacity),
		attribute.Int("producers", s.cfg.Producers),
		attribute.Int("consumers", s.cfg.Consumers),
	)

	s.delivered = make(map[Item]int, min(s.expected(), maxDeliveredHint))

	s.tel.LogInfo("running")
	start := time.Now()

	for producer := range s.cfg.Producers {
		go func() {
			defer s.wg.Done()
			s.runProducer(runCtx, producer)
		}()
	}

	for consumer := range s.cfg.Consumers {
		quota := s.quota(consumer)
		go func() {
			defer s.wg.Done()
			s.runConsumer(runCtx, quota)
		}()
	}

	s.wg.Wait()

	report := s.report(time.Since(start))

	span.SetAttributes(
		attribute.Int64("consumed", report.Consumed),
		attribute.Int64("duplicates", report.Duplicates),
		attribute.Int64("missing", report.Missing),
	)

	if err := runCtx.Err(); err != nil {
		span.SetStatus(codes.Error, "interrupted")
		s.tel.LogWarn("interrupted", "consumed", report.Consumed, "missing", report.Missing)
		return report, err
	}

	if !report.Valid() {
		span.SetStatus(codes.Error, "delivery mismatch")
		s.tel.LogWarn("delivery mismatch",
			"duplicates", report.Duplicates, "missing", report.Missing)
	} else {
		s.tel.LogInfo("completed", "consumed", report.Consumed, "duration", report.Duration)
	}

	return report, nil
}

// Close interrupts a running session and waits for
// its producers and consumers to return.
func (s *Session) Close() {
	s.tel.LogInfo("closing")

	s.cancelMux.Lock()
	s.isClosed = true
	if s.cancel != nil {
		s.cancel()
	}
	s.cancelMux.Unlock()

	s.wg.Wait()

	s.tel.LogInfo("closed")
}

func (s *Session) expected() int {
	return s.cfg.Producers * s.cfg.ItemsPerProducer
}

// quota returns the number of items the consumer must take.
// The quotas of all the consumers add up to the expected items.
func (s *Session) quota(consumer int) int {
	total := s.expected()
	quota := total / s.cfg.Consumers
	if consumer < total%s.cfg.Consumers {
		quota++
	}
	return quota
}

func (s *Session) newAccessor() *accessor {
	return &accessor{
		buffer:  s.buffer,
		metrics: s.metrics,

		mode:       s.cfg.Mode,
		timeout:    s.cfg.Timeout,
		retryDelay: s.cfg.RetryDelay,
	}
}

func (s *Session) runProducer(ctx context.Context, producer int) {
	acc := s.newAccessor()

	for seq := range s.cfg.ItemsPerProducer {
		if !acc.insert(ctx, Item{Producer: producer, Seq: seq}) {
			s.tel.LogDebug("producer interrupted", "producer", producer, "seq", seq)
			return
		}

		s.metrics.produced.Add(1)
	}
}

func (s *Session) runConsumer(ctx context.Context, quota int) {
	acc := s.newAccessor()

	for range quota {
		item, ok := acc.take(ctx)
		if !ok {
			s.tel.LogDebug("consumer interrupted")
			return
		}

		s.deliver(item)
	}
}

func (s *Session) deliver(item Item) {
	s.deliveredMux.Lock()
	s.delivered[item]++
	taken := s.delivered[item]
	s.deliveredMux.Unlock()

	s.metrics.consumed.Add(1)

	if taken > 1 {
		s.metrics.duplicates.Add(1)
		s.tel.LogWarn("duplicated item", "item", item.String(), "taken", taken)
	}
}

func (s *Session) report(duration time.Duration) *Report {
	s.deliveredMux.Lock()
	unique := int64(len(s.delivered))
	s.deliveredMux.Unlock()

	return &Report{
		Strategy: s.cfg.Strategy,
		Mode:     s.cfg.Mode,

		Produced:   s.metrics.produced.Load(),
		Consumed:   s.metrics.consumed.Load(),
		Duplicates: s.metrics.duplicates.Load(),
		Missing:    int64(s.expected()) - unique,

		Retries:  s.metrics.retries.Load(),
		Timeouts: s.metrics.timeouts.Load(),

		MaxOccupancy: s.observer.maxOccupied.Load(),

		Duration: duration,
	}
}
