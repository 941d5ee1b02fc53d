package session

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/FerroO2000/pbuffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestConfig(strategy pbuffer.Strategy, mode Mode) *Config {
	cfg := NewConfig()
	cfg.BufferCapacity = 3
	cfg.Strategy = strategy
	cfg.Producers = 4
	cfg.Consumers = 3
	cfg.ItemsPerProducer = 250
	cfg.Mode = mode
	cfg.Timeout = 5 * time.Millisecond
	cfg.RetryDelay = 0
	return cfg
}

func Test_ParseMode(t *testing.T) {
	assert := assert.New(t)

	for _, mode := range Modes {
		parsed, err := ParseMode(mode.String())
		assert.NoError(err)
		assert.Equal(mode, parsed)
	}

	parsed, err := ParseMode(" Non-Blocking ")
	assert.NoError(err)
	assert.Equal(ModeNonBlocking, parsed)

	_, err = ParseMode("eventually")
	assert.ErrorIs(err, ErrUnknownMode)
}

func Test_Quota(t *testing.T) {
	cfg := NewConfig()
	cfg.Producers = 3
	cfg.ItemsPerProducer = 7
	cfg.Consumers = 4

	s, err := New(cfg)
	require.NoError(t, err)

	total := 0
	for consumer := range cfg.Consumers {
		total += s.quota(consumer)
	}

	assert.Equal(t, 21, total)
	assert.Equal(t, 6, s.quota(0))
	assert.Equal(t, 5, s.quota(3))
}

func Test_New(t *testing.T) {
	t.Run("invalid capacity", func(t *testing.T) {
		cfg := NewConfig()
		cfg.BufferCapacity = 0

		_, err := New(cfg)
		assert.ErrorIs(t, err, pbuffer.ErrInvalidCapacity)
	})

	t.Run("fallbacks", func(t *testing.T) {
		assert := assert.New(t)

		cfg := NewConfig()
		cfg.Producers = 0
		cfg.Consumers = -2
		cfg.Mode = Mode(42)
		cfg.Timeout = 0
		cfg.RetryDelay = -time.Second

		_, err := New(cfg)
		require.NoError(t, err)

		assert.Equal(1, cfg.Producers)
		assert.Equal(1, cfg.Consumers)
		assert.Equal(DefaultConfigMode, cfg.Mode)
		assert.Equal(DefaultConfigTimeout, cfg.Timeout)
		assert.Equal(DefaultConfigRetryDelay, cfg.RetryDelay)
	})
}

func Test_Run(t *testing.T) {
	for _, strategy := range pbuffer.Strategies {
		for _, mode := range Modes {
			t.Run(strategy.String()+"/"+mode.String(), func(t *testing.T) {
				assert := assert.New(t)

				cfg := newTestConfig(strategy, mode)

				s, err := New(cfg)
				require.NoError(t, err)
				require.NoError(t, s.Init(t.Context()))

				report, err := s.Run(t.Context())
				require.NoError(t, err)

				expected := int64(cfg.Producers * cfg.ItemsPerProducer)

				assert.True(report.Valid())
				assert.Equal(expected, report.Produced)
				assert.Equal(expected, report.Consumed)
				assert.Zero(report.Duplicates)
				assert.Zero(report.Missing)
				assert.LessOrEqual(report.MaxOccupancy, int64(cfg.BufferCapacity))
				assert.Positive(report.MaxOccupancy)
				assert.Equal(strategy, report.Strategy)
				assert.Equal(mode, report.Mode)

				if mode == ModeBlocking {
					assert.Zero(report.Retries)
					assert.Zero(report.Timeouts)
				}

				s.Close()
			})
		}
	}
}

func Test_RunWithoutInit(t *testing.T) {
	for _, mode := range Modes {
		t.Run(mode.String(), func(t *testing.T) {
			cfg := newTestConfig(pbuffer.StrategyCondVar, mode)
			cfg.ItemsPerProducer = 1

			s, err := New(cfg)
			require.NoError(t, err)
			defer s.Close()

			report, err := s.Run(t.Context())
			require.NoError(t, err)
			assert.True(t, report.Valid())
			assert.Equal(t, int64(cfg.Producers), report.Consumed)
		})
	}
}

func Test_RunNonBlockingSingleProcessor(t *testing.T) {
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(1))

	for _, strategy := range pbuffer.Strategies {
		t.Run(strategy.String(), func(t *testing.T) {
			cfg := newTestConfig(strategy, ModeNonBlocking)
			cfg.RetryDelay = 0

			s, err := New(cfg)
			require.NoError(t, err)

			// Retrying consumers must not starve the producers
			ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
			defer cancel()

			report, err := s.Run(ctx)
			require.NoError(t, err)
			assert.True(t, report.Valid())
		})
	}
}

func Test_BlockingModeOperations(t *testing.T) {
	for _, strategy := range pbuffer.Strategies {
		t.Run(strategy.String(), func(t *testing.T) {
			cfg := newTestConfig(strategy, ModeBlocking)
			cfg.ItemsPerProducer = 20

			s, err := New(cfg)
			require.NoError(t, err)

			opsMux := sync.Mutex{}
			ops := map[pbuffer.Operation]int{}
			s.observer.inner = pbuffer.ObserverFunc[Item](func(op pbuffer.Operation, _ Item, ok bool) {
				if !ok {
					return
				}
				opsMux.Lock()
				ops[op]++
				opsMux.Unlock()
			})

			_, err = s.Run(t.Context())
			require.NoError(t, err)

			expected := cfg.Producers * cfg.ItemsPerProducer
			assert.Equal(t, map[pbuffer.Operation]int{
				pbuffer.OpOffer: expected,
				pbuffer.OpPoll:  expected,
			}, ops)
		})
	}
}

func Test_RunTwice(t *testing.T) {
	cfg := newTestConfig(pbuffer.StrategySemaphore, ModeBlocking)
	cfg.ItemsPerProducer = 1

	s, err := New(cfg)
	require.NoError(t, err)

	_, err = s.Run(t.Context())
	require.NoError(t, err)

	_, err = s.Run(t.Context())
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func Test_RunAfterClose(t *testing.T) {
	s, err := New(newTestConfig(pbuffer.StrategyCondVar, ModeBlocking))
	require.NoError(t, err)

	s.Close()

	_, err = s.Run(t.Context())
	assert.ErrorIs(t, err, ErrClosed)
}

func Test_RunInterrupted(t *testing.T) {
	for _, strategy := range pbuffer.Strategies {
		for _, mode := range Modes {
			t.Run(strategy.String()+"/"+mode.String(), func(t *testing.T) {
				assert := assert.New(t)

				cfg := newTestConfig(strategy, mode)
				cfg.ItemsPerProducer = 1 << 30
				cfg.RetryDelay = time.Millisecond

				s, err := New(cfg)
				require.NoError(t, err)

				ctx, cancel := context.WithTimeout(t.Context(), 30*time.Millisecond)
				defer cancel()

				report, err := s.Run(ctx)
				assert.ErrorIs(err, context.DeadlineExceeded)
				require.NotNil(t, report)

				assert.False(report.Valid())
				assert.Positive(report.Missing)
				assert.Zero(report.Duplicates)

				// The items left behind are still resident in the buffer
				assert.LessOrEqual(report.Consumed, report.Produced)
				assert.LessOrEqual(report.Produced-report.Consumed, int64(cfg.BufferCapacity))
				assert.Equal(int(report.Produced-report.Consumed), s.buffer.Len())
			})
		}
	}
}

func Test_Close(t *testing.T) {
	cfg := newTestConfig(pbuffer.StrategyCondVar, ModeBlocking)
	cfg.ItemsPerProducer = 1 << 30

	s, err := New(cfg)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background())
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	s.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("run did not return after close")
	}
}

func Test_Telemetry(t *testing.T) {
	assert := assert.New(t)

	reader := metric.NewManualReader()
	meterProvider := metric.NewMeterProvider(metric.WithReader(reader))
	defer meterProvider.Shutdown(t.Context())

	recorder := tracetest.NewSpanRecorder()
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tracerProvider.Shutdown(t.Context())

	cfg := newTestConfig(pbuffer.StrategySemaphore, ModeTimed)
	cfg.LogActivity = true

	s, err := New(cfg, WithMeterProvider(meterProvider), WithTracerProvider(tracerProvider))
	require.NoError(t, err)
	require.NoError(t, s.Init(t.Context()))

	report, err := s.Run(t.Context())
	require.NoError(t, err)

	rm := metricdata.ResourceMetrics{}
	require.NoError(t, reader.Collect(t.Context(), &rm))

	sums := map[string]int64{}
	histCount := uint64(0)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					sums[m.Name] += data.DataPoints[0].Value
				}
			case metricdata.Histogram[int64]:
				if m.Name == "operation_wait_time" && len(data.DataPoints) > 0 {
					histCount += data.DataPoints[0].Count
				}
			}
		}
	}

	assert.Equal(report.Produced, sums["produced_items"])
	assert.Equal(report.Consumed, sums["consumed_items"])
	assert.Equal(report.Timeouts, sums["timeouts"])
	assert.Zero(sums["occupied_slots"])
	assert.NotContains(sums, "buffer_occupancy")
	assert.Equal(uint64(report.Produced+report.Consumed), histCount)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal("run session", spans[0].Name())
}
