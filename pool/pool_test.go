// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pool

import (
	"bytes"
	"context"
	"errors"
	"log"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew(t *testing.T) {
	t.Run("will panic", func(t *testing.T) {
		t.Run("if the size is zero", func(t *testing.T) {
			require.Panics(t, func() {
				New(0)
			})
		})

		t.Run("if the size is negative", func(t *testing.T) {
			require.Panics(t, func() {
				New(-1)
			})
		})
	})

	t.Run("will not write to the standard logger", func(t *testing.T) {
		var buf bytes.Buffer
		out := log.Writer()
		log.SetOutput(&buf)
		defer log.SetOutput(out)

		p := New(1)
		require.NoError(t, p.Close())

		require.Empty(t, buf.String())
	})

	t.Run("will start the requested number of workers", func(t *testing.T) {
		const size = 4
		p := New(size)
		defer p.Close()

		require.Equal(t, size, p.Size())

		var started sync.WaitGroup
		started.Add(size)
		release := make(chan struct{})
		for range size {
			err := p.Execute(context.Background(), func(ctx context.Context) error {
				started.Done()
				<-release
				return nil
			})
			require.NoError(t, err)
		}

		done := make(chan struct{})
		go func() {
			started.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("workers did not run jobs concurrently")
		}
		close(release)
	})
}

func TestPool_Execute(t *testing.T) {
	t.Run("will not block the caller", func(t *testing.T) {
		t.Run("if every worker is busy", func(t *testing.T) {
			p := New(1)
			defer p.Close()

			release := make(chan struct{})
			require.NoError(t, p.Execute(context.Background(), func(ctx context.Context) error {
				<-release
				return nil
			}))

			const n = 100
			var count atomic.Int64
			submitted := make(chan struct{})
			go func() {
				defer close(submitted)
				for range n {
					p.Execute(context.Background(), func(ctx context.Context) error {
						count.Add(1)
						return nil
					})
				}
			}()

			select {
			case <-submitted:
			case <-time.After(5 * time.Second):
				t.Fatal("Execute blocked while the only worker was busy")
			}
			require.Zero(t, count.Load())

			close(release)
			require.NoError(t, p.Close())
			require.Equal(t, int64(n), count.Load())
		})
	})

	t.Run("will run jobs in FIFO order", func(t *testing.T) {
		t.Run("if there is a single worker", func(t *testing.T) {
			p := New(1)

			var mu sync.Mutex
			var order []int
			for i := range 10 {
				require.NoError(t, p.Execute(context.Background(), func(ctx context.Context) error {
					mu.Lock()
					defer mu.Unlock()
					order = append(order, i)
					return nil
				}))
			}
			require.NoError(t, p.Close())

			require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
		})
	})

	t.Run("will keep the worker running", func(t *testing.T) {
		t.Run("if a job panics", func(t *testing.T) {
			var buf bytes.Buffer
			p := New(1, LogHandler(slog.NewJSONHandler(&buf, nil)))

			require.NoError(t, p.Execute(context.Background(), func(ctx context.Context) error {
				panic("stalled read")
			}))

			var ran atomic.Bool
			require.NoError(t, p.Execute(context.Background(), func(ctx context.Context) error {
				ran.Store(true)
				return nil
			}))
			require.NoError(t, p.Close())

			require.True(t, ran.Load())
			require.Contains(t, buf.String(), "recovered from job panic")
		})

		t.Run("if a job returns an error", func(t *testing.T) {
			var buf bytes.Buffer
			p := New(1, LogHandler(slog.NewJSONHandler(&buf, nil)))

			require.NoError(t, p.Execute(context.Background(), func(ctx context.Context) error {
				return errors.New("connection reset")
			}))

			var ran atomic.Bool
			require.NoError(t, p.Execute(context.Background(), func(ctx context.Context) error {
				ran.Store(true)
				return nil
			}))
			require.NoError(t, p.Close())

			require.True(t, ran.Load())
			require.Contains(t, buf.String(), "connection reset")
		})
	})

	t.Run("will ignore cancellation of the submitting context", func(t *testing.T) {
		p := New(1)

		ctx, cancel := context.WithCancel(context.Background())
		var jobErr error
		require.NoError(t, p.Execute(ctx, func(ctx context.Context) error {
			jobErr = ctx.Err()
			return nil
		}))
		cancel()
		require.NoError(t, p.Close())

		require.NoError(t, jobErr)
	})

	t.Run("will return ErrClosed", func(t *testing.T) {
		t.Run("if the pool has been closed", func(t *testing.T) {
			p := New(2)
			require.NoError(t, p.Close())

			err := p.Execute(context.Background(), func(ctx context.Context) error {
				return nil
			})
			require.ErrorIs(t, err, ErrClosed)
		})
	})
}

func TestPool_Close(t *testing.T) {
	t.Run("will drain every queued job before returning", func(t *testing.T) {
		const n = 1000
		p := New(8)

		var count atomic.Int64
		for range n {
			require.NoError(t, p.Execute(context.Background(), func(ctx context.Context) error {
				count.Add(1)
				return nil
			}))
		}
		require.NoError(t, p.Close())

		require.Equal(t, int64(n), count.Load())
		require.Zero(t, p.Pending())
	})

	t.Run("will be safe to call more than once", func(t *testing.T) {
		p := New(2)

		require.NoError(t, p.Close())
		require.NoError(t, p.Close())
	})

	t.Run("will count queued stop signals as pending", func(t *testing.T) {
		p := New(1)

		release := make(chan struct{})
		running := make(chan struct{})
		require.NoError(t, p.Execute(context.Background(), func(ctx context.Context) error {
			close(running)
			<-release
			return nil
		}))
		<-running

		closed := make(chan error, 1)
		go func() {
			closed <- p.Close()
		}()

		require.Eventually(t, func() bool {
			return p.Pending() == 1
		}, 5*time.Second, time.Millisecond)

		close(release)
		require.NoError(t, <-closed)
		require.Zero(t, p.Pending())
	})
}

func TestPool_idle(t *testing.T) {
	t.Run("will run jobs submitted after the workers have been idle", func(t *testing.T) {
		p := New(4)
		defer p.Close()

		time.Sleep(1500 * time.Millisecond)

		done := make(chan struct{})
		require.NoError(t, p.Execute(context.Background(), func(ctx context.Context) error {
			close(done)
			return nil
		}))

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("job was not picked up by an idle worker")
		}
	})
}

func sumCounters(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			data, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range data.DataPoints {
				sums[m.Name] += dp.Value
			}
		}
	}
	return sums
}

func TestPool_telemetry(t *testing.T) {
	t.Run("will record a span and counters per job", func(t *testing.T) {
		exporter := tracetest.NewInMemoryExporter()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

		p := New(2, TracerProvider(tp), MeterProvider(mp))
		require.NoError(t, p.Execute(context.Background(), func(ctx context.Context) error {
			return nil
		}))
		require.NoError(t, p.Execute(context.Background(), func(ctx context.Context) error {
			return errors.New("write failed")
		}))
		require.NoError(t, p.Close())

		spans := exporter.GetSpans()
		require.Len(t, spans, 2)
		for _, span := range spans {
			assert.Equal(t, "pool.Job", span.Name)
		}

		sums := sumCounters(t, reader)
		assert.Equal(t, int64(2), sums["axon.pool.jobs.executed"])
		assert.Equal(t, int64(1), sums["axon.pool.jobs.failed"])
		assert.Equal(t, int64(0), sums["axon.pool.jobs.queued"])
	})

	t.Run("will not count rejected jobs as queued", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

		p := New(1, MeterProvider(mp))
		require.NoError(t, p.Close())

		err := p.Execute(context.Background(), func(ctx context.Context) error {
			return nil
		})
		require.ErrorIs(t, err, ErrClosed)

		sums := sumCounters(t, reader)
		assert.Equal(t, int64(0), sums["axon.pool.jobs.queued"])
	})
}
