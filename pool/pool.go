// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package pool provides a fixed size pool of workers consuming jobs
// from an unbounded FIFO queue.
//
// The queue has no backpressure. Execute never waits for a free
// worker, so a burst of work grows the queue instead of being
// rejected or throttled.
package pool

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/z5labs/axon/internal/try"
	"github.com/z5labs/axon/pkg/noop"
	"github.com/z5labs/axon/pkg/slogfield"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/z5labs/axon/pool"

// Job is a single unit of work. Errors and panics are isolated to the
// job which produced them.
type Job func(context.Context) error

// ErrClosed is returned by Execute once Close has been called.
var ErrClosed = errors.New("pool: closed")

type options struct {
	logHandler     slog.Handler
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures a Pool.
type Option func(*options)

// LogHandler sets the slog.Handler used to report failed jobs.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// TracerProvider sets the provider used to start a span per job.
// Defaults to the global provider.
func TracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// MeterProvider sets the provider used to record job counts.
// Defaults to the global provider.
func MeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// Pool is a fixed set of long-lived workers.
type Pool struct {
	log    *slog.Logger
	tracer trace.Tracer

	queued   metric.Int64UpDownCounter
	executed metric.Int64Counter
	failed   metric.Int64Counter

	size int
	q    *queue
	wg   sync.WaitGroup
}

// New starts n workers, each blocking on the shared queue until it
// receives a job or its stop signal. New panics if n is not positive.
func New(n int, opts ...Option) *Pool {
	if n <= 0 {
		panic("pool: size must be positive")
	}

	o := &options{
		logHandler:     noop.LogHandler{},
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(o)
	}

	meter := o.meterProvider.Meter(instrumentationName)
	queued, err := meter.Int64UpDownCounter(
		"axon.pool.jobs.queued",
		metric.WithDescription("Number of jobs waiting for a worker."),
	)
	handleErr(err)
	executed, err := meter.Int64Counter(
		"axon.pool.jobs.executed",
		metric.WithDescription("Number of jobs run to completion, including failed jobs."),
	)
	handleErr(err)
	failed, err := meter.Int64Counter(
		"axon.pool.jobs.failed",
		metric.WithDescription("Number of jobs which returned an error or panicked."),
	)
	handleErr(err)

	p := &Pool{
		log:      slog.New(o.logHandler),
		tracer:   o.tracerProvider.Tracer(instrumentationName),
		queued:   queued,
		executed: executed,
		failed:   failed,
		size:     n,
		q:        newQueue(),
	}

	p.wg.Add(n)
	for id := range n {
		go p.work(id)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Pending returns the number of queued units not yet picked up by a worker.
// Once Close has been called this includes the stop signals still queued.
func (p *Pool) Pending() int {
	return p.q.len()
}

// Execute enqueues job. It never blocks waiting for a worker.
//
// ctx only carries values, e.g. the current span, to the job.
// Cancelling it has no effect on a job once it's been queued.
func (p *Pool) Execute(ctx context.Context, job Job) error {
	u := unit{
		ctx: context.WithoutCancel(ctx),
		job: job,
	}
	// counted before the push so a worker never decrements first
	p.queued.Add(ctx, 1)
	if !p.q.push(u) {
		p.queued.Add(ctx, -1)
		return ErrClosed
	}
	return nil
}

// Close enqueues one stop signal per worker, behind every job already
// queued, and blocks until all workers have exited. Every job queued
// before Close is executed. Calling Close more than once is safe.
func (p *Pool) Close() error {
	p.q.close(p.size)
	p.wg.Wait()
	return nil
}

func (p *Pool) work(id int) {
	defer p.wg.Done()

	for {
		u := p.q.pop()
		if u.stop {
			p.log.Debug("worker stopped", slogfield.Int("worker", id))
			return
		}
		p.queued.Add(u.ctx, -1)
		p.run(id, u)
	}
}

func (p *Pool) run(id int, u unit) {
	ctx, span := p.tracer.Start(
		u.ctx,
		"pool.Job",
		trace.WithAttributes(attribute.Int("axon.pool.worker", id)),
	)
	defer span.End()

	err := invoke(ctx, u.job)
	p.executed.Add(ctx, 1)
	if err == nil {
		return
	}

	p.failed.Add(ctx, 1)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	var perr try.PanicError
	if errors.As(err, &perr) {
		p.log.ErrorContext(
			ctx,
			"recovered from job panic",
			slogfield.Int("worker", id),
			slogfield.Error(err),
			slogfield.String("stack", string(perr.Stack)),
		)
		return
	}
	p.log.ErrorContext(ctx, "job failed", slogfield.Int("worker", id), slogfield.Error(err))
}

// handleErr reports instrument creation failures. The default otel
// error handler logs unconditionally, so nil must be filtered here.
func handleErr(err error) {
	if err != nil {
		otel.Handle(err)
	}
}

func invoke(ctx context.Context, job Job) (err error) {
	defer try.Recover(&err)
	return job(ctx)
}
