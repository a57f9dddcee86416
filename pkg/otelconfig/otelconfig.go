// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otelconfig initializes the OTel SDK from config.
package otelconfig

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Exporter names where telemetry is sent.
type Exporter string

const (
	// ExporterNone leaves the global providers untouched.
	ExporterNone Exporter = "none"

	// ExporterStdout writes pretty printed spans and metrics to [Config.Out].
	ExporterStdout Exporter = "stdout"

	// ExporterOTLP sends spans and metrics to an OTLP collector over gRPC.
	ExporterOTLP Exporter = "otlp"
)

// UnknownExporterError
type UnknownExporterError struct {
	Name string
}

// Error implements the [builtin.error] interface.
func (e UnknownExporterError) Error() string {
	return fmt.Sprintf("unknown otel exporter: %q", e.Name)
}

// UnmarshalText implements the [encoding.TextUnmarshaler] interface.
func (e *Exporter) UnmarshalText(b []byte) error {
	switch x := Exporter(strings.ToLower(string(b))); x {
	case "", ExporterNone:
		*e = ExporterNone
	case ExporterStdout, ExporterOTLP:
		*e = x
	default:
		return UnknownExporterError{Name: string(b)}
	}
	return nil
}

// ErrMissingTarget is returned when the OTLP exporter is selected
// without a collector target.
var ErrMissingTarget = errors.New("otelconfig: otlp exporter requires a target")

// Config
type Config struct {
	Exporter    Exporter `config:"exporter"`
	ServiceName string   `config:"service_name"`

	// gRPC target of the OTLP collector, e.g. localhost:4317.
	OTLPTarget string `config:"otlp_target"`

	// Out receives stdout exports. Defaults to [os.Stdout].
	Out io.Writer `config:"-"`

	// Interval between metric exports. Defaults to 1 minute.
	MetricInterval time.Duration `config:"metric_interval"`
}

// InitTracerProvider returns a nil [trace.TracerProvider] when the
// exporter is none so the global provider is left as is.
func (cfg Config) InitTracerProvider(ctx context.Context) (trace.TracerProvider, error) {
	var exp sdktrace.SpanExporter
	switch cfg.Exporter {
	case "", ExporterNone:
		return nil, nil
	case ExporterStdout:
		var err error
		exp, err = stdouttrace.New(
			stdouttrace.WithWriter(cfg.out()),
		)
		if err != nil {
			return nil, err
		}
	case ExporterOTLP:
		conn, err := cfg.dial()
		if err != nil {
			return nil, err
		}
		exp, err = otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, errors.Join(err, conn.Close())
		}
		exp = closeConnOnShutdown{SpanExporter: exp, conn: conn}
	default:
		return nil, UnknownExporterError{Name: string(cfg.Exporter)}
	}

	res, err := cfg.resource(ctx)
	if err != nil {
		return nil, errors.Join(err, exp.Shutdown(ctx))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp),
	)
	return tp, nil
}

// InitMeterProvider returns a nil [metric.MeterProvider] when the
// exporter is none so the global provider is left as is.
func (cfg Config) InitMeterProvider(ctx context.Context) (metric.MeterProvider, error) {
	var exp sdkmetric.Exporter
	switch cfg.Exporter {
	case "", ExporterNone:
		return nil, nil
	case ExporterStdout:
		var err error
		exp, err = stdoutmetric.New(
			stdoutmetric.WithWriter(cfg.out()),
		)
		if err != nil {
			return nil, err
		}
	case ExporterOTLP:
		conn, err := cfg.dial()
		if err != nil {
			return nil, err
		}
		exp, err = otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, errors.Join(err, conn.Close())
		}
		exp = closeConnOnMetricShutdown{Exporter: exp, conn: conn}
	default:
		return nil, UnknownExporterError{Name: string(cfg.Exporter)}
	}

	res, err := cfg.resource(ctx)
	if err != nil {
		return nil, errors.Join(err, exp.Shutdown(ctx))
	}

	interval := cfg.MetricInterval
	if interval <= 0 {
		interval = time.Minute
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))),
	)
	return mp, nil
}

func (cfg Config) out() io.Writer {
	if cfg.Out == nil {
		return os.Stdout
	}
	return cfg.Out
}

func (cfg Config) resource(ctx context.Context) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "axon"
	}
	return resource.New(
		ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(name),
		),
	)
}

// dial does not block, the connection is established on first export.
func (cfg Config) dial() (*grpc.ClientConn, error) {
	if cfg.OTLPTarget == "" {
		return nil, ErrMissingTarget
	}
	return grpc.NewClient(
		cfg.OTLPTarget,
		// TLS is recommended in production.
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
}

type closeConnOnShutdown struct {
	sdktrace.SpanExporter
	conn *grpc.ClientConn
}

func (e closeConnOnShutdown) Shutdown(ctx context.Context) error {
	return errors.Join(e.SpanExporter.Shutdown(ctx), e.conn.Close())
}

type closeConnOnMetricShutdown struct {
	sdkmetric.Exporter
	conn *grpc.ClientConn
}

func (e closeConnOnMetricShutdown) Shutdown(ctx context.Context) error {
	return errors.Join(e.Exporter.Shutdown(ctx), e.conn.Close())
}
