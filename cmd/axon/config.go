// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/z5labs/axon/config"
	"github.com/z5labs/axon/http"
	"github.com/z5labs/axon/pkg/otelconfig"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Config is decoded from the merged defaults, config file and flags.
type Config struct {
	HTTP struct {
		Port         uint16            `config:"port"`
		Root         string            `config:"root"`
		Routes       map[string]string `config:"routes"`
		PoolSize     int               `config:"pool_size"`
		ReadTimeout  time.Duration     `config:"read_timeout"`
		WriteTimeout time.Duration     `config:"write_timeout"`
	} `config:"http"`

	Logging struct {
		Level slog.Level `config:"level"`
	} `config:"logging"`

	OTel otelconfig.Config `config:"otel"`
}

// InitTracerProvider implements the [appbuilder.TracerProviderInitializer] interface.
func (cfg Config) InitTracerProvider(ctx context.Context) (trace.TracerProvider, error) {
	return cfg.OTel.InitTracerProvider(ctx)
}

// InitMeterProvider implements the [appbuilder.MeterProviderInitializer] interface.
func (cfg Config) InitMeterProvider(ctx context.Context) (metric.MeterProvider, error) {
	return cfg.OTel.InitMeterProvider(ctx)
}

const (
	defaultPort = 8080
	defaultRoot = "./root"
)

func defaults() config.Map {
	return config.Map{
		"http": map[string]any{
			"port": defaultPort,
			"root": defaultRoot,
			"routes": map[string]any{
				"/": "/index.html",
			},
			"pool_size": http.DefaultPoolSize,
		},
		"logging": map[string]any{
			"level": "info",
		},
		"otel": map[string]any{
			"exporter":     "none",
			"service_name": "axon",
		},
	}
}
