// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package appbuilder

import (
	"context"
	"errors"

	"github.com/z5labs/axon"
	"github.com/z5labs/axon/app"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// TracerProviderInitializer
type TracerProviderInitializer interface {
	InitTracerProvider(context.Context) (trace.TracerProvider, error)
}

// MeterProviderInitializer
type MeterProviderInitializer interface {
	InitMeterProvider(context.Context) (metric.MeterProvider, error)
}

// OTelInitializer represents anything which can initialize the OTel SDK.
type OTelInitializer interface {
	TracerProviderInitializer
	MeterProviderInitializer
}

// OTel is an [axon.AppBuilder] middleware which registers the providers
// returned by cfg as the OTel globals before building. A nil provider
// leaves the current global in place. Registered providers are shutdown
// once the built [axon.App] stops running, or right away if the build fails.
func OTel[T OTelInitializer](builder axon.AppBuilder[T]) axon.AppBuilder[T] {
	return axon.AppBuilderFunc[T](func(ctx context.Context, cfg T) (axon.App, error) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var hooks []app.LifecycleHook
		onPostRun := func() app.LifecycleHook {
			return app.ComposeLifecycleHooks(hooks...)
		}

		tp, err := cfg.InitTracerProvider(ctx)
		if err != nil {
			return nil, err
		}
		if tp != nil {
			otel.SetTracerProvider(tp)
			hooks = append(hooks, tryShutdown(tp))
		}

		mp, err := cfg.InitMeterProvider(ctx)
		if err != nil {
			return nil, errors.Join(err, onPostRun().Run(ctx))
		}
		if mp != nil {
			otel.SetMeterProvider(mp)
			hooks = append(hooks, tryShutdown(mp))
		}

		base, err := builder.Build(ctx, cfg)
		if err != nil {
			return nil, errors.Join(err, onPostRun().Run(ctx))
		}

		return app.WithLifecycleHooks(base, app.Lifecycle{
			PostRun: onPostRun(),
		}), nil
	})
}

type shutdowner interface {
	Shutdown(context.Context) error
}

func tryShutdown(v any) app.LifecycleHookFunc {
	return func(ctx context.Context) error {
		s, ok := v.(shutdowner)
		if !ok {
			return nil
		}
		return s.Shutdown(ctx)
	}
}
