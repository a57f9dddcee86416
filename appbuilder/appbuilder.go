// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package appbuilder provides [axon.AppBuilder] middleware.
package appbuilder

import (
	"context"

	"github.com/z5labs/axon"
	"github.com/z5labs/axon/internal/try"
)

// Recover will wrap the given [axon.AppBuilder] with panic recovery.
func Recover[T any](builder axon.AppBuilder[T]) axon.AppBuilder[T] {
	return axon.AppBuilderFunc[T](func(ctx context.Context, cfg T) (_ axon.App, err error) {
		defer try.Recover(&err)

		return builder.Build(ctx, cfg)
	})
}
