// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package axon is a small HTTP/1.1 static file server bound to the
// loopback interface.
//
// The server itself lives in the [github.com/z5labs/axon/http] package
// and serves every accepted connection on a fixed pool of workers from
// [github.com/z5labs/axon/pool]. This package provides the glue used by
// the axon command to turn config sources into a running [App]:
//
//	err := axon.Run(ctx, axon.AppBuilderFunc[Config](build), config.FromFile("axon.yaml"))
//
// Run reads and merges every [config.Source], decodes the result into the
// config type, builds the [App] and runs it. Each step reports failure with
// its own error type, e.g. [ConfigReadError] or [AppRunError].
package axon
