// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command axon serves static files over HTTP/1.1 on 127.0.0.1.
//
//	axon [port] [--root dir] [--config file] [--pool-size n] [--log-level level]
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/z5labs/axon/pkg/otelslog"
	"github.com/z5labs/axon/pkg/slogfield"
)

func main() {
	err := newRootCmd(os.Stderr).ExecuteContext(context.Background())
	if err == nil {
		return
	}

	log := otelslog.New(slog.NewJSONHandler(os.Stderr, nil))
	log.Error("axon exited with an error", slogfield.Error(err))
	os.Exit(1)
}
