// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"syscall"

	"github.com/z5labs/axon"
	"github.com/z5labs/axon/app"
	"github.com/z5labs/axon/appbuilder"
	"github.com/z5labs/axon/config"
	"github.com/z5labs/axon/http"
	"github.com/z5labs/axon/pkg/otelslog"
	"github.com/z5labs/axon/pkg/slogfield"

	"github.com/spf13/cobra"
)

// InvalidPortError
type InvalidPortError struct {
	Value string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e InvalidPortError) Error() string {
	return fmt.Sprintf("invalid port %q: %s", e.Value, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidPortError) Unwrap() error {
	return e.Cause
}

// ErrInvalidPoolSize is returned when the configured pool has no workers.
var ErrInvalidPoolSize = errors.New("pool size must be at least 1")

func newRootCmd(logOut io.Writer) *cobra.Command {
	var (
		root       string
		configFile string
		poolSize   int
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "axon [port]",
		Short:         "Serve static files over HTTP/1.1 on 127.0.0.1",
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			srcs := []config.Source{defaults()}
			if configFile != "" {
				srcs = append(srcs, config.FromFile(configFile))
			}

			overrides, err := flagOverrides(cmd, args, root, poolSize, logLevel)
			if err != nil {
				return err
			}
			srcs = append(srcs, overrides)

			builder := appbuilder.Recover(
				appbuilder.OTel(
					axon.AppBuilderFunc[Config](buildApp(logOut)),
				),
			)
			return axon.Run(cmd.Context(), builder, srcs...)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&root, "root", defaultRoot, "directory files are served from")
	flags.StringVar(&configFile, "config", "", "yaml or json config file")
	flags.IntVar(&poolSize, "pool-size", http.DefaultPoolSize, "number of workers serving connections")
	flags.StringVar(&logLevel, "log-level", "info", "minimum log level (debug, info, warn, error)")

	return cmd
}

// flagOverrides only carries flags which were explicitly set so
// they don't shadow values read from the config file.
func flagOverrides(cmd *cobra.Command, args []string, root string, poolSize int, logLevel string) (config.Map, error) {
	httpCfg := make(map[string]any)
	if len(args) == 1 {
		port, err := strconv.ParseUint(args[0], 10, 16)
		if err != nil {
			return nil, InvalidPortError{Value: args[0], Cause: err}
		}
		httpCfg["port"] = int(port)
	}

	flags := cmd.Flags()
	if flags.Changed("root") {
		httpCfg["root"] = root
	}
	if flags.Changed("pool-size") {
		httpCfg["pool_size"] = poolSize
	}

	m := config.Map{}
	if len(httpCfg) > 0 {
		m["http"] = httpCfg
	}
	if flags.Changed("log-level") {
		m["logging"] = map[string]any{"level": logLevel}
	}
	return m, nil
}

func buildApp(logOut io.Writer) func(context.Context, Config) (axon.App, error) {
	return func(ctx context.Context, cfg Config) (axon.App, error) {
		if cfg.HTTP.PoolSize < 1 {
			return nil, ErrInvalidPoolSize
		}

		h := otelslog.NewJSONHandler(logOut, cfg.Logging.Level)
		log := slog.New(h)

		log.InfoContext(
			ctx,
			"spinning up server",
			slogfield.Uint16("port", cfg.HTTP.Port),
			slogfield.String("root", cfg.HTTP.Root),
		)

		srv, err := http.NewServer(
			cfg.HTTP.Port,
			cfg.HTTP.Root,
			cfg.HTTP.Routes,
			http.PoolSize(cfg.HTTP.PoolSize),
			http.LogHandler(h),
			http.ReadTimeout(cfg.HTTP.ReadTimeout),
			http.WriteTimeout(cfg.HTTP.WriteTimeout),
		)
		if err != nil {
			log.ErrorContext(ctx, "failed to create server", slogfield.Error(err))
			return nil, err
		}
		log.InfoContext(ctx, "server created", slogfield.Addr("addr", srv.Addr()))

		a := app.Recover(axon.AppFunc(srv.Listen))
		return app.WithSignalNotifications(a, os.Interrupt, syscall.SIGTERM), nil
	}
}
