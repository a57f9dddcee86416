// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package axon

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/z5labs/axon/config"

	"github.com/stretchr/testify/assert"
)

type runConfig struct {
	HTTP struct {
		Port uint16 `config:"port"`
		Root string `config:"root"`
	} `config:"http"`
}

func TestRun(t *testing.T) {
	t.Run("will return a ConfigReadError", func(t *testing.T) {
		t.Run("if a config source fails to apply", func(t *testing.T) {
			srcErr := errors.New("failed to apply")
			src := config.SourceFunc(func(config.Store) error {
				return srcErr
			})

			build := AppBuilderFunc[runConfig](func(ctx context.Context, cfg runConfig) (App, error) {
				return nil, nil
			})

			err := Run(context.Background(), build, src)

			var cerr ConfigReadError
			if !assert.ErrorAs(t, err, &cerr) {
				return
			}
			if !assert.ErrorIs(t, cerr, srcErr) {
				return
			}
			if !assert.NotEmpty(t, cerr.Error()) {
				return
			}
		})
	})

	t.Run("will return a ConfigUnmarshalError", func(t *testing.T) {
		t.Run("if a value can not be decoded into the config type", func(t *testing.T) {
			src := config.Map{
				"http": map[string]any{
					"port": "not a port",
				},
			}

			build := AppBuilderFunc[runConfig](func(ctx context.Context, cfg runConfig) (App, error) {
				return nil, nil
			})

			err := Run(context.Background(), build, src)

			var cerr ConfigUnmarshalError
			if !assert.ErrorAs(t, err, &cerr) {
				return
			}
			if !assert.NotEmpty(t, cerr.Error()) {
				return
			}
		})
	})

	t.Run("will return an AppBuildError", func(t *testing.T) {
		t.Run("if the builder fails", func(t *testing.T) {
			buildErr := errors.New("failed to build")
			build := AppBuilderFunc[runConfig](func(ctx context.Context, cfg runConfig) (App, error) {
				return nil, buildErr
			})

			err := Run(context.Background(), build)

			var berr AppBuildError
			if !assert.ErrorAs(t, err, &berr) {
				return
			}
			if !assert.ErrorIs(t, berr, buildErr) {
				return
			}
		})
	})

	t.Run("will return an AppRunError", func(t *testing.T) {
		t.Run("if the app fails", func(t *testing.T) {
			runErr := errors.New("failed to run")
			build := AppBuilderFunc[runConfig](func(ctx context.Context, cfg runConfig) (App, error) {
				return AppFunc(func(ctx context.Context) error {
					return runErr
				}), nil
			})

			err := Run(context.Background(), build)

			var rerr AppRunError
			if !assert.ErrorAs(t, err, &rerr) {
				return
			}
			if !assert.ErrorIs(t, rerr, runErr) {
				return
			}
		})
	})

	t.Run("will build the app with the merged config", func(t *testing.T) {
		t.Run("if later sources override earlier ones", func(t *testing.T) {
			defaults := config.Map{
				"http": map[string]any{
					"port": 8080,
					"root": "./root",
				},
			}
			file := config.FromYaml(strings.NewReader("http:\n  port: 9000\n"))

			var got runConfig
			build := AppBuilderFunc[runConfig](func(ctx context.Context, cfg runConfig) (App, error) {
				got = cfg
				return AppFunc(func(ctx context.Context) error {
					return nil
				}), nil
			})

			err := Run(context.Background(), build, defaults, file)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, uint16(9000), got.HTTP.Port) {
				return
			}
			if !assert.Equal(t, "./root", got.HTTP.Root) {
				return
			}
		})
	})
}
