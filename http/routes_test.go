// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoutes_Resolve(t *testing.T) {
	t.Run("will return the alias", func(t *testing.T) {
		t.Run("if the uri is in the table", func(t *testing.T) {
			routes := NewRoutes(map[string]string{"/": "/index.html"})

			require.Equal(t, "/index.html", routes.Resolve("/"))
		})
	})

	t.Run("will pass the uri through", func(t *testing.T) {
		t.Run("if the uri is not in the table", func(t *testing.T) {
			routes := NewRoutes(map[string]string{"/": "/index.html"})

			require.Equal(t, "/missing", routes.Resolve("/missing"))
			require.Equal(t, "/missing", routes.Resolve("/missing"))
			require.Equal(t, 1, routes.Len())

			_, ok := routes.Lookup("/missing")
			require.False(t, ok)
		})

		t.Run("if the table is nil", func(t *testing.T) {
			var routes *Routes

			require.Equal(t, "/", routes.Resolve("/"))
			require.Zero(t, routes.Len())
		})
	})

	t.Run("will not see changes to the source map", func(t *testing.T) {
		m := map[string]string{"/": "/index.html"}
		routes := NewRoutes(m)

		m["/"] = "/other.html"
		m["/new"] = "/new.html"

		require.Equal(t, "/index.html", routes.Resolve("/"))
		require.Equal(t, "/new", routes.Resolve("/new"))
	})

	t.Run("will be safe for concurrent lookups", func(t *testing.T) {
		routes := NewRoutes(map[string]string{"/": "/index.html"})

		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 1000 {
					routes.Resolve("/")
					routes.Resolve("/missing")
				}
			}()
		}
		wg.Wait()
	})
}
