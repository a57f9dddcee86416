// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http

import "maps"

// Routes is an immutable alias table from request target to a path
// relative to the document root. It's safe for concurrent use since
// nothing can modify it after NewRoutes returns.
type Routes struct {
	aliases map[string]string
}

// NewRoutes copies m into a new Routes.
func NewRoutes(m map[string]string) *Routes {
	aliases := make(map[string]string, len(m))
	maps.Copy(aliases, m)
	return &Routes{aliases: aliases}
}

// Len returns the number of aliases.
func (r *Routes) Len() int {
	if r == nil {
		return 0
	}
	return len(r.aliases)
}

// Lookup returns the alias for uri, if there is one.
func (r *Routes) Lookup(uri string) (string, bool) {
	if r == nil {
		return "", false
	}
	p, ok := r.aliases[uri]
	return p, ok
}

// Resolve returns the alias for uri or uri itself when no alias exists.
// There's no implicit index rule: "/" only maps to a file if it has an alias.
func (r *Routes) Resolve(uri string) string {
	if p, ok := r.Lookup(uri); ok {
		return p
	}
	return uri
}
