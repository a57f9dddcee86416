// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"fmt"
	"strings"
)

// Map is an ordinary map[string]any which implements both the
// [Source] and [Store] interfaces.
type Map map[string]any

// Apply implements the [Source] interface. It recursively walks the underlying
// map to find key value pairs to set on the given store.
func (m Map) Apply(store Store) error {
	return walkMap(m, store, nil)
}

func walkMap(m map[string]any, store Store, path []string) error {
	for k, v := range m {
		p := append(path[:len(path):len(path)], k)
		switch x := v.(type) {
		case map[string]any:
			err := walkMap(x, store, p)
			if err != nil {
				return err
			}
		case Map:
			err := walkMap(x, store, p)
			if err != nil {
				return err
			}
		default:
			err := store.Set(p, x)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// EmptyKeyPathError occurs when a value is set without a key.
type EmptyKeyPathError struct {
	Value any
}

// Error implements the error interface.
func (e EmptyKeyPathError) Error() string {
	return fmt.Sprintf("attempted to set value to an empty key path: %v", e.Value)
}

// UnexpectedKeyValueTypeError represents the situation when
// a source tries nesting a key under a value which isn't a map.
type UnexpectedKeyValueTypeError struct {
	Key          string
	ExpectedType string
}

// Error implements the error interface.
func (e UnexpectedKeyValueTypeError) Error() string {
	return fmt.Sprintf("expected key value to be a %s: %s", e.ExpectedType, e.Key)
}

// Set implements the [Store] interface. Intermediate maps are created as needed.
func (m Map) Set(path []string, v any) error {
	if len(path) == 0 {
		return EmptyKeyPathError{Value: v}
	}

	cur := map[string]any(m)
	for i, k := range path[:len(path)-1] {
		next, ok := cur[k]
		if !ok {
			sub := make(map[string]any)
			cur[k] = sub
			cur = sub
			continue
		}

		sub, ok := next.(map[string]any)
		if !ok {
			return UnexpectedKeyValueTypeError{
				Key:          strings.Join(path[:i+1], "."),
				ExpectedType: "map[string]any",
			}
		}
		cur = sub
	}
	cur[path[len(path)-1]] = v
	return nil
}
