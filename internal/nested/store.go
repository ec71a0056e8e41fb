// Package nested provides an ordered, auto-vivifying key-path store used to
// hold features, feature scores and metric records indexed by
// seed/bootstrap/job/model.
//
// Every key segment is normalized to a string at the store boundary. Integer
// seeds and bootstrap iterations therefore survive a JSON round trip without
// turning into a second, differently typed key.
package nested

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
)

// ErrInconsistentKeyType is returned when a key segment cannot be normalized
// to the canonical string representation.
var ErrInconsistentKeyType = errors.New("inconsistent key type")

// KeyTypeError reports a key segment with an unsupported type.
type KeyTypeError struct {
	Index int
	Value any
}

func (e *KeyTypeError) Error() string {
	return fmt.Sprintf("key segment %d has unsupported type %T (%v)", e.Index, e.Value, e.Value)
}

func (e *KeyTypeError) Unwrap() error { return ErrInconsistentKeyType }

// Path is a normalized key path.
type Path []string

// Key normalizes a single key segment. Strings are used verbatim, integer
// kinds are rendered in base 10 and fmt.Stringers use their String method.
func Key(k any) (string, error) {
	switch v := k.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	}
	rv := reflect.ValueOf(k)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.String:
		return rv.String(), nil
	}
	return "", &KeyTypeError{Value: k}
}

// ParsePath normalizes keys into a Path.
func ParsePath(keys ...any) (Path, error) {
	p := make(Path, len(keys))
	for i, k := range keys {
		s, err := Key(k)
		if err != nil {
			var kte *KeyTypeError
			if errors.As(err, &kte) {
				kte.Index = i
			}
			return nil, err
		}
		p[i] = s
	}
	return p, nil
}

// MustPath is like ParsePath but panics on an unsupported key type. It is
// meant for call sites whose key types are fixed at compile time.
func MustPath(keys ...any) Path {
	p, err := ParsePath(keys...)
	if err != nil {
		panic(err)
	}
	return p
}

// Store is an ordered mapping from string keys to either a leaf value or a
// child *Store. Reading a missing path never fails; writing a path creates
// any missing intermediate level.
//
// A Store is not safe for concurrent use.
type Store struct {
	keys   []string
	values map[string]any
}

// New returns an empty store.
func New() *Store {
	return &Store{values: make(map[string]any)}
}

// Len returns the number of direct children.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// IsEmpty reports whether the store has no children.
func (s *Store) IsEmpty() bool { return s.Len() == 0 }

// Keys returns the direct child keys in insertion order.
func (s *Store) Keys() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Get returns the value stored at path: a leaf, a child *Store, or a new empty
// *Store if nothing was written there. Get does not create missing levels.
func (s *Store) Get(path Path) any {
	cur := s
	for i, k := range path {
		if cur == nil {
			return New()
		}
		v, ok := cur.values[k]
		if !ok {
			return New()
		}
		if i == len(path)-1 {
			return v
		}
		child, ok := v.(*Store)
		if !ok {
			// a leaf sits where a level was expected
			return New()
		}
		cur = child
	}
	return cur
}

// Lookup returns the value at path and whether it was ever written.
func (s *Store) Lookup(path Path) (any, bool) {
	cur := s
	for i, k := range path {
		if cur == nil {
			return nil, false
		}
		v, ok := cur.values[k]
		if !ok {
			return nil, false
		}
		if i == len(path)-1 {
			return v, true
		}
		child, ok := v.(*Store)
		if !ok {
			return nil, false
		}
		cur = child
	}
	return cur, true
}

// Child returns the store at path. Missing paths and leaves yield an empty,
// detached store.
func (s *Store) Child(path Path) *Store {
	if c, ok := s.Get(path).(*Store); ok {
		return c
	}
	return New()
}

// Set writes value at path, creating intermediate stores as needed. A leaf
// found on an intermediate level is replaced by a store. Setting an empty
// path is a no-op.
func (s *Store) Set(path Path, value any) {
	if len(path) == 0 {
		return
	}
	cur := s
	for _, k := range path[:len(path)-1] {
		child, ok := cur.values[k].(*Store)
		if !ok {
			child = New()
			cur.put(k, child)
		}
		cur = child
	}
	cur.put(path[len(path)-1], value)
}

func (s *Store) put(k string, v any) {
	if s.values == nil {
		s.values = make(map[string]any)
	}
	if _, exists := s.values[k]; !exists {
		s.keys = append(s.keys, k)
	}
	s.values[k] = v
}

// Walk visits every leaf depth-first in insertion order. Returning an error
// from fn stops the walk.
func (s *Store) Walk(fn func(path Path, leaf any) error) error {
	return s.walk(nil, fn)
}

func (s *Store) walk(prefix Path, fn func(Path, any) error) error {
	if s == nil {
		return nil
	}
	for _, k := range s.keys {
		p := append(append(Path(nil), prefix...), k)
		if child, ok := s.values[k].(*Store); ok {
			if err := child.walk(p, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(p, s.values[k]); err != nil {
			return err
		}
	}
	return nil
}

// ToMap converts the store into plain nested maps. Child stores become
// map[string]any; leaves are returned as-is.
func (s *Store) ToMap() map[string]any {
	out := make(map[string]any, s.Len())
	if s == nil {
		return out
	}
	for _, k := range s.keys {
		if child, ok := s.values[k].(*Store); ok {
			out[k] = child.ToMap()
			continue
		}
		out[k] = s.values[k]
	}
	return out
}

// FromMap builds a store from plain nested maps. Map keys are visited in
// sorted order because Go maps carry none.
func FromMap(m map[string]any) *Store {
	s := New()
	for _, k := range sortedKeys(m) {
		if child, ok := m[k].(map[string]any); ok {
			s.put(k, FromMap(child))
			continue
		}
		s.put(k, m[k])
	}
	return s
}
