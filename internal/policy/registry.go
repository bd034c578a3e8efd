package policy

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

var registry sync.Map

var (
	// ErrDuplicatePolicy indicates a policy name is already registered.
	ErrDuplicatePolicy = errors.New("policy already registered")
	// ErrUnknownPolicy indicates a lookup for a name nobody registered.
	ErrUnknownPolicy = errors.New("unknown download policy")
)

// Register stores a policy under the given name.
func Register(name string, fn Func) error {
	key := Normalize(name)
	if key == "" {
		return errors.New("policy name required")
	}
	if fn == nil {
		return errors.New("policy func required")
	}
	if _, loaded := registry.LoadOrStore(key, fn); loaded {
		return ErrDuplicatePolicy
	}
	return nil
}

// MustRegister panics on registration failure.
func MustRegister(name string, fn Func) {
	if err := Register(name, fn); err != nil {
		panic(err)
	}
}

// Fetch retrieves the policy registered under name.
func Fetch(name string) (Func, bool) {
	key := Normalize(name)
	if key == "" {
		return nil, false
	}
	if value, ok := registry.Load(key); ok {
		if fn, ok := value.(Func); ok {
			return fn, true
		}
	}
	return nil, false
}

// Known reports whether name resolves to a registered policy.
func Known(name string) bool {
	_, ok := Fetch(name)
	return ok
}

// Names returns all registered policy names in sorted order.
func Names() []string {
	var names []string
	registry.Range(func(key, _ any) bool {
		names = append(names, key.(string))
		return true
	})
	sort.Strings(names)
	return names
}

// Normalize lower-cases and trims a policy name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
