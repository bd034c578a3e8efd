package layout

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

const defaultLayoutKey = "default"

var globalRegistry = newRegistry()

type registry struct {
	mu      sync.RWMutex
	layouts map[string]Layout
}

func newRegistry() *registry {
	return &registry{layouts: make(map[string]Layout)}
}

// DefaultKey 返回未显式配置时使用的布局键。
func DefaultKey() string {
	return defaultLayoutKey
}

// Register 将布局加入全局注册表，重复键会返回错误。
func Register(l Layout) error {
	return globalRegistry.register(l)
}

// MustRegister 在注册失败时 panic，适合布局子包的 init() 调用。
func MustRegister(l Layout) {
	if err := Register(l); err != nil {
		panic(err)
	}
}

// Resolve 返回指定键的布局，大小写不敏感。
func Resolve(key string) (Layout, bool) {
	return globalRegistry.resolve(key)
}

// List 返回按键排序的布局列表。
func List() []Layout {
	return globalRegistry.list()
}

// Keys 返回所有已注册布局的键值，供配置校验与诊断使用。
func Keys() []string {
	items := List()
	result := make([]string, len(items))
	for i, l := range items {
		result[i] = l.ID()
	}
	return result
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (r *registry) register(l Layout) error {
	if l == nil {
		return fmt.Errorf("layout is required")
	}
	key := normalizeKey(l.ID())
	if key == "" {
		return fmt.Errorf("layout key is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.layouts[key]; exists {
		return fmt.Errorf("layout %s already registered", key)
	}
	r.layouts[key] = l
	return nil
}

func (r *registry) resolve(key string) (Layout, bool) {
	normalized := normalizeKey(key)
	if normalized == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.layouts[normalized]
	return l, ok
}

func (r *registry) list() []Layout {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.layouts) == 0 {
		return nil
	}

	keys := make([]string, 0, len(r.layouts))
	for key := range r.layouts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]Layout, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.layouts[key])
	}
	return result
}
