package proxy

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/artifact-hub/internal/cache"
	"github.com/any-hub/artifact-hub/internal/checksum"
	"github.com/any-hub/artifact-hub/internal/config"
	"github.com/any-hub/artifact-hub/internal/layout"
	"github.com/any-hub/artifact-hub/internal/policy"
	"github.com/any-hub/artifact-hub/internal/server"
)

// ConfigSource 返回当前生效的配置，通常是已加载的 *config.Config。
type ConfigSource func() (*config.Config, error)

// StaticSource 将固定配置包装为 ConfigSource。
func StaticSource(cfg *config.Config) ConfigSource {
	return func() (*config.Config, error) {
		if cfg == nil {
			return nil, errors.New("config is nil")
		}
		return cfg, nil
	}
}

// Origin 是级联中的一个远程源站，构建时已解析 URL 并确定生效的校验策略。
type Origin struct {
	ID             string
	Repository     string
	BaseURL        *url.URL
	Username       string
	Password       string
	ChecksumPolicy string
	Whitelist      []string
	Blacklist      []string
}

// HasCredentials 表示是否需要 basic auth。
func (o Origin) HasCredentials() bool {
	return o.Username != "" && o.Password != ""
}

// AuthMode 输出 `credentialed` 或 `anonymous`，供日志字段使用。
func (o Origin) AuthMode() string {
	if o.HasCredentials() {
		return "credentialed"
	}
	return "anonymous"
}

// Allows 判断源站是否负责该路径：黑名单优先，白名单为空表示全部允许。
func (o Origin) Allows(relPath string) bool {
	for _, pattern := range o.Blacklist {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return false
		}
	}
	if len(o.Whitelist) == 0 {
		return true
	}
	for _, pattern := range o.Whitelist {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return true
		}
	}
	return false
}

// NetworkProxy 是所有源站共享的出站代理。
type NetworkProxy struct {
	Protocol      string
	Host          string
	Port          int
	Username      string
	Password      string
	NonProxyHosts []string
}

// URL 返回带凭证的代理地址。
func (n *NetworkProxy) URL() *url.URL {
	u := &url.URL{
		Scheme: n.Protocol,
		Host:   n.Host + ":" + strconv.Itoa(n.Port),
	}
	if n.Username != "" {
		u.User = url.UserPassword(n.Username, n.Password)
	}
	return u
}

// Bypass 判断主机是否命中 NonProxyHosts。
func (n *NetworkProxy) Bypass(host string) bool {
	host = strings.ToLower(host)
	for _, pattern := range n.NonProxyHosts {
		if ok, _ := doublestar.Match(pattern, host); ok {
			return true
		}
	}
	return false
}

// ProxyFunc 生成 http.Transport 使用的代理选择函数。
func (n *NetworkProxy) ProxyFunc() server.ProxyFunc {
	proxyURL := n.URL()
	return func(req *http.Request) (*url.URL, error) {
		if n.Bypass(req.URL.Hostname()) {
			return nil, nil
		}
		return proxyURL, nil
	}
}

// Group 绑定一个受管仓库及其有序源站列表。构建后只读。
type Group struct {
	ID           string
	Location     string
	Layout       layout.Layout
	Origins      []Origin
	NetworkProxy *NetworkProxy
	Default      bool
	Store        *cache.Store
}

// Proxyable 判断 rel 能否向源站请求：布局可解析的制品、metadata，
// 或二者之一的校验文件。目录列表之类的路径不会进入级联。
func (g *Group) Proxyable(rel string) bool {
	if checksum.IsChecksumFile(rel) {
		rel = strings.TrimSuffix(rel, path.Ext(rel))
	}
	if cache.IsMetadataPath(rel) {
		return true
	}
	return g.Layout != nil && g.Layout.IsValidPath(rel)
}

// Snapshot 是某一时刻全部代理组的不可变视图。
type Snapshot struct {
	groups        map[string]*Group
	ordered       []*Group
	defaultGroup  *Group
	client        *http.Client
	freshness     cache.Freshness
	staleFallback string
	builtAt       time.Time
}

// Group 按仓库 ID 查找代理组。
func (s *Snapshot) Group(id string) (*Group, bool) {
	g, ok := s.groups[id]
	return g, ok
}

// Groups 返回按配置顺序排列的代理组。
func (s *Snapshot) Groups() []*Group {
	return append([]*Group(nil), s.ordered...)
}

// Default 返回默认代理组，仅当只配置了一个仓库时存在。
func (s *Snapshot) Default() *Group {
	return s.defaultGroup
}

// BuiltAt 返回快照构建时间，供诊断接口输出。
func (s *Snapshot) BuiltAt() time.Time {
	return s.builtAt
}

// GroupRegistry 延迟构建代理组，并在配置变化时整体替换快照。
type GroupRegistry struct {
	source ConfigSource
	logger *logrus.Logger

	current atomic.Pointer[Snapshot]

	mu     sync.Mutex
	stores map[string]*cache.Store
}

// NewGroupRegistry 创建注册表；第一次调用 Snapshot 时才会读取配置。
func NewGroupRegistry(source ConfigSource, logger *logrus.Logger) *GroupRegistry {
	return &GroupRegistry{
		source: source,
		logger: logger,
		stores: make(map[string]*cache.Store),
	}
}

// Snapshot 返回当前快照，必要时同步构建。构建失败返回 *ConfigError 且不缓存结果。
func (r *GroupRegistry) Snapshot() (*Snapshot, error) {
	if snap := r.current.Load(); snap != nil {
		return snap, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if snap := r.current.Load(); snap != nil {
		return snap, nil
	}
	snap, err := r.build()
	if err != nil {
		return nil, err
	}
	r.current.Store(snap)
	return snap, nil
}

// Invalidate 丢弃当前快照，下一次访问时重新构建。
func (r *GroupRegistry) Invalidate() {
	r.current.Store(nil)
}

// Rebuild 立即从配置源重新构建；失败时保留旧快照。
func (r *GroupRegistry) Rebuild() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.build()
	if err != nil {
		r.logRebuild(err)
		return err
	}
	r.current.Store(snap)
	r.logRebuild(nil)
	return nil
}

// Update 切换到新的配置并立即重建，供配置热加载使用。
func (r *GroupRegistry) Update(cfg *config.Config) error {
	r.mu.Lock()
	r.source = StaticSource(cfg)
	r.mu.Unlock()
	return r.Rebuild()
}

func (r *GroupRegistry) build() (*Snapshot, error) {
	if r.source == nil {
		return nil, &ConfigError{Err: errors.New("config source is nil")}
	}
	cfg, err := r.source()
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	if cfg == nil {
		return nil, &ConfigError{Err: errors.New("config is nil")}
	}

	networkProxy := buildNetworkProxy(cfg.NetworkProxy)
	var proxyFunc server.ProxyFunc
	if networkProxy != nil {
		proxyFunc = networkProxy.ProxyFunc()
	}

	snap := &Snapshot{
		groups:        make(map[string]*Group, len(cfg.Repositories)),
		client:        server.NewUpstreamClient(cfg.Global.UpstreamTimeout.DurationValue(), proxyFunc),
		freshness:     cache.NewFreshness(cfg.Global.MetadataTTL.DurationValue()),
		staleFallback: cfg.Global.StaleFallback,
		builtAt:       time.Now().UTC(),
	}
	if snap.staleFallback == "" {
		snap.staleFallback = config.StaleFallbackUnreachable
	}

	for _, repo := range cfg.Repositories {
		if _, exists := snap.groups[repo.ID]; exists {
			return nil, &ConfigError{Err: fmt.Errorf("duplicate repository %s", repo.ID)}
		}
		l, ok := layout.Resolve(repo.Layout)
		if !ok {
			return nil, &ConfigError{Err: config.FieldError{
				Field:  fmt.Sprintf("Repository[%s].Layout", repo.ID),
				Reason: fmt.Sprintf("unknown layout %q", repo.Layout),
			}}
		}
		location := cfg.RepositoryLocation(repo)
		store, err := r.storeFor(location)
		if err != nil {
			return nil, &ConfigError{Err: fmt.Errorf("repository %s: %w", repo.ID, err)}
		}

		group := &Group{
			ID:           repo.ID,
			Location:     location,
			Layout:       l,
			NetworkProxy: networkProxy,
			Store:        store,
		}
		for _, p := range cfg.ProxiesFor(repo.ID) {
			origin, err := buildOrigin(cfg, p)
			if err != nil {
				return nil, &ConfigError{Err: err}
			}
			group.Origins = append(group.Origins, origin)
		}

		snap.groups[repo.ID] = group
		snap.ordered = append(snap.ordered, group)
	}

	if len(snap.ordered) == 1 {
		snap.ordered[0].Default = true
		snap.defaultGroup = snap.ordered[0]
	}
	return snap, nil
}

// storeFor 按目录复用 Store，保证重建前后的条目锁仍然有效。调用方持有 r.mu。
func (r *GroupRegistry) storeFor(location string) (*cache.Store, error) {
	if store, ok := r.stores[location]; ok {
		return store, nil
	}
	store, err := cache.NewStore(location)
	if err != nil {
		return nil, err
	}
	r.stores[location] = store
	return store, nil
}

func buildOrigin(cfg *config.Config, p config.ProxiedRepositoryConfig) (Origin, error) {
	base, err := url.Parse(p.URL)
	if err != nil {
		return Origin{}, config.FieldError{
			Field:  fmt.Sprintf("ProxiedRepository[%s].URL", p.ID),
			Reason: err.Error(),
		}
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return Origin{}, config.FieldError{
			Field:  fmt.Sprintf("ProxiedRepository[%s].URL", p.ID),
			Reason: "invalid origin url " + p.URL,
		}
	}
	checksumPolicy := policy.Normalize(cfg.EffectiveChecksumPolicy(p))
	if checksumPolicy == "" {
		checksumPolicy = policy.Fix
	}
	if !policy.Known(checksumPolicy) {
		return Origin{}, config.FieldError{
			Field:  fmt.Sprintf("ProxiedRepository[%s].ChecksumPolicy", p.ID),
			Reason: "unknown checksum policy " + checksumPolicy,
		}
	}
	return Origin{
		ID:             p.ID,
		Repository:     p.Repository,
		BaseURL:        base,
		Username:       p.Username,
		Password:       p.Password,
		ChecksumPolicy: checksumPolicy,
		Whitelist:      append([]string(nil), p.Whitelist...),
		Blacklist:      append([]string(nil), p.Blacklist...),
	}, nil
}

func buildNetworkProxy(n config.NetworkProxyConfig) *NetworkProxy {
	if !n.Enabled() {
		return nil
	}
	protocol := n.Protocol
	if protocol == "" {
		protocol = "http"
	}
	return &NetworkProxy{
		Protocol:      protocol,
		Host:          n.Host,
		Port:          n.Port,
		Username:      n.Username,
		Password:      n.Password,
		NonProxyHosts: n.NonProxyPatterns(),
	}
}

func (r *GroupRegistry) logRebuild(err error) {
	if r.logger == nil {
		return
	}
	fields := logrus.Fields{"action": "proxy_groups_rebuild"}
	if err != nil {
		fields["error"] = err.Error()
		r.logger.WithFields(fields).Error("proxy_groups_rebuild_failed")
		return
	}
	if snap := r.current.Load(); snap != nil {
		ids := make([]string, 0, len(snap.ordered))
		for _, g := range snap.ordered {
			ids = append(ids, g.ID)
		}
		sort.Strings(ids)
		fields["repositories"] = ids
	}
	r.logger.WithFields(fields).Info("proxy_groups_rebuilt")
}
