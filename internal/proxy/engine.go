package proxy

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/any-hub/artifact-hub/internal/cache"
	"github.com/any-hub/artifact-hub/internal/checksum"
	"github.com/any-hub/artifact-hub/internal/config"
	"github.com/any-hub/artifact-hub/internal/logging"
	"github.com/any-hub/artifact-hub/internal/policy"
)

// Engine 将请求路径解析到代理组，并按级联顺序从源站获取资源。
// 同一资源的并发请求共享一次级联。
type Engine struct {
	registry *GroupRegistry
	logger   *logrus.Logger
	flight   singleflight.Group
}

// Result 描述一次解析得到的本地文件。Origin 为空表示直接使用了本地副本。
type Result struct {
	RepositoryID string
	Path         string
	Entry        cache.Entry
	Origin       string
	CacheHit     bool
	Stale        bool

	store *cache.Store
}

// Open 打开结果对应的本地文件，调用方负责关闭。
func (r *Result) Open(ctx context.Context) (*cache.ReadResult, error) {
	if r.store == nil {
		return nil, ErrResourceNotFound
	}
	return r.store.Get(ctx, r.Path)
}

// NewEngine 创建解析引擎。
func NewEngine(registry *GroupRegistry, logger *logrus.Logger) *Engine {
	return &Engine{registry: registry, logger: logger}
}

// Registry 返回引擎使用的代理组注册表。
func (e *Engine) Registry() *GroupRegistry {
	return e.registry
}

// Resolve 将请求路径映射为代理组与仓库相对路径：
// 优先匹配最长的 "/<id>/" 前缀，否则落到默认组。
func (e *Engine) Resolve(requestPath string) (*Group, string, error) {
	snap, err := e.registry.Snapshot()
	if err != nil {
		return nil, "", err
	}
	return resolveIn(snap, requestPath)
}

func resolveIn(snap *Snapshot, requestPath string) (*Group, string, error) {
	p := "/" + strings.TrimLeft(strings.ReplaceAll(requestPath, "\\", "/"), "/")

	var matched *Group
	for _, g := range snap.ordered {
		prefix := "/" + g.ID + "/"
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		if matched == nil || len(g.ID) > len(matched.ID) {
			matched = g
		}
	}

	var rel string
	switch {
	case matched != nil:
		rel = strings.TrimPrefix(p, "/"+matched.ID+"/")
	case snap.defaultGroup != nil:
		matched = snap.defaultGroup
		rel = strings.TrimPrefix(p, "/")
	default:
		return nil, "", ErrResourceNotFound
	}

	// 折叠重复斜杠与 ".."，保证同一资源只有一个 singleflight 键。
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	if rel == "" {
		return nil, "", ErrResourceNotFound
	}
	return matched, rel, nil
}

// Get 返回资源；本地副本仍新鲜时不访问源站。
func (e *Engine) Get(ctx context.Context, requestPath string) (*Result, error) {
	return e.get(ctx, requestPath, false)
}

// GetAlways 无论本地是否存在副本都会执行一次级联，用于强制刷新。
func (e *Engine) GetAlways(ctx context.Context, requestPath string) (*Result, error) {
	return e.get(ctx, requestPath, true)
}

func (e *Engine) get(ctx context.Context, requestPath string, always bool) (*Result, error) {
	snap, err := e.registry.Snapshot()
	if err != nil {
		return nil, err
	}
	group, rel, err := resolveIn(snap, requestPath)
	if err != nil {
		return nil, err
	}

	if !always {
		entry, err := group.Store.Stat(ctx, rel)
		switch {
		case err == nil && snap.freshness.IsFresh(*entry):
			return hitResult(group, *entry, false), nil
		case errors.Is(err, cache.ErrInvalidPath):
			return nil, ErrResourceNotFound
		case err != nil && !errors.Is(err, cache.ErrNotFound):
			return nil, err
		}
	}

	key := group.ID + "::" + rel
	ch := e.flight.DoChan(key, func() (any, error) {
		// 共享的级联不随单个调用方取消。
		return e.cascade(context.WithoutCancel(ctx), snap, group, rel)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		result := *res.Val.(*Result)
		return &result, nil
	}
}

func (e *Engine) cascade(ctx context.Context, snap *Snapshot, group *Group, rel string) (*Result, error) {
	local, err := group.Store.Stat(ctx, rel)
	switch {
	case errors.Is(err, cache.ErrInvalidPath):
		return nil, ErrResourceNotFound
	case err != nil && !errors.Is(err, cache.ErrNotFound):
		return nil, err
	}

	proxyable := group.Proxyable(rel)
	if !proxyable {
		e.logOrigin(group, Origin{}, rel).Debug("path_not_proxyable")
	}
	if len(group.Origins) == 0 || !proxyable {
		if local != nil {
			return hitResult(group, *local, false), nil
		}
		return nil, ErrResourceNotFound
	}

	answered := false
	for _, origin := range group.Origins {
		if !origin.Allows(rel) {
			e.logOrigin(group, origin, rel).Debug("origin_skipped")
			continue
		}

		started := time.Now()
		entry, err := e.fetchFromOrigin(ctx, snap, group, origin, rel)
		if err == nil {
			e.logOrigin(group, origin, rel).
				WithField("elapsed_ms", time.Since(started).Milliseconds()).
				WithField("size_bytes", entry.SizeBytes).
				Info("origin_fetch_committed")
			return &Result{
				RepositoryID: group.ID,
				Path:         entry.Path,
				Entry:        *entry,
				Origin:       origin.ID,
				store:        group.Store,
			}, nil
		}

		if !IsUnreachable(err) {
			answered = true
		}
		logger := e.logOrigin(group, origin, rel).WithError(err)
		switch {
		case isRemoteMissing(err):
			logger.Debug("origin_not_found")
		case errors.Is(err, policy.ErrPolicyViolation):
			logger.Warn("origin_policy_rejected")
		default:
			logger.Warn("origin_fetch_failed")
		}
	}

	if local != nil && useStale(snap.staleFallback, answered) {
		e.logOrigin(group, Origin{}, rel).WithField("answered", answered).Warn("serving_stale_copy")
		return hitResult(group, *local, true), nil
	}
	return nil, ErrResourceNotFound
}

// fetchFromOrigin 在暂存目录中下载正文及校验文件，执行校验策略后提交。
func (e *Engine) fetchFromOrigin(ctx context.Context, snap *Snapshot, group *Group, origin Origin, rel string) (*cache.Entry, error) {
	staging, err := group.Store.Stage()
	if err != nil {
		return nil, err
	}
	defer staging.Discard()

	fsys := staging.Filesystem()
	if err := fetch(ctx, snap.client, origin, rel, fsys); err != nil {
		return nil, err
	}

	isChecksum := checksum.IsChecksumFile(rel)
	if !isChecksum && !cache.IsMetadataPath(rel) && origin.ChecksumPolicy != policy.Ignore {
		for _, alg := range checksum.Algorithms() {
			side := checksum.SideFile(rel, alg)
			if err := fetch(ctx, snap.client, origin, side, fsys); err != nil && !isRemoteMissing(err) {
				e.logOrigin(group, origin, side).WithError(err).Debug("checksum_fetch_failed")
			}
		}
	}

	if !isChecksum {
		if err := policy.Apply(origin.ChecksumPolicy, fsys, rel); err != nil {
			return nil, err
		}
	}

	entry, err := staging.Commit(ctx, rel)
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", rel, err)
	}
	return entry, nil
}

func useStale(mode string, answered bool) bool {
	switch mode {
	case config.StaleFallbackAlways:
		return true
	case config.StaleFallbackNever:
		return false
	default:
		return !answered
	}
}

func hitResult(group *Group, entry cache.Entry, stale bool) *Result {
	return &Result{
		RepositoryID: group.ID,
		Path:         entry.Path,
		Entry:        entry,
		CacheHit:     true,
		Stale:        stale,
		store:        group.Store,
	}
}

func (e *Engine) logOrigin(group *Group, origin Origin, rel string) *logrus.Entry {
	logger := e.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	fields := logging.OriginFields(group.ID, origin.ID, origin.ChecksumPolicy, origin.AuthMode())
	fields["path"] = rel
	return logger.WithFields(fields)
}
