package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/any-hub/artifact-hub/internal/layout"
	"github.com/any-hub/artifact-hub/internal/policy"
)

// ReservedPrefix 是诊断接口使用的路径前缀，仓库 ID 不得与之冲突。
const ReservedPrefix = "-"

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}
	if g.MetadataTTL.DurationValue() < 0 {
		return newFieldError("Global.MetadataTTL", "不能为负数")
	}
	if !policy.Known(g.ChecksumPolicy) {
		return newFieldError("Global.ChecksumPolicy", "仅支持 "+strings.Join(policy.Names(), "|"))
	}
	switch g.StaleFallback {
	case StaleFallbackUnreachable, StaleFallbackAlways, StaleFallbackNever:
	default:
		return newFieldError("Global.StaleFallback", "仅支持 unreachable|always|never")
	}

	if len(c.Repositories) == 0 {
		return errors.New("至少需要配置一个 Repository")
	}

	seenRepos := map[string]struct{}{}
	for i := range c.Repositories {
		repo := &c.Repositories[i]
		if err := validateRepositoryID(repo.ID); err != nil {
			return fmt.Errorf("%s: %w", repositoryField(repo.ID, "ID"), err)
		}
		if _, exists := seenRepos[repo.ID]; exists {
			return newFieldError(repositoryField(repo.ID, "ID"), "重复")
		}
		seenRepos[repo.ID] = struct{}{}

		if _, ok := layout.Resolve(repo.Layout); !ok {
			return newFieldError(repositoryField(repo.ID, "Layout"),
				fmt.Sprintf("未注册布局: %s，仅支持 %s", repo.Layout, strings.Join(layout.Keys(), "|")))
		}
	}

	seenProxies := map[string]struct{}{}
	for i := range c.Proxies {
		p := &c.Proxies[i]
		if p.ID == "" {
			return newFieldError("ProxiedRepository[].ID", "不能为空")
		}
		if _, exists := seenProxies[p.ID]; exists {
			return newFieldError(proxyField(p.ID, "ID"), "重复")
		}
		seenProxies[p.ID] = struct{}{}

		if _, ok := seenRepos[p.Repository]; !ok {
			return newFieldError(proxyField(p.ID, "Repository"), fmt.Sprintf("引用了不存在的仓库: %q", p.Repository))
		}
		if err := validateUpstream(p.URL); err != nil {
			return fmt.Errorf("%s: %w", proxyField(p.ID, "URL"), err)
		}
		if (p.Username == "") != (p.Password == "") {
			return newFieldError(proxyField(p.ID, "Username/Password"), "必须同时提供或同时留空")
		}
		if p.ChecksumPolicy != "" && !policy.Known(p.ChecksumPolicy) {
			return newFieldError(proxyField(p.ID, "ChecksumPolicy"), "仅支持 "+strings.Join(policy.Names(), "|"))
		}
		if err := validatePatterns(p.Whitelist); err != nil {
			return fmt.Errorf("%s: %w", proxyField(p.ID, "Whitelist"), err)
		}
		if err := validatePatterns(p.Blacklist); err != nil {
			return fmt.Errorf("%s: %w", proxyField(p.ID, "Blacklist"), err)
		}
	}

	return c.NetworkProxy.validate()
}

func (n NetworkProxyConfig) validate() error {
	if !n.Enabled() {
		return nil
	}
	if n.Protocol != "http" && n.Protocol != "https" {
		return newFieldError("NetworkProxy.Protocol", "仅支持 http/https")
	}
	if n.Port <= 0 || n.Port > 65535 {
		return newFieldError("NetworkProxy.Port", "必须在 1-65535")
	}
	if strings.ContainsAny(n.Host, "/ ") {
		return newFieldError("NetworkProxy.Host", "不允许包含路径或空格")
	}
	if (n.Username == "") != (n.Password == "") {
		return newFieldError("NetworkProxy.Username/Password", "必须同时提供或同时留空")
	}
	for _, pattern := range n.NonProxyPatterns() {
		if !doublestar.ValidatePattern(pattern) {
			return newFieldError("NetworkProxy.NonProxyHosts", fmt.Sprintf("非法匹配模式: %s", pattern))
		}
	}
	return nil
}

// NonProxyPatterns 将 NonProxyHosts 按 '|' 或 ',' 拆分为主机匹配模式。
func (n NetworkProxyConfig) NonProxyPatterns() []string {
	fields := strings.FieldsFunc(n.NonProxyHosts, func(r rune) bool {
		return r == '|' || r == ','
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if trimmed := strings.ToLower(strings.TrimSpace(f)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func validateRepositoryID(id string) error {
	if id == "" {
		return errors.New("ID 不能为空")
	}
	if strings.ContainsAny(id, "/\\ ") {
		return errors.New("ID 不允许包含路径分隔符或空格")
	}
	if id == ReservedPrefix || strings.HasPrefix(id, ".") {
		return fmt.Errorf("ID %q 为保留值", id)
	}
	return nil
}

func validatePatterns(patterns []string) error {
	for _, pattern := range patterns {
		if strings.TrimSpace(pattern) == "" {
			return errors.New("匹配模式不能为空")
		}
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("非法匹配模式: %s", pattern)
		}
	}
	return nil
}

func validateUpstream(raw string) error {
	if raw == "" {
		return errors.New("缺少上游地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}
