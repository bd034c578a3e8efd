package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfgPath := testConfigPath(t, "valid.toml")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Global.MetadataTTL.DurationValue() != 10*time.Minute {
		t.Fatalf("MetadataTTL 应按秒解析, got %v", cfg.Global.MetadataTTL.DurationValue())
	}
	if cfg.Global.StaleFallback != StaleFallbackUnreachable {
		t.Fatalf("StaleFallback 应填充默认值, got %s", cfg.Global.StaleFallback)
	}
	if !filepath.IsAbs(cfg.Global.StoragePath) {
		t.Fatalf("StoragePath 应转换为绝对路径")
	}
	if len(cfg.Repositories) != 2 || len(cfg.Proxies) != 3 {
		t.Fatalf("unexpected counts: %d repositories, %d proxies", len(cfg.Repositories), len(cfg.Proxies))
	}

	internal, ok := findRepository(cfg, "internal")
	if !ok {
		t.Fatalf("internal 仓库应存在")
	}
	if internal.Location != filepath.Join(cfg.Global.StoragePath, "internal") {
		t.Fatalf("未配置 Location 时应使用 StoragePath/ID, got %s", internal.Location)
	}
	legacy, _ := findRepository(cfg, "legacy")
	if legacy.Layout != "legacy" || !filepath.IsAbs(legacy.Location) {
		t.Fatalf("legacy 仓库解析错误: %+v", legacy)
	}

	proxies := cfg.ProxiesFor("internal")
	if len(proxies) != 2 || proxies[0].ID != "central" || proxies[1].ID != "mirror" {
		t.Fatalf("源站顺序应与配置一致: %+v", proxies)
	}
	if proxies[0].URL != "https://repo.maven.apache.org/maven2" {
		t.Fatalf("URL 末尾斜杠应被去除: %s", proxies[0].URL)
	}
	if cfg.EffectiveChecksumPolicy(proxies[0]) != "fail" {
		t.Fatalf("未覆盖时应使用全局策略")
	}
	if cfg.EffectiveChecksumPolicy(proxies[1]) != "ignore" {
		t.Fatalf("源站覆盖策略应优先生效")
	}
	if len(proxies[1].Whitelist) != 1 || len(proxies[1].Blacklist) != 1 {
		t.Fatalf("白名单/黑名单解析错误: %+v", proxies[1])
	}
	if !cfg.NetworkProxy.Enabled() || cfg.NetworkProxy.Protocol != "http" {
		t.Fatalf("NetworkProxy 解析错误: %+v", cfg.NetworkProxy)
	}
	if got := cfg.NetworkProxy.NonProxyPatterns(); len(got) != 2 || got[1] != "*.example.com" {
		t.Fatalf("NonProxyHosts 拆分错误: %v", got)
	}
}

func TestValidateRejectsBadRepository(t *testing.T) {
	cfgPath := testConfigPath(t, "missing.toml")

	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("不合法的配置应返回错误")
	}
}

func TestValidateEnforcesListenPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Global.ListenPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ListenPort 超出范围应当报错")
	}
}

func TestRepositoryValidation(t *testing.T) {
	testCases := []struct {
		name      string
		mutate    func(*Config)
		shouldErr bool
	}{
		{"default ok", func(*Config) {}, false},
		{"legacy layout ok", func(c *Config) { c.Repositories[0].Layout = "legacy" }, false},
		{"unknown layout", func(c *Config) { c.Repositories[0].Layout = "p2" }, true},
		{"missing id", func(c *Config) { c.Repositories[0].ID = "" }, true},
		{"reserved id", func(c *Config) { c.Repositories[0].ID = "-" }, true},
		{"slash id", func(c *Config) { c.Repositories[0].ID = "a/b" }, true},
		{"duplicate id", func(c *Config) { c.Repositories = append(c.Repositories, c.Repositories[0]) }, true},
		{"no repositories", func(c *Config) { c.Repositories = nil }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.shouldErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.shouldErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestProxyValidation(t *testing.T) {
	testCases := []struct {
		name      string
		mutate    func(*ProxiedRepositoryConfig)
		shouldErr bool
	}{
		{"ok", func(*ProxiedRepositoryConfig) {}, false},
		{"unknown repository", func(p *ProxiedRepositoryConfig) { p.Repository = "nope" }, true},
		{"bad scheme", func(p *ProxiedRepositoryConfig) { p.URL = "ftp://example.com" }, true},
		{"missing url", func(p *ProxiedRepositoryConfig) { p.URL = "" }, true},
		{"username only", func(p *ProxiedRepositoryConfig) { p.Username = "foo" }, true},
		{"unknown policy", func(p *ProxiedRepositoryConfig) { p.ChecksumPolicy = "strict" }, true},
		{"bad whitelist", func(p *ProxiedRepositoryConfig) { p.Whitelist = []string{"org/[apache"} }, true},
		{"empty blacklist entry", func(p *ProxiedRepositoryConfig) { p.Blacklist = []string{" "} }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg.Proxies[0])
			err := cfg.Validate()
			if tc.shouldErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.shouldErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestGlobalPolicyValidation(t *testing.T) {
	cfg := validConfig()
	cfg.Global.ChecksumPolicy = "strict"
	var fieldErr FieldError
	if err := cfg.Validate(); !errors.As(err, &fieldErr) || fieldErr.Field != "Global.ChecksumPolicy" {
		t.Fatalf("expected ChecksumPolicy field error, got %v", err)
	}

	cfg = validConfig()
	cfg.Global.StaleFallback = "sometimes"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("未知 StaleFallback 应报错")
	}
}

func TestNetworkProxyValidation(t *testing.T) {
	cfg := validConfig()
	cfg.NetworkProxy = NetworkProxyConfig{Host: "proxy.local", Protocol: "socks5", Port: 1080}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("socks5 应被拒绝")
	}

	cfg.NetworkProxy = NetworkProxyConfig{Host: "proxy.local", Protocol: "http"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("缺少端口应报错")
	}

	cfg.NetworkProxy = NetworkProxyConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("未配置代理时不应报错: %v", err)
	}
}

func TestCredentialModes(t *testing.T) {
	modes := CredentialModes([]ProxiedRepositoryConfig{
		{ID: "central"},
		{ID: "private", Username: "u", Password: "p"},
	})
	if len(modes) != 2 || modes[0] != "central:anonymous" || modes[1] != "private:credentialed" {
		t.Fatalf("unexpected modes: %v", modes)
	}
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			ListenPort:      5000,
			StoragePath:     "./data",
			UpstreamTimeout: Duration(time.Second),
			ChecksumPolicy:  "fix",
			MetadataTTL:     Duration(time.Minute),
			StaleFallback:   StaleFallbackUnreachable,
		},
		Repositories: []RepositoryConfig{
			{ID: "internal", Layout: "default"},
		},
		Proxies: []ProxiedRepositoryConfig{
			{
				ID:         "central",
				Repository: "internal",
				URL:        "https://repo.maven.apache.org/maven2",
			},
		},
	}
}
