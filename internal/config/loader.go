package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/any-hub/artifact-hub/internal/layout"
	"github.com/any-hub/artifact-hub/internal/policy"
)

// DefaultPath 是未指定 --config 且未设置环境变量时读取的文件。
const DefaultPath = "config.toml"

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}
	return decode(v)
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	setDefaults(v)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	if err := rejectRepositoryLevelPorts(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	for i := range cfg.Repositories {
		applyRepositoryDefaults(&cfg.Repositories[i])
	}
	for i := range cfg.Proxies {
		applyProxyDefaults(&cfg.Proxies[i])
	}
	applyNetworkProxyDefaults(&cfg.NetworkProxy)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absStorage, err := filepath.Abs(cfg.Global.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析存储目录: %w", err)
	}
	cfg.Global.StoragePath = absStorage

	for i := range cfg.Repositories {
		location, err := filepath.Abs(cfg.RepositoryLocation(cfg.Repositories[i]))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", repositoryField(cfg.Repositories[i].ID, "Location"), err)
		}
		cfg.Repositories[i].Location = location
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StoragePath", "./storage")
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("ChecksumPolicy", policy.Fix)
	v.SetDefault("MetadataTTL", "30m")
	v.SetDefault("StaleFallback", StaleFallbackUnreachable)
	v.SetDefault("NetworkProxy.Protocol", "http")
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(30 * time.Second)
	}
	if g.MetadataTTL.DurationValue() < 0 {
		g.MetadataTTL = Duration(0)
	}
	g.ChecksumPolicy = policy.Normalize(g.ChecksumPolicy)
	if g.ChecksumPolicy == "" {
		g.ChecksumPolicy = policy.Fix
	}
	g.StaleFallback = strings.ToLower(strings.TrimSpace(g.StaleFallback))
	if g.StaleFallback == "" {
		g.StaleFallback = StaleFallbackUnreachable
	}
}

func applyRepositoryDefaults(r *RepositoryConfig) {
	r.ID = strings.TrimSpace(r.ID)
	if trimmed := strings.TrimSpace(r.Layout); trimmed == "" {
		r.Layout = layout.DefaultKey()
	} else {
		r.Layout = strings.ToLower(trimmed)
	}
}

func applyProxyDefaults(p *ProxiedRepositoryConfig) {
	p.ID = strings.TrimSpace(p.ID)
	p.Repository = strings.TrimSpace(p.Repository)
	p.URL = strings.TrimRight(strings.TrimSpace(p.URL), "/")
	p.ChecksumPolicy = policy.Normalize(p.ChecksumPolicy)
}

func applyNetworkProxyDefaults(n *NetworkProxyConfig) {
	n.Host = strings.TrimSpace(n.Host)
	n.Protocol = strings.ToLower(strings.TrimSpace(n.Protocol))
	if n.Host != "" && n.Protocol == "" {
		n.Protocol = "http"
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

// rejectRepositoryLevelPorts 拒绝在仓库表中配置端口，所有仓库共用全局 ListenPort。
func rejectRepositoryLevelPorts(v *viper.Viper) error {
	raw := v.Get("Repository")
	repos, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	for idx, entry := range repos {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		_, upper := m["Port"]
		_, lower := m["port"]
		if upper || lower {
			id := fmt.Sprintf("#%d", idx)
			for _, key := range []string{"ID", "id"} {
				if rawID, ok := m[key].(string); ok && rawID != "" {
					id = rawID
				}
			}
			return newFieldError(repositoryField(id, "Port"), "不支持仓库级端口，请使用全局 ListenPort")
		}
	}

	return nil
}
