package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// StaleFallback 的取值，决定所有源站都失败后是否返回本地旧副本。
const (
	// StaleFallbackUnreachable 仅在没有任何源站给出应答（全部网络错误）时回退。
	StaleFallbackUnreachable = "unreachable"
	// StaleFallbackAlways 只要本地存在副本就回退，包括源站内容被校验策略拒绝的情况。
	StaleFallbackAlways = "always"
	// StaleFallbackNever 从不回退，级联失败即返回未找到。
	StaleFallbackNever = "never"
)

// GlobalConfig 描述全局运行时行为，所有仓库共享同一份参数。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	StoragePath     string   `mapstructure:"StoragePath"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
	ChecksumPolicy  string   `mapstructure:"ChecksumPolicy"`
	MetadataTTL     Duration `mapstructure:"MetadataTTL"`
	StaleFallback   string   `mapstructure:"StaleFallback"`
}

// RepositoryConfig 描述一个受管仓库：本地目录与路径布局。
type RepositoryConfig struct {
	ID       string `mapstructure:"ID"`
	Location string `mapstructure:"Location"`
	Layout   string `mapstructure:"Layout"`
}

// ProxiedRepositoryConfig 描述受管仓库级联中的一个远程源站，按文件中的出现顺序生效。
type ProxiedRepositoryConfig struct {
	ID             string   `mapstructure:"ID"`
	Repository     string   `mapstructure:"Repository"`
	URL            string   `mapstructure:"URL"`
	Username       string   `mapstructure:"Username"`
	Password       string   `mapstructure:"Password"`
	ChecksumPolicy string   `mapstructure:"ChecksumPolicy"`
	Whitelist      []string `mapstructure:"Whitelist"`
	Blacklist      []string `mapstructure:"Blacklist"`
}

// NetworkProxyConfig 是所有源站共享的出站 HTTP 代理，Host 为空表示不使用。
type NetworkProxyConfig struct {
	Protocol      string `mapstructure:"Protocol"`
	Host          string `mapstructure:"Host"`
	Port          int    `mapstructure:"Port"`
	Username      string `mapstructure:"Username"`
	Password      string `mapstructure:"Password"`
	NonProxyHosts string `mapstructure:"NonProxyHosts"`
}

// Enabled 表示是否配置了出站代理。
func (n NetworkProxyConfig) Enabled() bool {
	return strings.TrimSpace(n.Host) != ""
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global       GlobalConfig              `mapstructure:",squash"`
	Repositories []RepositoryConfig        `mapstructure:"Repository"`
	Proxies      []ProxiedRepositoryConfig `mapstructure:"ProxiedRepository"`
	NetworkProxy NetworkProxyConfig        `mapstructure:"NetworkProxy"`
}

// HasCredentials 表示当前源站是否配置了完整的上游凭证。
func (p ProxiedRepositoryConfig) HasCredentials() bool {
	return p.Username != "" && p.Password != ""
}

// AuthMode 输出 `credentialed` 或 `anonymous`，供日志字段使用。
func (p ProxiedRepositoryConfig) AuthMode() string {
	if p.HasCredentials() {
		return "credentialed"
	}
	return "anonymous"
}

// CredentialModes 返回所有源站的鉴权模式摘要，例如 central:anonymous。
func CredentialModes(proxies []ProxiedRepositoryConfig) []string {
	if len(proxies) == 0 {
		return nil
	}
	result := make([]string, len(proxies))
	for i, p := range proxies {
		result[i] = fmt.Sprintf("%s:%s", p.ID, p.AuthMode())
	}
	return result
}

// ProxiesFor 返回绑定到指定仓库的源站，保持配置顺序。
func (c *Config) ProxiesFor(repositoryID string) []ProxiedRepositoryConfig {
	var out []ProxiedRepositoryConfig
	for _, p := range c.Proxies {
		if p.Repository == repositoryID {
			out = append(out, p)
		}
	}
	return out
}

// EffectiveChecksumPolicy 返回源站生效的校验策略，未覆盖时回退至全局值。
func (c *Config) EffectiveChecksumPolicy(p ProxiedRepositoryConfig) string {
	if p.ChecksumPolicy != "" {
		return p.ChecksumPolicy
	}
	return c.Global.ChecksumPolicy
}

// RepositoryLocation 返回仓库目录，未配置 Location 时使用 StoragePath/<ID>。
func (c *Config) RepositoryLocation(r RepositoryConfig) string {
	if r.Location != "" {
		return r.Location
	}
	return filepath.Join(c.Global.StoragePath, r.ID)
}
