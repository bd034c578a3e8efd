package proxy

import (
	"errors"
	"fmt"
)

// ErrResourceNotFound 表示路径无法解析到任何仓库，或级联结束后仍没有可用副本。
var ErrResourceNotFound = errors.New("resource not found")

// ErrRemoteNotFound 表示源站明确返回 404/410。
var ErrRemoteNotFound = errors.New("remote resource not found")

// ConfigError 表示代理组无法从当前配置构建，请求在配置修复前都会失败。
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("proxy configuration invalid: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// RemoteStatusError 表示源站给出了应答，但状态码不可用。
type RemoteStatusError struct {
	Origin string
	URL    string
	Status int
}

func (e *RemoteStatusError) Error() string {
	return fmt.Sprintf("origin %s returned status %d for %s", e.Origin, e.Status, e.URL)
}

// UnreachableError 表示网络层失败，源站没有给出任何应答。
type UnreachableError struct {
	Origin string
	URL    string
	Err    error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("origin %s unreachable for %s: %v", e.Origin, e.URL, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// IsUnreachable 判断错误是否来自网络层而非源站应答。
func IsUnreachable(err error) bool {
	var target *UnreachableError
	return errors.As(err, &target)
}
