package server

import (
	"net"
	"net/http"
	"net/url"
	"time"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// DefaultUpstreamTimeout 在配置缺失时使用。
const DefaultUpstreamTimeout = 30 * time.Second

// ProxyFunc 决定某个请求是否经由出站代理，返回 nil URL 表示直连。
type ProxyFunc func(*http.Request) (*url.URL, error)

// NewUpstreamClient 返回访问源站的 http.Client；proxy 为空时沿用环境变量代理设置。
func NewUpstreamClient(timeout time.Duration, proxy ProxyFunc) *http.Client {
	if timeout <= 0 {
		timeout = DefaultUpstreamTimeout
	}

	transport := defaultTransport.Clone()
	if proxy != nil {
		transport.Proxy = proxy
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
