package proxy

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/util"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/any-hub/artifact-hub/internal/config"
	"github.com/any-hub/artifact-hub/internal/policy"
)

// originStub 模拟远程源站，按路径返回预置内容并记录请求。
type originStub struct {
	server *httptest.Server
	URL    string

	mu       sync.Mutex
	files    map[string][]byte
	requests []recordedRequest
	delay    time.Duration
	status   int
	drop     bool
}

// recordedRequest 捕获源站收到的路径与鉴权头，便于断言。
type recordedRequest struct {
	Path          string
	Authorization string
	UserAgent     string
}

func newOriginStub(t *testing.T) *originStub {
	t.Helper()

	stub := &originStub{files: make(map[string][]byte)}
	stub.server = httptest.NewServer(http.HandlerFunc(stub.serve))
	stub.URL = stub.server.URL + "/maven2"
	t.Cleanup(stub.server.Close)
	return stub
}

// newUnreachableURL 返回一个已关闭监听的地址，请求会直接得到连接错误。
func newUnreachableURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/maven2"
	srv.Close()
	return url
}

func (s *originStub) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, recordedRequest{
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		UserAgent:     r.Header.Get("User-Agent"),
	})
	delay, status, drop := s.delay, s.status, s.drop
	body, ok := s.files[strings.TrimPrefix(r.URL.Path, "/maven2/")]
	s.mu.Unlock()

	if drop {
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				conn.Close()
				return
			}
		}
	}

	if delay > 0 {
		time.Sleep(delay)
	}
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(body)
}

// Put 发布正文，withChecksums 为 true 时同时发布正确的 .sha1/.md5。
func (s *originStub) Put(rel string, body []byte, withChecksums bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[rel] = body
	if withChecksums {
		sha := sha1.Sum(body)
		sum := md5.Sum(body)
		s.files[rel+".sha1"] = []byte(hex.EncodeToString(sha[:]) + "  " + path.Base(rel) + "\n")
		s.files[rel+".md5"] = []byte(hex.EncodeToString(sum[:]) + "\n")
	}
}

// PutRaw 发布任意内容，用于构造错误的校验文件。
func (s *originStub) PutRaw(rel string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[rel] = body
}

func (s *originStub) SetDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

// FailWith 让源站对所有请求返回指定状态码。
func (s *originStub) FailWith(status int) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// DropConnections 让源站接受请求后直接断开连接，模拟网络错误。
func (s *originStub) DropConnections() {
	s.mu.Lock()
	s.drop = true
	s.mu.Unlock()
}

// Hits 返回某个相对路径被请求的次数。
func (s *originStub) Hits(rel string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, req := range s.requests {
		if req.Path == "/maven2/"+rel {
			count++
		}
	}
	return count
}

func (s *originStub) Requests() []recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]recordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

func sha1Hex(body []byte) string {
	sum := sha1.Sum(body)
	return hex.EncodeToString(sum[:])
}

// newTestConfig 构造单仓库 internal 的配置，origins 按顺序挂到该仓库。
func newTestConfig(t *testing.T, origins ...config.ProxiedRepositoryConfig) *config.Config {
	t.Helper()
	for i := range origins {
		if origins[i].Repository == "" {
			origins[i].Repository = "internal"
		}
	}
	return &config.Config{
		Global: config.GlobalConfig{
			StoragePath:     t.TempDir(),
			ChecksumPolicy:  policy.Fix,
			MetadataTTL:     config.Duration(time.Hour),
			StaleFallback:   config.StaleFallbackUnreachable,
			UpstreamTimeout: config.Duration(5 * time.Second),
		},
		Repositories: []config.RepositoryConfig{{ID: "internal", Layout: "default"}},
		Proxies:      origins,
	}
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestEngine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()
	logger := newTestLogger()
	return NewEngine(NewGroupRegistry(StaticSource(cfg), logger), logger)
}

// seedLocal 经暂存目录把 body 提交到 group 的仓库；modTime 非零时回拨修改时间。
func seedLocal(t *testing.T, group *Group, rel string, body []byte, modTime time.Time) {
	t.Helper()
	staging, err := group.Store.Stage()
	require.NoError(t, err)
	defer staging.Discard()

	require.NoError(t, util.WriteFile(staging.Filesystem(), rel, body, 0o644))
	entry, err := staging.Commit(context.Background(), rel)
	require.NoError(t, err)
	if !modTime.IsZero() {
		require.NoError(t, os.Chtimes(entry.FilePath, modTime, modTime))
	}
}
