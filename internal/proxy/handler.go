package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/artifact-hub/internal/logging"
	"github.com/any-hub/artifact-hub/internal/server"
)

// RefreshHeader 请求头为 true 时跳过新鲜度判断，强制走级联。
const RefreshHeader = "X-Artifact-Hub-Refresh"

// Handler 把 Fiber 请求交给 Engine，并将结果写回客户端。
type Handler struct {
	engine *Engine
	logger *logrus.Logger
}

// NewHandler 构造仓库请求处理器。
func NewHandler(engine *Engine, logger *logrus.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// Handle 处理 GET/HEAD /<repositoryId>/<path>。
func (h *Handler) Handle(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)
	reqPath := requestPath(c)

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		result *Result
		err    error
	)
	if wantsRefresh(c) {
		result, err = h.engine.GetAlways(ctx, reqPath)
	} else {
		result, err = h.engine.Get(ctx, reqPath)
	}
	if err != nil {
		return h.writeFailure(c, reqPath, requestID, started, err)
	}

	read, err := result.Open(ctx)
	if err != nil {
		return h.writeFailure(c, reqPath, requestID, started, err)
	}
	defer read.Reader.Close()

	if contentType := inferContentType(result.Path); contentType != "" {
		c.Set(fiber.HeaderContentType, contentType)
	}
	c.Response().Header.SetContentLength(int(read.Entry.SizeBytes))
	if !read.Entry.ModTime.IsZero() {
		c.Set(fiber.HeaderLastModified, read.Entry.ModTime.UTC().Format(http.TimeFormat))
	}
	c.Set("X-Artifact-Hub-Cache-Hit", strconv.FormatBool(result.CacheHit))
	c.Set("X-Artifact-Hub-Stale", strconv.FormatBool(result.Stale))
	if result.Origin != "" {
		c.Set("X-Artifact-Hub-Origin", result.Origin)
	}
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
	c.Status(fiber.StatusOK)

	if c.Method() == http.MethodHead {
		h.logResult(result, requestID, fiber.StatusOK, started, nil)
		return nil
	}

	_, err = io.Copy(c.Response().BodyWriter(), read.Reader)
	h.logResult(result, requestID, fiber.StatusOK, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("read repository file failed: %v", err))
	}
	return nil
}

func (h *Handler) writeFailure(c fiber.Ctx, reqPath, requestID string, started time.Time, err error) error {
	status, code := classifyError(err)

	fields := logrus.Fields{
		"action":     "proxy",
		"path":       reqPath,
		"status":     status,
		"elapsed_ms": time.Since(started).Milliseconds(),
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	entry := h.logger.WithFields(fields).WithError(err)
	if status == fiber.StatusNotFound {
		entry.Info(code)
	} else {
		entry.Error(code)
	}

	return c.Status(status).JSON(fiber.Map{"error": code})
}

func classifyError(err error) (int, string) {
	var cfgErr *ConfigError
	switch {
	case errors.Is(err, ErrResourceNotFound):
		return fiber.StatusNotFound, "resource_not_found"
	case errors.As(err, &cfgErr):
		return fiber.StatusServiceUnavailable, "configuration_invalid"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, "request_cancelled"
	default:
		return fiber.StatusBadGateway, "proxy_failed"
	}
}

func (h *Handler) logResult(result *Result, requestID string, status int, started time.Time, err error) {
	fields := logging.RequestFields(result.RepositoryID, result.Path, result.Origin, result.CacheHit, result.Stale)
	fields["action"] = "proxy"
	fields["status"] = status
	fields["size_bytes"] = result.Entry.SizeBytes
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("proxy_failed")
		return
	}
	h.logger.WithFields(fields).Info("proxy_complete")
}

func wantsRefresh(c fiber.Ctx) bool {
	if v, err := strconv.ParseBool(c.Query("refresh")); err == nil && v {
		return true
	}
	v, err := strconv.ParseBool(c.Get(RefreshHeader))
	return err == nil && v
}

func requestPath(c fiber.Ctx) string {
	pathVal := string(c.Request().URI().Path())
	if pathVal == "" {
		return "/"
	}
	return pathVal
}

// inferContentType 根据扩展名推断响应类型，校验文件按纯文本返回。
func inferContentType(rel string) string {
	switch {
	case strings.HasSuffix(rel, ".sha1"), strings.HasSuffix(rel, ".md5"):
		return "text/plain"
	case strings.HasSuffix(rel, ".asc"):
		return "application/pgp-signature"
	case strings.HasSuffix(rel, ".pom"), strings.HasSuffix(rel, ".xml"):
		return "application/xml"
	case strings.HasSuffix(rel, ".jar"), strings.HasSuffix(rel, ".war"),
		strings.HasSuffix(rel, ".ear"):
		return "application/java-archive"
	case strings.HasSuffix(rel, ".zip"):
		return "application/zip"
	case strings.HasSuffix(rel, ".tar.gz"), strings.HasSuffix(rel, ".tgz"):
		return "application/gzip"
	case strings.HasSuffix(rel, ".tar.bz2"):
		return "application/x-bzip2"
	case strings.HasSuffix(rel, ".json"):
		return "application/json"
	}
	return "application/octet-stream"
}
