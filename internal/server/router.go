package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ProxyHandler serves repository requests. It allows injecting fake handlers
// during tests.
type ProxyHandler interface {
	Handle(fiber.Ctx) error
}

// ProxyHandlerFunc adapts a function to the ProxyHandler interface.
type ProxyHandlerFunc func(fiber.Ctx) error

// Handle makes ProxyHandlerFunc satisfy ProxyHandler.
func (f ProxyHandlerFunc) Handle(c fiber.Ctx) error {
	return f(c)
}

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger     *logrus.Logger
	Proxy      ProxyHandler
	ListenPort int
}

const contextKeyRequestID = "_artifacthub_request_id"

// DiagnosticsPrefix 保留给诊断接口，仓库 ID 不能与之冲突。
const DiagnosticsPrefix = "/-/"

// NewApp builds a Fiber application with request-id middleware and a
// catch-all repository route; only GET and HEAD reach the proxy handler.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Proxy == nil {
		return nil, errors.New("proxy handler is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())

	app.All("/*", func(c fiber.Ctx) error {
		path := string(c.Request().URI().Path())
		if isDiagnosticsPath(path) {
			return c.Next()
		}
		if strings.Trim(path, "/") == "" {
			return renderError(c, opts.Logger, fiber.StatusNotFound, "resource_not_found", path)
		}
		switch c.Method() {
		case http.MethodGet, http.MethodHead:
			return opts.Proxy.Handle(c)
		default:
			c.Set(fiber.HeaderAllow, "GET, HEAD")
			return renderError(c, opts.Logger, fiber.StatusMethodNotAllowed, "method_not_allowed", path)
		}
	})

	return app, nil
}

// requestContextMiddleware 为每个请求生成请求 ID，并写入响应头。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

func renderError(c fiber.Ctx, logger *logrus.Logger, status int, code, path string) error {
	logger.WithFields(logrus.Fields{
		"action":     "route",
		"path":       path,
		"method":     c.Method(),
		"status":     status,
		"request_id": RequestID(c),
	}).Warn(code)

	return c.Status(status).JSON(fiber.Map{
		"error": code,
	})
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, DiagnosticsPrefix)
}
