package server

import (
	"bytes"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

func TestRouterForwardsRepositoryRequests(t *testing.T) {
	app := newTestApp(t, 5000)

	req := httptest.NewRequest("GET", "http://artifacts.local/internal/org/foo/1.0/foo-1.0.jar", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 204 status, got %d (body=%s)", resp.StatusCode, string(body))
	}
	if app.recorder.lastPath != "/internal/org/foo/1.0/foo-1.0.jar" {
		t.Fatalf("unexpected forwarded path %s", app.recorder.lastPath)
	}
	if reqID := resp.Header.Get("X-Request-ID"); reqID == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if app.recorder.requestID != resp.Header.Get("X-Request-ID") {
		t.Fatalf("handler should see the same request id")
	}
}

func TestRouterRejectsWrites(t *testing.T) {
	app := newTestApp(t, 5000)

	req := httptest.NewRequest("PUT", "http://artifacts.local/internal/org/foo/1.0/foo-1.0.jar", bytes.NewReader([]byte("x")))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusMethodNotAllowed {
		t.Fatalf("expected 405 status, got %d", resp.StatusCode)
	}
	if app.recorder.calls != 0 {
		t.Fatalf("proxy handler should not be invoked for PUT")
	}
}

func TestRouterReturns404ForRoot(t *testing.T) {
	app := newTestApp(t, 5000)

	resp, err := app.Test(httptest.NewRequest("GET", "http://artifacts.local/", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 status, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte(`"resource_not_found"`)) {
		t.Fatalf("expected resource_not_found error, got %s", string(body))
	}
}

func TestRouterLeavesDiagnosticsToLaterRoutes(t *testing.T) {
	app := newTestApp(t, 5000)
	app.Get("/-/ping", func(c fiber.Ctx) error {
		return c.SendString("pong")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "http://artifacts.local/-/ping", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || string(body) != "pong" {
		t.Fatalf("unexpected diagnostics response %d %s", resp.StatusCode, string(body))
	}
	if app.recorder.calls != 0 {
		t.Fatalf("diagnostics must bypass the proxy handler")
	}
}

func TestNewAppValidatesOptions(t *testing.T) {
	logger := logrus.New()
	if _, err := NewApp(AppOptions{Proxy: &proxyRecorder{}, ListenPort: 1}); err == nil {
		t.Fatalf("missing logger should fail")
	}
	if _, err := NewApp(AppOptions{Logger: logger, ListenPort: 1}); err == nil {
		t.Fatalf("missing proxy should fail")
	}
	if _, err := NewApp(AppOptions{Logger: logger, Proxy: &proxyRecorder{}}); err == nil {
		t.Fatalf("missing port should fail")
	}
}

type testApp struct {
	*fiber.App
	recorder *proxyRecorder
}

func newTestApp(t *testing.T, port int) *testApp {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	recorder := &proxyRecorder{}
	app, err := NewApp(AppOptions{
		Logger:     logger,
		Proxy:      recorder,
		ListenPort: port,
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}

	return &testApp{App: app, recorder: recorder}
}

type proxyRecorder struct {
	calls     int
	lastPath  string
	requestID string
}

func (p *proxyRecorder) Handle(c fiber.Ctx) error {
	p.calls++
	p.lastPath = string(c.Request().URI().Path())
	p.requestID = RequestID(c)
	return c.SendStatus(fiber.StatusNoContent)
}
