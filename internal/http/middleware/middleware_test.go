package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casedocs/internal/auth"
	"casedocs/internal/config"
	"casedocs/internal/logging"
	"casedocs/internal/ratelimit"
)

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())

	app.Get("/test", func(c *fiber.Ctx) error {
		rid := c.Locals(RequestIDLocalKey)
		return c.SendString(rid.(string))
	})

	t.Run("should generate new request id if not present", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		ridHeader := resp.Header.Get(RequestIDHeader)
		assert.NotEmpty(t, ridHeader)

		// Check if it's readable in handler (from response body)
		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Equal(t, ridHeader, buf.String())
	})

	t.Run("should preserve existing request id", func(t *testing.T) {
		existingID := "test-id-123"
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, existingID)

		resp, _ := app.Test(req)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, existingID, resp.Header.Get(RequestIDHeader))

		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Equal(t, existingID, buf.String())
	})

	t.Run("should replace malformed request id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("a", 200))

		resp, _ := app.Test(req)

		rid := resp.Header.Get(RequestIDHeader)
		assert.NotEmpty(t, rid)
		assert.Len(t, rid, 36)
	})

	t.Run("should expose request id on the user context", func(t *testing.T) {
		app := fiber.New()
		app.Use(RequestID())
		app.Get("/ctx", func(c *fiber.Ctx) error {
			return c.SendString(RequestIDFromContext(c.UserContext()))
		})

		req := httptest.NewRequest("GET", "/ctx", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		resp, _ := app.Test(req)

		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Equal(t, "abc-123", buf.String())
	})
}

func TestNoop(t *testing.T) {
	app := fiber.New()
	app.Use(Noop())

	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	assert.Equal(t, "ok", buf.String())
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	loc := time.UTC

	// Logger usually depends on RequestID for request_id field
	app.Use(RequestID())
	app.Use(LoggerWithWriter(&buf, loc))

	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	// Verify log output
	var logData map[string]any
	err := json.Unmarshal(buf.Bytes(), &logData)
	assert.NoError(t, err)

	assert.NotEmpty(t, logData["request_id"])
	assert.Equal(t, "GET", logData["method"])
	assert.Equal(t, "/test", logData["path"])
	assert.Equal(t, float64(fiber.StatusAccepted), logData["status"])
	assert.NotNil(t, logData["latency"])
	assert.NotEmpty(t, logData["ts"])
}

func TestLogger_ErrorStatus(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(LoggerWithWriter(&buf, time.UTC))
	app.Get("/boom", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusConflict, "conflict")
	})

	resp, _ := app.Test(httptest.NewRequest("GET", "/boom", nil))
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var logData map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logData))
	assert.Equal(t, float64(fiber.StatusConflict), logData["status"])
	assert.Equal(t, "WARN", logData["level"])
}

type stubVerifier struct {
	claims *auth.Claims
	err    error
}

func (s stubVerifier) Verify(string) (*auth.Claims, error) {
	return s.claims, s.err
}

func TestAuthenticate(t *testing.T) {
	claims := &auth.Claims{Roles: []string{"admin"}}
	claims.Subject = "user-1"

	newApp := func(v TokenVerifier, roles ...string) *fiber.App {
		app := fiber.New()
		app.Use(Authenticate(v))
		app.Get("/open", func(c *fiber.Ctx) error {
			cl, _ := ClaimsFrom(c)
			return c.SendString(cl.Subject)
		})
		app.Get("/approve", RequireRole(roles...), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusOK)
		})
		return app
	}

	t.Run("missing header", func(t *testing.T) {
		resp, _ := newApp(stubVerifier{claims: claims}).Test(httptest.NewRequest("GET", "/open", nil))
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/open", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		resp, _ := newApp(stubVerifier{claims: claims}).Test(req)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/open", nil)
		req.Header.Set("Authorization", "Bearer nope")
		resp, _ := newApp(stubVerifier{err: auth.ErrInvalidToken}).Test(req)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/open", nil)
		req.Header.Set("Authorization", "Bearer good")
		resp, _ := newApp(stubVerifier{claims: claims}).Test(req)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Equal(t, "user-1", buf.String())
	})

	t.Run("role granted", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/approve", nil)
		req.Header.Set("Authorization", "Bearer good")
		resp, _ := newApp(stubVerifier{claims: claims}, "admin", "supervisor").Test(req)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("role missing", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/approve", nil)
		req.Header.Set("Authorization", "Bearer good")
		resp, _ := newApp(stubVerifier{claims: claims}, "supervisor").Test(req)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})
}

type stubLimiter struct {
	d   ratelimit.Decision
	err error
}

func (s stubLimiter) Allow(context.Context, string) (ratelimit.Decision, error) {
	return s.d, s.err
}

func TestRateLimit(t *testing.T) {
	newApp := func(l Limiter) *fiber.App {
		app := fiber.New()
		app.Use(RateLimit(l, logging.Discard()))
		app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
		return app
	}

	t.Run("allowed", func(t *testing.T) {
		resp, _ := newApp(stubLimiter{d: ratelimit.Decision{Allowed: true, Limit: 10, Remaining: 9}}).
			Test(httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "10", resp.Header.Get("X-RateLimit-Limit"))
		assert.Equal(t, "9", resp.Header.Get("X-RateLimit-Remaining"))
	})

	t.Run("blocked", func(t *testing.T) {
		resp, _ := newApp(stubLimiter{d: ratelimit.Decision{Limit: 10, ResetAt: time.Now().Add(30 * time.Second)}}).
			Test(httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	})

	t.Run("limiter error fails closed", func(t *testing.T) {
		resp, _ := newApp(stubLimiter{err: errors.New("redis down")}).
			Test(httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	})

	t.Run("redis backed", func(t *testing.T) {
		mr := miniredis.RunT(t)
		l, err := ratelimit.New(config.RateLimitConfig{RedisAddr: mr.Addr(), Limit: 1, Window: time.Minute})
		require.NoError(t, err)
		defer l.Close()
		app := newApp(l)

		resp, _ := app.Test(httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		resp, _ = app.Test(httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	})
}
