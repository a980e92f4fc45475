package server

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/detcache/detcache/internal/cache"
)

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger     *logrus.Logger
	Cache      cache.Cache
	ListenPort int
	// BodyLimit caps PUT bodies; values are buffered in memory before fan-out.
	BodyLimit int
	// Metrics is optional; a private registry is created when nil.
	Metrics *Metrics
}

const (
	contextKeyRequestID = "_detcache_request_id"

	defaultBodyLimit = 64 * 1024 * 1024
)

// NewApp builds a Fiber application exposing the key/value endpoints with
// request IDs and structured error handling.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("cache is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}
	bodyLimit := opts.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = defaultBodyLimit
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		BodyLimit:     bodyLimit,
	})

	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	app.Get("/-/metrics", metrics.handler())

	h := &kvHandler{cache: opts.Cache, logger: opts.Logger, metrics: metrics}
	app.Get("/kv/:hash", h.get)
	app.Put("/kv/:hash", h.put)

	return app, nil
}

// requestIDMiddleware 为每个请求生成 ID，并写入响应头 X-Request-ID。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
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
