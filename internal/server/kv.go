package server

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/detcache/detcache/internal/cache"
)

const (
	headerBackend = "X-Detcache-Backend"
	headerWarning = "X-Detcache-Warning"
)

type kvHandler struct {
	cache   cache.Cache
	logger  *logrus.Logger
	metrics *Metrics
}

func (h *kvHandler) get(c fiber.Ctx) error {
	// Params 指向 fasthttp 复用的缓冲区，落后的后端在 handler 返回后仍会读取 hash。
	hash := strings.Clone(c.Params("hash"))
	fields := h.fields(c, "http_get", hash)

	res, err := h.cache.Get(requestContext(c), hash)
	if res != nil {
		h.metrics.observeOutcomes(res.Outcomes)
	}
	switch {
	case errors.Is(err, cache.ErrInvalidHash):
		h.metrics.observeRequest("get", "invalid")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_hash"})
	case err != nil:
		h.metrics.observeRequest("get", "error")
		h.logger.WithFields(fields).WithError(err).Error("cache_get_failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cache_error"})
	case !res.Found:
		h.metrics.observeRequest("get", "miss")
		fields["cache_hit"] = false
		h.logger.WithFields(fields).Info("cache_lookup")
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	}

	h.metrics.observeRequest("get", "hit")
	fields["cache_hit"] = true
	fields["backend"] = res.Backend
	fields["promoted"] = res.Promoted
	h.logger.WithFields(fields).Info("cache_lookup")

	c.Set(headerBackend, res.Backend)
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	return c.Status(fiber.StatusOK).Send(res.Value)
}

func (h *kvHandler) put(c fiber.Ctx) error {
	hash := strings.Clone(c.Params("hash"))
	fields := h.fields(c, "http_put", hash)
	// Fiber 会复用请求缓冲区，扇出前先复制一份。
	value := bytes.Clone(c.Body())
	if value == nil {
		value = []byte{}
	}
	fields["value_length"] = len(value)

	res, err := h.cache.Put(requestContext(c), hash, value)
	if res != nil {
		h.metrics.observeOutcomes(res.Outcomes)
	}
	if err != nil {
		if errors.Is(err, cache.ErrInvalidHash) {
			h.metrics.observeRequest("put", "invalid")
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_hash"})
		}
		h.metrics.observeRequest("put", "error")
		h.logger.WithFields(fields).WithError(err).Error("cache_put_failed")
		var agg *cache.AggregateError
		if errors.As(err, &agg) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error":  "put_failed",
				"detail": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cache_error"})
	}

	if res.Warning != nil {
		h.metrics.observeRequest("put", "partial")
		c.Set(headerWarning, res.Warning.Error())
		h.logger.WithFields(fields).WithError(res.Warning).Warn("cache_put_partial")
	} else {
		h.metrics.observeRequest("put", "stored")
		h.logger.WithFields(fields).Info("cache_stored")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *kvHandler) fields(c fiber.Ctx, action, hash string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"hash":       hash,
		"request_id": RequestID(c),
	}
}

func requestContext(c fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}
