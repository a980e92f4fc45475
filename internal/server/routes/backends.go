package routes

import (
	"github.com/gofiber/fiber/v3"

	"github.com/detcache/detcache/internal/cache"
)

// RegisterBackendRoutes 暴露 /-/backends 诊断接口，列出当前拓扑与各后端类型。
func RegisterBackendRoutes(app *fiber.App, c cache.Cache) {
	if app == nil || c == nil {
		return
	}

	app.Get("/-/backends", func(ctx fiber.Ctx) error {
		payload := fiber.Map{
			"topology": topologyOf(c),
			"backends": encodeBackends(c.Backends()),
		}
		if tiered, ok := c.(*cache.Tiered); ok {
			payload["primary"] = tiered.Primary().Name
		}
		return ctx.JSON(payload)
	})
}

type backendPayload struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

func encodeBackends(set cache.CacheSet) []backendPayload {
	result := make([]backendPayload, 0, len(set))
	for _, b := range set {
		result = append(result, backendPayload{Name: b.Name, Kind: b.Store.Kind()})
	}
	return result
}

func topologyOf(c cache.Cache) string {
	if _, ok := c.(*cache.Tiered); ok {
		return "tiered"
	}
	return "fan-out"
}
