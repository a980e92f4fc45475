// Package server hosts the optional Fiber HTTP surface over the cache router.
// It exposes GET/PUT /kv/:hash backed by a cache.Cache, attaches request ID
// and panic recovery middleware, and leaves diagnostics endpoints to the
// routes subpackage. Keep exports narrow and accept explicit dependencies.
package server
