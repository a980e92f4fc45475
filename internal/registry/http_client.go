package registry

import (
	"net"
	"net/http"
	"time"

	"github.com/detcache/detcache/internal/config"
)

// Shared HTTP transport tunings，所有对象存储后端复用长连接。
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

// NewObjectStoreHTTPClient 返回对象存储共享的 http.Client。
// operation_timeout 为 0 时不设置整体超时，与路由层"不限制"的语义一致。
func NewObjectStoreHTTPClient(cfg *config.Config) *http.Client {
	var timeout time.Duration
	if cfg != nil && cfg.Global.OperationTimeout.DurationValue() > 0 {
		timeout = cfg.Global.OperationTimeout.DurationValue()
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: defaultTransport.Clone(),
	}
}
