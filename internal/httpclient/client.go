package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"
)

// Shared HTTP client with connection pooling
var (
	sharedClient *http.Client
	clientOnce   sync.Once
)

// Shared returns the process-wide pooled client used by probes and
// notification channels. Callers bound each request with a context.
func Shared() *http.Client {
	clientOnce.Do(func() {
		sharedClient = New(30 * time.Second)
	})
	return sharedClient
}

// New builds a pooled client with the given overall timeout.
func New(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,

		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second, // 连接超时
			KeepAlive: 30 * time.Second,
		}).DialContext,

		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
