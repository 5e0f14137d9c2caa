package signals

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/amitpo23/medici-web03012026-sub000/internal/httpclient"
)

// ProbeTarget is an upstream dependency checked every cycle.
type ProbeTarget struct {
	Name                string `yaml:"name" json:"name"`
	Type                string `yaml:"type" json:"type"` // http, https, tcp
	Address             string `yaml:"address" json:"address"`
	Method              string `yaml:"method" json:"method,omitempty"`
	ExpectedStatusCodes []int  `yaml:"expected_status_codes" json:"expected_status_codes,omitempty"`
}

// EndpointStatus is the result of probing one target.
type EndpointStatus struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Address    string `json:"address"`
	Up         bool   `json:"up"`
	StatusCode int    `json:"status_code,omitempty"`
	ResponseMs int64  `json:"response_ms"`
	Message    string `json:"message"`
}

// EndpointSnapshot holds the probe results of one cycle.
type EndpointSnapshot struct {
	At        time.Time
	Endpoints []EndpointStatus
}

func (s EndpointSnapshot) Kind() Kind         { return KindEndpoints }
func (s EndpointSnapshot) TakenAt() time.Time { return s.At }

// Down returns the endpoints that failed their probe.
func (s EndpointSnapshot) Down() []EndpointStatus {
	var down []EndpointStatus
	for _, e := range s.Endpoints {
		if !e.Up {
			down = append(down, e)
		}
	}
	return down
}

// ProbeProvider checks upstream HTTP and TCP endpoints concurrently.
type ProbeProvider struct {
	Targets []ProbeTarget
	Client  *http.Client
	Now     func() time.Time
}

func NewProbeProvider(targets []ProbeTarget) *ProbeProvider {
	return &ProbeProvider{Targets: targets, Client: httpclient.Shared()}
}

func (p *ProbeProvider) Name() string { return "endpoint_probe" }

func (p *ProbeProvider) Fetch(ctx context.Context) (Snapshot, error) {
	results := make([]EndpointStatus, len(p.Targets))
	var wg sync.WaitGroup
	for i, target := range p.Targets {
		wg.Add(1)
		go func(i int, target ProbeTarget) {
			defer wg.Done()
			results[i] = p.check(ctx, target)
		}(i, target)
	}
	wg.Wait()

	return EndpointSnapshot{At: clockOrNow(p.Now), Endpoints: results}, nil
}

func (p *ProbeProvider) check(ctx context.Context, target ProbeTarget) EndpointStatus {
	switch target.Type {
	case "tcp":
		return checkTCP(ctx, target)
	default:
		client := p.Client
		if client == nil {
			client = httpclient.Shared()
		}
		return checkHTTP(ctx, client, target)
	}
}

func checkTCP(ctx context.Context, target ProbeTarget) EndpointStatus {
	start := time.Now()
	status := EndpointStatus{Name: target.Name, Type: "tcp", Address: target.Address}

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", target.Address)
	status.ResponseMs = time.Since(start).Milliseconds()
	if err != nil {
		status.Message = fmt.Sprintf("TCP connection failed: %v", err)
		return status
	}
	conn.Close()

	status.Up = true
	status.Message = "TCP connection successful"
	return status
}

func checkHTTP(ctx context.Context, client *http.Client, target ProbeTarget) EndpointStatus {
	start := time.Now()

	// 地址不包含协议前缀时补全
	url := target.Address
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		scheme := "http"
		if target.Type == "https" {
			scheme = "https"
		}
		url = scheme + "://" + url
	}
	status := EndpointStatus{Name: target.Name, Type: target.Type, Address: url}
	if status.Type == "" {
		status.Type = "http"
	}

	method := target.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		status.Message = fmt.Sprintf("Failed to create request: %v", err)
		return status
	}
	req.Header.Set("User-Agent", "alert-monitor-probe/1.0")

	resp, err := client.Do(req)
	status.ResponseMs = time.Since(start).Milliseconds()
	if err != nil {
		status.Message = fmt.Sprintf("Request failed: %v", err)
		return status
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	status.StatusCode = resp.StatusCode
	if !statusExpected(resp.StatusCode, target.ExpectedStatusCodes) {
		status.Message = fmt.Sprintf("Unexpected status code %d", resp.StatusCode)
		return status
	}
	status.Up = true
	status.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
	return status
}

// statusExpected accepts any 2xx/3xx when no explicit list is configured.
func statusExpected(code int, expected []int) bool {
	if len(expected) == 0 {
		return code >= 200 && code < 400
	}
	for _, c := range expected {
		if c == code {
			return true
		}
	}
	return false
}
