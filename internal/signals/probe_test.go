package signals

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeProvider(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	p := NewProbeProvider([]ProbeTarget{
		{Name: "supplier", Type: "http", Address: healthy.URL},
		{Name: "payments", Type: "http", Address: broken.URL},
		{Name: "payments-expected-502", Type: "http", Address: broken.URL, ExpectedStatusCodes: []int{502}},
		{Name: "redis", Type: "tcp", Address: ln.Addr().String()},
	})

	snap, err := p.Fetch(context.Background())
	require.NoError(t, err)

	eps := snap.(EndpointSnapshot)
	require.Len(t, eps.Endpoints, 4)
	assert.True(t, eps.Endpoints[0].Up)
	assert.Equal(t, http.StatusOK, eps.Endpoints[0].StatusCode)
	assert.False(t, eps.Endpoints[1].Up)
	assert.Contains(t, eps.Endpoints[1].Message, "502")
	assert.True(t, eps.Endpoints[2].Up)
	assert.True(t, eps.Endpoints[3].Up)

	down := eps.Down()
	require.Len(t, down, 1)
	assert.Equal(t, "payments", down[0].Name)
}

func TestProbeProvider_TCPRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	p := NewProbeProvider([]ProbeTarget{{Name: "gone", Type: "tcp", Address: addr}})
	snap, err := p.Fetch(context.Background())
	require.NoError(t, err)

	eps := snap.(EndpointSnapshot)
	assert.False(t, eps.Endpoints[0].Up)
	assert.Contains(t, eps.Endpoints[0].Message, "TCP connection failed")
}
