package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantURL string
		local   bool
		wantErr bool
	}{
		{name: "bare localhost", raw: "localhost", wantURL: "http://localhost:8545", local: true},
		{name: "loopback with port", raw: "127.0.0.1:9000", wantURL: "http://127.0.0.1:9000", local: true},
		{name: "remote host", raw: "eth.example.com", wantURL: "https://eth.example.com"},
		{name: "full url", raw: "http://10.0.0.2:8545", wantURL: "http://10.0.0.2:8545"},
		{name: "ipv6 loopback", raw: "http://[::1]:8546", wantURL: "http://[::1]:8546", local: true},
		{name: "websocket", raw: "ws://localhost:8545", wantURL: "ws://localhost:8545", local: true},
		{name: "auto", raw: "auto", wantErr: true},
		{name: "empty", raw: "  ", wantErr: true},
		{name: "bad scheme", raw: "ftp://localhost", wantErr: true},
		{name: "bad port", raw: "localhost:99999", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep, err := ParseEndpoint(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, ep.URL())
			assert.Equal(t, tt.local, ep.IsLocal())
		})
	}
}

func TestLocalEndpoint(t *testing.T) {
	ep := LocalEndpoint(50123)
	assert.True(t, ep.IsLocal())
	assert.False(t, ep.IsZero())
	assert.Equal(t, "http://127.0.0.1:50123", ep.String())

	assert.True(t, NodeEndpoint{}.IsZero())
	assert.Equal(t, "", NodeEndpoint{}.URL())
}
