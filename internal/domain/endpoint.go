package domain

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

const (
	// AutoHost selects a free local port on connect.
	AutoHost = "auto"

	DefaultHost = "127.0.0.1"
	DefaultPort = 8545

	// LocalChainID is anvil's chain ID when it is not forking.
	LocalChainID uint64 = 31337
)

var localHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"0.0.0.0":   true,
	"::1":       true,
}

// NodeEndpoint identifies a JSON-RPC endpoint.
type NodeEndpoint struct {
	Scheme string
	Host   string
	Port   int // zero means the scheme default
}

// LocalEndpoint returns the loopback endpoint for a port.
func LocalEndpoint(port int) NodeEndpoint {
	return NodeEndpoint{Scheme: "http", Host: DefaultHost, Port: port}
}

// ParseEndpoint parses a host, host:port or full URL. Hosts without a scheme
// get http when local and https otherwise; local hosts without a port get 8545.
func ParseEndpoint(raw string) (NodeEndpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NodeEndpoint{}, fmt.Errorf("empty endpoint")
	}
	if raw == AutoHost {
		return NodeEndpoint{}, fmt.Errorf("%q is not a concrete endpoint", AutoHost)
	}

	if !strings.Contains(raw, "://") {
		if isLocalHostPrefix(raw) {
			raw = "http://" + raw
		} else {
			raw = "https://" + raw
		}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return NodeEndpoint{}, fmt.Errorf("invalid endpoint %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return NodeEndpoint{}, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return NodeEndpoint{}, fmt.Errorf("endpoint %q has no host", raw)
	}

	ep := NodeEndpoint{Scheme: u.Scheme, Host: u.Hostname()}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return NodeEndpoint{}, fmt.Errorf("invalid port in endpoint %q", raw)
		}
		ep.Port = port
	} else if ep.IsLocal() {
		ep.Port = DefaultPort
	}
	return ep, nil
}

func isLocalHostPrefix(raw string) bool {
	host := raw
	if h, _, err := net.SplitHostPort(raw); err == nil {
		host = h
	}
	return localHosts[host]
}

// IsLocal reports whether the endpoint points at this machine.
func (e NodeEndpoint) IsLocal() bool {
	return localHosts[e.Host]
}

// IsZero reports whether the endpoint is unresolved.
func (e NodeEndpoint) IsZero() bool {
	return e.Host == ""
}

// URL renders the endpoint as a dialable URL.
func (e NodeEndpoint) URL() string {
	if e.IsZero() {
		return ""
	}
	host := e.Host
	if e.Port != 0 {
		host = net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return e.Scheme + "://" + host
}

func (e NodeEndpoint) String() string {
	return e.URL()
}
