package domain

import (
	"fmt"
	"strings"
)

const (
	// LocalNetwork is the network name of a standalone anvil chain.
	LocalNetwork = "local"

	forkSuffix = "-fork"
)

// NetworkChoice names an ecosystem and network, e.g. ethereum:mainnet-fork.
type NetworkChoice struct {
	Ecosystem string `json:"ecosystem"`
	Network   string `json:"network"`
}

// ParseNetworkChoice parses "ecosystem:network". A bare network defaults to
// the ethereum ecosystem.
func ParseNetworkChoice(s string) (NetworkChoice, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NetworkChoice{Ecosystem: "ethereum", Network: LocalNetwork}, nil
	}
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 1:
		return NetworkChoice{Ecosystem: "ethereum", Network: parts[0]}, nil
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return NetworkChoice{}, fmt.Errorf("invalid network %q", s)
		}
		return NetworkChoice{Ecosystem: parts[0], Network: parts[1]}, nil
	default:
		return NetworkChoice{}, fmt.Errorf("invalid network %q, expected ecosystem:network", s)
	}
}

// IsFork reports whether the network is a fork of an upstream network.
func (n NetworkChoice) IsFork() bool {
	return strings.HasSuffix(n.Network, forkSuffix)
}

// UpstreamNetwork is the forked network's name without the fork suffix.
func (n NetworkChoice) UpstreamNetwork() string {
	return strings.TrimSuffix(n.Network, forkSuffix)
}

func (n NetworkChoice) String() string {
	return n.Ecosystem + ":" + n.Network
}
