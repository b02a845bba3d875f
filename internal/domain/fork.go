package domain

// ForkSpec describes where a forked node takes its state from.
type ForkSpec struct {
	Ecosystem string `json:"ecosystem"`
	Network   string `json:"network"`

	// UpstreamProvider is an RPC URL or the name of an rpc_endpoints entry.
	UpstreamProvider string  `json:"upstreamProvider,omitempty"`
	BlockNumber      *uint64 `json:"blockNumber,omitempty"`

	// EVMVersion is the hardfork passed to anvil. Detection caches its
	// result here.
	EVMVersion string `json:"evmVersion,omitempty"`
}

// ForkOverride carries per-connection fork settings. Set fields win over
// configured ones.
type ForkOverride struct {
	UpstreamProvider string
	BlockNumber      *uint64
	EVMVersion       string
}

// Merge applies the override on top of the spec.
func (s ForkSpec) Merge(o *ForkOverride) ForkSpec {
	if o == nil {
		return s
	}
	if o.UpstreamProvider != "" {
		s.UpstreamProvider = o.UpstreamProvider
	}
	if o.BlockNumber != nil {
		n := *o.BlockNumber
		s.BlockNumber = &n
	}
	if o.EVMVersion != "" {
		s.EVMVersion = o.EVMVersion
	}
	return s
}

// Hardfork is a named protocol version activated at a block.
type Hardfork struct {
	Block uint64 `yaml:"block" json:"block"`
	Name  string `yaml:"name" json:"name"`
}
