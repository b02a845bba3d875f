package config

// FoundryConfig holds the parts of foundry.toml used to resolve upstream networks
type FoundryConfig struct {
	RpcEndpoints map[string]string `toml:"rpc_endpoints"`

	// Unresolved lists endpoints whose ${VAR} references were not set.
	Unresolved []string `toml:"-"`
}

// Endpoint returns the rpc_endpoints entry for a name.
func (f *FoundryConfig) Endpoint(name string) (string, bool) {
	if f == nil {
		return "", false
	}
	url, ok := f.RpcEndpoints[name]
	return url, ok
}
