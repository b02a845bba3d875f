package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/trebuchet-org/treb-anvil/internal/domain/config"
)

// foundryTOML is the part of foundry.toml we read
type foundryTOML struct {
	RpcEndpoints map[string]string `toml:"rpc_endpoints"`
}

// LoadFoundryConfig loads the project's .env files and the rpc_endpoints
// of foundry.toml. It returns nil when the project has no foundry.toml.
// Endpoints referencing unset variables are left out and listed in
// Unresolved.
func LoadFoundryConfig(projectRoot string) (*config.FoundryConfig, error) {
	// Load .env files first for variable expansion
	envFiles := []string{
		filepath.Join(projectRoot, ".env"),
		filepath.Join(projectRoot, ".env.local"),
	}

	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				slog.Warn("failed to load env file", "file", envFile, "error", err)
			}
		}
	}

	foundryPath := filepath.Join(projectRoot, "foundry.toml")
	if _, err := os.Stat(foundryPath); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	var raw foundryTOML
	if _, err := toml.DecodeFile(foundryPath, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse foundry.toml: %w", err)
	}

	cfg := &config.FoundryConfig{RpcEndpoints: make(map[string]string, len(raw.RpcEndpoints))}
	for name, url := range raw.RpcEndpoints {
		if missing := MissingEnvVars(url); len(missing) > 0 {
			hint := GenerateEnvVarName(name)
			if v, ok := DetectEnvVar(url); ok {
				hint = v
			}
			slog.Debug("skipping rpc endpoint with unset variables", "network", name, "missing", missing, "hint", hint)
			cfg.Unresolved = append(cfg.Unresolved, name)
			continue
		}
		cfg.RpcEndpoints[name] = os.ExpandEnv(url)
	}
	slices.Sort(cfg.Unresolved)

	return cfg, nil
}
