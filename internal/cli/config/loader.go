package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Merge.
const (
	EnvPortalURL     = "NCASIGN_PORTAL_URL"
	EnvAgentEndpoint = "NCASIGN_AGENT_ENDPOINT"
	EnvOutput        = "NCASIGN_OUTPUT"
	EnvSignTimeout   = "NCASIGN_SIGN_TIMEOUT"
)

// Flag names read by Merge.
const (
	FlagPortal      = "portal"
	FlagAgent       = "agent"
	FlagOutput      = "output"
	FlagSignTimeout = "sign-timeout"
)

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".ncabridge", "cli.yaml")
}

// Load reads the CLI configuration. A missing file yields Default().
// Keys absent from the file keep their default values.
func Load(path string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration with owner-only permissions.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Merge returns a copy of cfg with environment values applied over the
// file and flag values applied over both. Empty values are ignored.
func Merge(cfg *CLIConfig, env map[string]string, flags map[string]string) (*CLIConfig, error) {
	out := *cfg
	out.Agent.CAFiles = append([]string(nil), cfg.Agent.CAFiles...)

	layers := []map[string]string{
		{
			FlagPortal:      env[EnvPortalURL],
			FlagAgent:       env[EnvAgentEndpoint],
			FlagOutput:      env[EnvOutput],
			FlagSignTimeout: env[EnvSignTimeout],
		},
		flags,
	}

	for _, layer := range layers {
		if v := layer[FlagPortal]; v != "" {
			out.PortalURL = v
		}
		if v := layer[FlagAgent]; v != "" {
			out.Agent.Endpoint = v
		}
		if v := layer[FlagOutput]; v != "" {
			out.Output = v
		}
		if v := layer[FlagSignTimeout]; v != "" {
			d, err := parseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", FlagSignTimeout, err)
			}
			out.Agent.SignTimeout = d
		}
	}
	return &out, nil
}

// EnvMap collects the variables Merge understands from the process
// environment.
func EnvMap() map[string]string {
	m := make(map[string]string)
	for _, k := range []string{EnvPortalURL, EnvAgentEndpoint, EnvOutput, EnvSignTimeout} {
		if v, ok := os.LookupEnv(k); ok {
			m[k] = v
		}
	}
	return m
}

// parseDuration accepts Go durations and bare seconds.
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}
