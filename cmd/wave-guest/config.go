package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// LoadConfigInput holds the inputs for LoadConfig.
type LoadConfigInput struct {
	ConfigPath string
	RootFlag   string
	MemLenFlag uint64
	GuestFlag  string
	GuestArgs  []string
}

// Config describes one guest run: the authorized root directory, the guest
// memory size, and which guest program to drive through the wrapper surface.
//
// Both .json and .jsonc files support comments via tailscale/hujson, the
// same loader the teacher uses for its own sandbox descriptor.
type Config struct {
	Root      string   `json:"root"`
	MemLen    uint64   `json:"memlen,omitempty"`
	Guest     string   `json:"guest,omitempty"`
	GuestArgs []string `json:"args,omitempty"`

	// LoadedConfigFile is the path a config file was loaded from, for debug
	// output; empty if no config file was used.
	LoadedConfigFile string `json:"-"`
}

// LoadConfig merges an optional JSONC descriptor with CLI flags. Flags
// always take precedence over the file, mirroring the teacher's
// file-then-CLI-overrides layering in cmd/agent-sandbox/config.go.
func LoadConfig(in LoadConfigInput) (Config, error) {
	var cfg Config

	if in.ConfigPath != "" {
		loaded, err := parseConfigFile(in.ConfigPath)
		if err != nil {
			return Config{}, err
		}

		cfg = loaded
		cfg.LoadedConfigFile = in.ConfigPath
	}

	if in.RootFlag != "" {
		cfg.Root = in.RootFlag
	}

	if in.MemLenFlag != 0 {
		cfg.MemLen = in.MemLenFlag
	}

	if in.GuestFlag != "" {
		cfg.Guest = in.GuestFlag
	}

	if len(in.GuestArgs) > 0 {
		cfg.GuestArgs = in.GuestArgs
	}

	if cfg.Root == "" {
		return Config{}, errors.New("no root directory configured: pass --root or set \"root\" in the config file")
	}

	if cfg.MemLen == 0 {
		cfg.MemLen = defaultMemLen
	}

	return cfg, nil
}

// parseConfigFile loads and parses a JSON/JSONC sandbox descriptor.
// Both .json and .jsonc files support comments via hujson.
func parseConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	var cfg Config

	decoder := json.NewDecoder(bytes.NewReader(standardized))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
