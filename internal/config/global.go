package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/miekg/dns"
)

const (
	// DefaultLANBridge is the bridge the LAN manager creates when
	// global.json does not name one.
	DefaultLANBridge = "wrtd-br0"

	// DefaultScanIntervalSeconds is the interface poll period.
	DefaultScanIntervalSeconds = 10
)

// GlobalConfig is the content of global.json.
type GlobalConfig struct {
	DNSName               string   `hcl:"dns-name"`
	WANConnection         string   `hcl:"wan-connection,optional"`
	LANInterfaces         []string `hcl:"lan-interfaces,optional"`
	LANBridge             string   `hcl:"lan-bridge,optional"`
	InterfaceScanInterval int      `hcl:"interface-scan-interval,optional"`
	Netns                 string   `hcl:"netns,optional"`
	MetricsListen         string   `hcl:"metrics-listen,optional"`

	// Unknown fields are accepted and ignored.
	Remain hcl.Body `hcl:",remain"`
}

// DefaultGlobalConfig returns the settings used when global.json is absent.
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		LANBridge:             DefaultLANBridge,
		InterfaceScanInterval: DefaultScanIntervalSeconds,
	}
}

// LoadGlobal reads and validates global.json at path. A missing or empty file
// yields DefaultGlobalConfig.
func LoadGlobal(path string) (*GlobalConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultGlobalConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read global config: %w", err)
	}
	return ParseGlobal(path, data)
}

// ParseGlobal decodes global config bytes. filename is used in diagnostics
// and must end in .json to select the JSON syntax.
func ParseGlobal(filename string, data []byte) (*GlobalConfig, error) {
	cfg := DefaultGlobalConfig()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	if filepath.Ext(filename) != ".json" {
		filename += ".json"
	}

	if err := hclsimple.Decode(filename, data, nil, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode global config: %w", err)
	}
	cfg.Remain = nil

	if cfg.LANBridge == "" {
		cfg.LANBridge = DefaultLANBridge
	}
	if cfg.InterfaceScanInterval == 0 {
		cfg.InterfaceScanInterval = DefaultScanIntervalSeconds
	}

	if errs := cfg.Validate(); errs.HasErrors() {
		return nil, fmt.Errorf("invalid global config: %w", errs)
	}
	return cfg, nil
}

// Validate checks field values.
func (c *GlobalConfig) Validate() ValidationErrors {
	var errs ValidationErrors

	if c.DNSName != "" {
		if _, ok := dns.IsDomainName(c.DNSName); !ok {
			errs = append(errs, ValidationError{Field: "dns-name", Message: fmt.Sprintf("%q is not a valid domain name", c.DNSName)})
		}
	}
	if c.InterfaceScanInterval < 0 {
		errs = append(errs, ValidationError{Field: "interface-scan-interval", Message: "must not be negative"})
	}
	if len(c.LANBridge) > 15 {
		errs = append(errs, ValidationError{Field: "lan-bridge", Message: "interface names are limited to 15 characters"})
	}

	seen := make(map[string]bool, len(c.LANInterfaces))
	for _, name := range c.LANInterfaces {
		if name == "" {
			errs = append(errs, ValidationError{Field: "lan-interfaces", Message: "empty plugin name"})
			continue
		}
		if seen[name] {
			errs = append(errs, ValidationError{Field: "lan-interfaces", Message: fmt.Sprintf("duplicate plugin %q", name)})
		}
		seen[name] = true
	}

	return errs
}

// ScanInterval returns the interface poll period.
func (c *GlobalConfig) ScanInterval() time.Duration {
	if c.InterfaceScanInterval <= 0 {
		return DefaultScanIntervalSeconds * time.Second
	}
	return time.Duration(c.InterfaceScanInterval) * time.Second
}
