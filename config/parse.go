package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/mitchellh/go-homedir"
	"github.com/turbot/edgar-log-pipeline/constants"
	"github.com/turbot/pipe-fittings/error_helpers"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

func ParseConfig[T any](configString []byte, filename string, target *T) error {
	// parse the config
	file, diags := hclsyntax.ParseConfig(configString, filename, hcl.Pos{Line: 1, Column: 1, Byte: 0})
	if diags.HasErrors() {
		return error_helpers.HclDiagsToError("failed to parse config", diags)
	}
	// create empty eval context
	evalCtx := &hcl.EvalContext{
		Variables: make(map[string]cty.Value),
		Functions: make(map[string]function.Function),
	}
	// decode the body into the target struct
	moreDiags := gohcl.DecodeBody(file.Body, evalCtx, target)
	diags = append(diags, moreDiags...)
	if diags.HasErrors() {
		return error_helpers.HclDiagsToError("failed to parse config", diags)
	}
	return nil
}

// Load reads the config file at path (if any), then applies defaults and environment overrides
// and validates the result. With an empty path only the defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, fmt.Errorf("invalid config path %s: %w", path, err)
		}
		data, err := os.ReadFile(expanded)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := ParseConfig(data, expanded, cfg); err != nil {
			return nil, err
		}
		slog.Debug("Loaded config file", "path", expanded)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// DefaultPath returns the path of the config file in dir, or an empty string if there is none
func DefaultPath(dir string) string {
	path := filepath.Join(dir, constants.DefaultConfigFileName)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// applyEnv applies environment overrides; these take precedence over the file
func (c *Config) applyEnv() {
	if key, ok := os.LookupEnv(constants.EnvGeolocationDbApiKey); ok && key != "" {
		c.Geolocation.ApiKey = &key
	}
	if ua, ok := os.LookupEnv(constants.EnvUserAgent); ok && ua != "" {
		c.Source.UserAgent = ua
	}
}

func (c *Config) expandPaths() error {
	var err error
	if c.BaseDir, err = homedir.Expand(c.BaseDir); err != nil {
		return fmt.Errorf("invalid base_dir: %w", err)
	}
	if c.Source.Path, err = homedir.Expand(c.Source.Path); err != nil {
		return fmt.Errorf("invalid source path: %w", err)
	}
	for _, p := range []*string{c.Geolocation.DatabasePath, c.Geolocation.CachePath, c.Enrichment.CountryMappingFile} {
		if p == nil {
			continue
		}
		if *p, err = homedir.Expand(*p); err != nil {
			return fmt.Errorf("invalid path %s: %w", *p, err)
		}
	}
	return nil
}
