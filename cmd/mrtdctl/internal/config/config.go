// Package config loads mrtdctl's YAML configuration: which reader to
// use and, optionally, the DBA key material needed to run BAC without
// prompting for it on every invocation.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root of mrtdctl's config file.
type Config struct {
	Reader ReaderConfig `yaml:"reader"`
	DBA    DBAConfig    `yaml:"dba"`
	Output OutputConfig `yaml:"output"`
}

// ReaderConfig selects which PC/SC reader to use.
type ReaderConfig struct {
	Index *int `yaml:"index"`
}

// DBAConfig holds the three fields that seed the BAC key derivation
// (document number, date of birth, date of expiry, each YYMMDD for the
// dates per ICAO 9303 convention). All three are optional: a demo run
// may instead be given them as flags, or skip BAC entirely for an
// EF.CardAccess-only probe.
type DBAConfig struct {
	DocumentNumber string `yaml:"document_number"`
	DateOfBirth    string `yaml:"date_of_birth"`
	DateOfExpiry   string `yaml:"date_of_expiry"`
}

// OutputConfig holds mrtdctl's output settings. Raw is loaded and merged
// with the --raw flag, but no subcommand consults it: read always prints
// the summary table and dump always prints hex (or writes --out).
type OutputConfig struct {
	Raw bool `yaml:"raw"`
}

// Load reads and validates a config file, resolving the reader index
// field against the zero value meaning "auto-detect single reader".
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// HasDBAKeys reports whether all three DBA seed fields were provided.
func (c *Config) HasDBAKeys() bool {
	return strings.TrimSpace(c.DBA.DocumentNumber) != "" &&
		strings.TrimSpace(c.DBA.DateOfBirth) != "" &&
		strings.TrimSpace(c.DBA.DateOfExpiry) != ""
}

// Validate checks the fields that are present for internal consistency;
// it never requires the DBA group, since EF.CardAccess/.CardSecurity
// reads need no BAC session.
func (c *Config) Validate() error {
	if c.Reader.Index != nil && *c.Reader.Index < 0 {
		return fmt.Errorf("config.reader.index must be >= 0")
	}

	provided := 0
	if strings.TrimSpace(c.DBA.DocumentNumber) != "" {
		provided++
	}
	if strings.TrimSpace(c.DBA.DateOfBirth) != "" {
		provided++
	}
	if strings.TrimSpace(c.DBA.DateOfExpiry) != "" {
		provided++
	}
	if provided != 0 && provided != 3 {
		return fmt.Errorf("config.dba: document_number, date_of_birth and date_of_expiry must be given together or not at all")
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"date_of_birth", c.DBA.DateOfBirth},
		{"date_of_expiry", c.DBA.DateOfExpiry},
	} {
		if field.value == "" {
			continue
		}
		if len(field.value) != 6 || strings.Trim(field.value, "0123456789") != "" {
			return fmt.Errorf("config.dba.%s must be 6 digits (YYMMDD), got %q", field.name, field.value)
		}
	}
	return nil
}

// readerIndexOrAuto returns the configured reader index, or -1 to mean
// "pick the only available reader".
func (c *Config) readerIndexOrAuto() int {
	if c.Reader.Index == nil {
		return -1
	}
	return *c.Reader.Index
}

// ReaderIndex is the exported accessor for readerIndexOrAuto.
func (c *Config) ReaderIndex() int { return c.readerIndexOrAuto() }
