// Package config loads the application configuration from YAML with
// environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/sartorproj/gochangepoint/datasource"
	"github.com/sartorproj/gochangepoint/internal/httpapi"
	"github.com/sartorproj/gochangepoint/internal/logging"
	"github.com/sartorproj/gochangepoint/service"
)

// EventsConfig locates the market events catalog.
type EventsConfig struct {
	// Path of a YAML events file. Empty uses the built-in catalog.
	Path string `yaml:"path"`
}

// Config is the root configuration document.
type Config struct {
	Server   httpapi.Config    `yaml:"server"`
	Source   datasource.Config `yaml:"source"`
	Analysis service.Config    `yaml:"analysis"`
	Events   EventsConfig      `yaml:"events"`
	Log      logging.Config    `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server:   httpapi.DefaultConfig(),
		Source:   datasource.DefaultConfig(),
		Analysis: service.DefaultConfig(),
		Log:      logging.DefaultConfig(),
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := decode(bytes.NewReader(data), &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults and validates it.
// Environment overrides are not applied.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	if err := decode(r, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv applies HTTP_PORT, REDIS_ADDR, PG_DSN and LOG_LEVEL.
// REDIS_ADDR enables the cache; PG_DSN switches the source to Postgres.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("HTTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		c.Source.Cache.Addr = v
		c.Source.Cache.Enabled = true
	}
	if v, ok := lookup("PG_DSN"); ok && v != "" {
		c.Source.Kind = datasource.KindSQL
		c.Source.SQL.Driver = "postgres"
		c.Source.SQL.DSN = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}
