package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed providers.yaml
var defaultCatalog []byte

// Provider is the per-vendor override block.
type Provider struct {
	BaseURL  string   `yaml:"base_url"`
	Models   []string `yaml:"models"`
	Disabled bool     `yaml:"disabled"`
}

type Catalog struct {
	Version   int                 `yaml:"version"`
	Providers map[string]Provider `yaml:"providers"`
}

// Load reads the catalog at path. An empty path returns the embedded default.
func Load(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Parse(defaultCatalog)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read provider catalog %s: %w", path, err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse provider catalog: %w", err)
	}
	norm := make(map[string]Provider, len(c.Providers))
	for name, p := range c.Providers {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		p.BaseURL = strings.TrimSpace(p.BaseURL)
		norm[key] = p
	}
	c.Providers = norm
	return &c, nil
}

// Provider returns the override block for name, zero when absent. Safe on a nil catalog.
func (c *Catalog) Provider(name string) Provider {
	if c == nil {
		return Provider{}
	}
	return c.Providers[strings.ToLower(strings.TrimSpace(name))]
}

// BaseURL returns fallback unless the catalog sets an override.
func (c *Catalog) BaseURL(name, fallback string) string {
	if u := c.Provider(name).BaseURL; u != "" {
		return u
	}
	return fallback
}

func (c *Catalog) Models(name string) []string {
	return c.Provider(name).Models
}

func (c *Catalog) Disabled(name string) bool {
	return c.Provider(name).Disabled
}
