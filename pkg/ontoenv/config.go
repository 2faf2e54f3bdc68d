// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package ontoenv

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultIncludes is the glob set used when a config lists none.
var DefaultIncludes = []string{"*.ttl", "*.xml", "*.n3"}

// DefaultRemoteCacheTTLSecs keeps remote ontologies for a day before refetching.
const DefaultRemoteCacheTTLSecs = 86400

// Config is the persisted environment configuration (.ontoenv/config.json).
type Config struct {
	Root      string   `json:"root"`
	Locations []string `json:"locations,omitempty"`
	// Includes and Excludes are gitignore-style globs applied during discovery.
	Includes []string `json:"includes,omitempty"`
	Excludes []string `json:"excludes,omitempty"`
	// IncludeOntologies / ExcludeOntologies are regexes applied to declared
	// ontology IRIs after parsing.
	IncludeOntologies []string `json:"include_ontologies,omitempty"`
	ExcludeOntologies []string `json:"exclude_ontologies,omitempty"`

	RequireOntologyNames bool   `json:"require_ontology_names"`
	Strict               bool   `json:"strict"`
	Offline              bool   `json:"offline"`
	ResolutionPolicy     string `json:"resolution_policy"`
	RemoteCacheTTLSecs   int    `json:"remote_cache_ttl_secs"`
	UseCachedOntologies  bool   `json:"use_cached_ontologies"`
	NoSearch             bool   `json:"no_search"`
	Temporary            bool   `json:"temporary"`

	includeRe []*regexp.Regexp
	excludeRe []*regexp.Regexp
}

// NewConfig returns a config rooted at the given directory with defaults
// filled in.
func NewConfig(root string) *Config {
	cfg := &Config{
		Root:               root,
		Includes:           append([]string(nil), DefaultIncludes...),
		ResolutionPolicy:   "default",
		RemoteCacheTTLSecs: DefaultRemoteCacheTTLSecs,
	}
	if !cfg.NoSearch {
		cfg.Locations = []string{root}
	}
	return cfg
}

func (c *Config) applyDefaults() {
	if len(c.Includes) == 0 {
		c.Includes = append([]string(nil), DefaultIncludes...)
	}
	if c.ResolutionPolicy == "" {
		c.ResolutionPolicy = "default"
	}
	if c.RemoteCacheTTLSecs == 0 {
		c.RemoteCacheTTLSecs = DefaultRemoteCacheTTLSecs
	}
}

// RemoteTTL returns the remote cache TTL as a duration.
func (c *Config) RemoteTTL() time.Duration {
	return time.Duration(c.RemoteCacheTTLSecs) * time.Second
}

// matchPattern applies one glob to a path. Patterns with no separator match
// the base name; bare directory patterns gain a /** suffix.
func matchPattern(pattern, path string) bool {
	path = filepath.ToSlash(path)
	if !strings.ContainsAny(pattern, "/*?[{") {
		// a bare name is treated as a directory pattern
		pattern = pattern + "/**"
	}
	if !strings.Contains(pattern, "/") {
		if ok, err := doublestar.Match(pattern, filepath.Base(path)); err == nil && ok {
			return true
		}
		return false
	}
	ok, err := doublestar.Match(strings.TrimPrefix(pattern, "/"), strings.TrimPrefix(path, "/"))
	if err != nil {
		return false
	}
	if ok {
		return true
	}
	// also try the pattern against every path suffix so relative patterns
	// like "vendored/**" match anywhere under a location
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i := 1; i < len(parts); i++ {
		if ok, err := doublestar.Match(strings.TrimPrefix(pattern, "/"), strings.Join(parts[i:], "/")); err == nil && ok {
			return true
		}
	}
	return false
}

// IsIncluded reports whether a discovered file passes the include/exclude
// globs. Excludes win.
func (c *Config) IsIncluded(path string) bool {
	for _, pattern := range c.Excludes {
		if matchPattern(pattern, path) {
			return false
		}
	}
	if len(c.Includes) == 0 {
		return true
	}
	for _, pattern := range c.Includes {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid ontology pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func (c *Config) compileOntologyFilters() error {
	var err error
	if c.includeRe, err = compileAll(c.IncludeOntologies); err != nil {
		return err
	}
	c.excludeRe, err = compileAll(c.ExcludeOntologies)
	return err
}

// OntologyAllowed applies the IRI regex whitelist/blacklist to a declared
// ontology IRI.
func (c *Config) OntologyAllowed(iri string) bool {
	for _, re := range c.excludeRe {
		if re.MatchString(iri) {
			return false
		}
	}
	if len(c.includeRe) == 0 {
		return true
	}
	for _, re := range c.includeRe {
		if re.MatchString(iri) {
			return true
		}
	}
	return false
}

// Save writes the config as pretty-printed JSON.
func (c *Config) Save(path string) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0644)
}

// LoadConfig reads a config file and fills defaults.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.compileOntologyFilters(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
