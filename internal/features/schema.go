// Package features aligns extractor output to the ordered feature schema a
// structured model was trained on.
package features

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Schema is the ordered list of feature names a model expects
type Schema struct {
	Version  string   `yaml:"version" json:"version"`
	Features []string `yaml:"features" json:"features"`
}

// Validate rejects empty schemas, blank names and duplicates
func (s Schema) Validate() error {
	if len(s.Features) == 0 {
		return fmt.Errorf("schema %q has no features", s.Version)
	}
	seen := make(map[string]bool, len(s.Features))
	for i, name := range s.Features {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("schema %q: feature %d has an empty name", s.Version, i)
		}
		if seen[name] {
			return fmt.Errorf("schema %q: duplicate feature %q", s.Version, name)
		}
		seen[name] = true
	}
	return nil
}

// Len returns the number of features
func (s Schema) Len() int {
	return len(s.Features)
}

// LoadSchema reads a schema from a YAML or JSON file.
// ${VAR} and ${VAR:-default} references are expanded before parsing.
func LoadSchema(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("read schema: %w", err)
	}
	data = ExpandEnv(data)

	var s Schema
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &s)
	default:
		err = yaml.Unmarshal(data, &s)
	}
	if err != nil {
		return Schema{}, fmt.Errorf("parse schema %s: %w", path, err)
	}

	if err := s.Validate(); err != nil {
		return Schema{}, err
	}
	return s, nil
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} with environment variable values.
func ExpandEnv(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
