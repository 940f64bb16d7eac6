// Package compose inspects docker-compose documents.
package compose

import (
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrNotMapping is returned when the document root is not a YAML mapping.
var ErrNotMapping = errors.New("compose document is not a mapping")

type document struct {
	Services map[string]yaml.Node `yaml:"services"`
}

// Services returns the sorted service names declared in doc. An empty document
// has no services.
func Services(doc string) ([]string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(doc), &root); err != nil {
		return nil, fmt.Errorf("parse compose document: %w", err)
	}
	if len(root.Content) == 0 {
		return []string{}, nil
	}
	if root.Content[0].Kind != yaml.MappingNode {
		return nil, ErrNotMapping
	}
	var parsed document
	if err := root.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode compose document: %w", err)
	}
	names := make([]string, 0, len(parsed.Services))
	for name := range parsed.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
