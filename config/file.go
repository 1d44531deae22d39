package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is a YAML Source. Keys are the environment variable names in lower
// case, for example:
//
//	badger_path: /var/lib/pillpal
//	event_window: 6h
type File struct {
	values map[string]string
}

// LoadFile reads a YAML configuration file
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	f := &File{values: make(map[string]string, len(raw))}
	for key, val := range raw {
		if val == nil {
			continue
		}

		f.values[strings.ToLower(key)] = fmt.Sprint(val)
	}

	return f, nil
}

// Lookup a setting by its environment variable name
func (f *File) Lookup(name string) (string, bool) {
	val, ok := f.values[strings.ToLower(name)]
	return val, ok
}
