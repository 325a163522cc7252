// Package devseed loads fixture files used to pre-populate in-memory storage
// zones for local development and tests.
package devseed

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry describes a single object to seed. Exactly one of Content or Base64
// should be set; Base64 wins when both are present.
type Entry struct {
	Path        string `yaml:"path" json:"path"`
	Content     string `yaml:"content" json:"content"`
	Base64      string `yaml:"base64" json:"base64"`
	ContentType string `yaml:"content_type" json:"content_type"`
}

// Data returns the decoded payload of the entry.
func (e Entry) Data() ([]byte, error) {
	if e.Base64 != "" {
		data, err := base64.StdEncoding.DecodeString(e.Base64)
		if err != nil {
			return nil, fmt.Errorf("devseed: decode base64 for %q: %w", e.Path, err)
		}
		return data, nil
	}
	return []byte(e.Content), nil
}

// Load reads seed entries from a YAML or JSON file.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("devseed: read %s: %w", path, err)
	}
	entries, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("devseed: parse %s: %w", path, err)
	}
	return entries, nil
}

// Parse decodes seed entries. Documents starting with '[' or '{' are treated
// as JSON, everything else as YAML.
func Parse(data []byte) ([]Entry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var entries []Entry
	switch trimmed[0] {
	case '[', '{':
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, err
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(trimmed))
		dec.KnownFields(true)
		if err := dec.Decode(&entries); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	}

	for i, e := range entries {
		if strings.Trim(e.Path, "/") == "" {
			return nil, fmt.Errorf("entry %d: path is required", i)
		}
	}
	return entries, nil
}
