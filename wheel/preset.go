/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package wheel

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// presetEntry accepts either `- Alice,A1` or `- {label: Alice, note: A1}`.
type presetEntry struct {
	Label string `yaml:"label"`
	Note  string `yaml:"note"`
}

func (p *presetEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		label, note, _ := strings.Cut(node.Value, ",")
		p.Label = strings.TrimSpace(label)
		p.Note = strings.TrimSpace(note)

		return nil
	}

	type plain presetEntry

	var v plain
	if err := node.Decode(&v); err != nil {
		return err
	}

	p.Label = strings.TrimSpace(v.Label)
	p.Note = strings.TrimSpace(v.Note)

	return nil
}

// ParsePreset decodes a YAML list of starter entries.
func ParsePreset(data []byte) ([]Entry, error) {
	var raw []presetEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(raw))

	for i, r := range raw {
		if r.Label == "" {
			return nil, fmt.Errorf("preset entry %d: %w", i+1, errEmptyLabel)
		}

		entries = append(entries, Entry{Label: r.Label, Note: r.Note})
	}

	return entries, nil
}

var errEmptyLabel = errors.New("missing label")

func LoadPreset(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	entries, err := ParsePreset(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return entries, nil
}
