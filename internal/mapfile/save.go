package mapfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

func marshal(v any, format Format) ([]byte, error) {
	switch format {
	case JSON:
		return json.MarshalIndent(v, "", "  ")
	case YAML:
		return yaml.Marshal(v)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func writeFile(path string, v any) (int, error) {
	format, err := FormatOf(path)
	if err != nil {
		return 0, err
	}

	data, err := marshal(v, format)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal map: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("failed to write file: %w", err)
	}
	return len(data), nil
}

// Save writes the document to path, as JSON or YAML by extension, and
// returns the number of bytes written. Invalid documents are not written.
func Save(doc *Document, path string) (int, error) {
	if err := doc.Validate(); err != nil {
		return 0, err
	}
	return writeFile(path, doc)
}

// SaveCampus writes the document in the campus layout: the walkable graph to
// mapPath and the fingerprints to radioPath.
func SaveCampus(doc *Document, mapPath, radioPath string) error {
	campus, radio := doc.Campus()
	if _, err := writeFile(mapPath, campus); err != nil {
		return err
	}
	if _, err := writeFile(radioPath, radio); err != nil {
		return err
	}
	return nil
}
