package mapfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// validate is a singleton validator instance
var validate = validator.New()

// Format is the encoding of a map file.
type Format int

const (
	JSON Format = iota + 1
	YAML
)

func (f Format) String() string {
	switch f {
	case JSON:
		return "json"
	case YAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON, nil
	case ".yaml", ".yml":
		return YAML, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func unmarshal(data []byte, format Format, v any) error {
	switch format {
	case JSON:
		return json.Unmarshal(data, v)
	case YAML:
		return yaml.Unmarshal(data, v)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// layoutProbe tells the two layouts apart by their top-level keys.
type layoutProbe struct {
	ReferencePoints any `json:"reference_points" yaml:"reference_points"`
	Nodes           any `json:"nodes" yaml:"nodes"`
}

// Decode parses a map in either layout. A campus graph comes back as a
// document without fingerprints; merge its radio map with ApplyRadioMap.
func Decode(data []byte, format Format) (*Document, error) {
	var probe layoutProbe
	if err := unmarshal(data, format, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMap, err)
	}

	if probe.ReferencePoints == nil && probe.Nodes != nil {
		var campus CampusMap
		if err := decodeValid(data, format, &campus); err != nil {
			return nil, err
		}
		return campus.Document(), nil
	}

	var doc Document
	if err := decodeValid(data, format, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DecodeRadioMap parses the fingerprint file of the campus layout.
func DecodeRadioMap(data []byte, format Format) (RadioMap, error) {
	var radio RadioMap
	if err := decodeValid(data, format, &radio); err != nil {
		return RadioMap{}, err
	}
	return radio, nil
}

func decodeValid(data []byte, format Format, v any) error {
	if err := unmarshal(data, format, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMap, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMap, formatValidationError(err))
	}
	return nil
}

// Load reads a map file. When radioPath is not empty the radio map found
// there is merged into the result; fingerprints for undeclared waypoints are
// returned as warnings.
func Load(path, radioPath string) (*Document, []Warning, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, nil, err
	}
	if radioPath == "" {
		return doc, nil, nil
	}

	format, err := FormatOf(radioPath)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(radioPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read radio map: %w", err)
	}
	radio, err := DecodeRadioMap(data, format)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", radioPath, err)
	}
	return doc, doc.ApplyRadioMap(radio), nil
}

func readDocument(path string) (*Document, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read map: %w", err)
	}
	doc, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Validate checks the document the same way Load does, so documents built in
// code can be checked before they are saved.
func (d *Document) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMap, formatValidationError(err))
	}
	return nil
}

// formatValidationError reports the first failing field in a readable form.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	for _, e := range validationErrs {
		field := e.Namespace()
		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "gte":
			return fmt.Errorf("%s: must be at least %s", field, e.Param())
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}
	return err
}
