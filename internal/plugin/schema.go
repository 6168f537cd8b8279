// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package plugin

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id of the manifest schema. plugin.yaml files reference it
// for editor completion.
const SchemaID = "https://decouple-mfe.dev/schemas/plugin.schema.json"

// compiledSchema compiles the reflected manifest schema once per process.
var compiledSchema = sync.OnceValues(compileSchema)

// SchemaError reports a manifest that does not match the schema.
type SchemaError struct {
	// Locations are the JSON pointers of the failing manifest values, with
	// "/" for the document itself.
	Locations []string
	err       error
}

func (e *SchemaError) Error() string {
	return "schema validation failed: " + e.err.Error()
}

func (e *SchemaError) Unwrap() error {
	return e.err
}

// GenerateSchema reflects the JSON Schema of plugin.yaml from Manifest.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
		FieldNameTag:   "yaml",
	}
	schema := r.Reflect(&Manifest{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "mfeshell Plugin Manifest"
	schema.Description = "Schema for plugin.yaml manifest files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

func compileSchema() (*jschema.Schema, error) {
	raw, err := GenerateSchema()
	if err != nil {
		return nil, err
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema JSON: %w", err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource(SchemaID, doc); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	sch, err := c.Compile(SchemaID)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return sch, nil
}

// ValidateSchema checks plugin.yaml data against the manifest schema.
// A mismatch is returned as a *SchemaError.
func ValidateSchema(data []byte) error {
	if len(data) == 0 {
		return errors.New("manifest data is empty")
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return err
	}

	if err := sch.Validate(toJSONValue(doc)); err != nil {
		var verr *jschema.ValidationError
		if errors.As(err, &verr) {
			return &SchemaError{Locations: failedLocations(verr), err: err}
		}
		return &SchemaError{err: err}
	}
	return nil
}

// failedLocations collects the instance locations of the leaf errors.
func failedLocations(verr *jschema.ValidationError) []string {
	var locs []string
	var walk func(*jschema.ValidationError)
	walk = func(e *jschema.ValidationError) {
		if len(e.Causes) == 0 {
			locs = append(locs, "/"+strings.Join(e.InstanceLocation, "/"))
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(verr)
	slices.Sort(locs)
	return slices.Compact(locs)
}

// toJSONValue converts yaml.v3 output to the value model the validator
// expects: float64 numbers and string-keyed maps.
func toJSONValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = toJSONValue(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = toJSONValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toJSONValue(item)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	default:
		return val
	}
}

// FormatSchemaError renders err for the validate command: the failing
// manifest locations for a *SchemaError, the message otherwise.
func FormatSchemaError(err error) string {
	if err == nil {
		return ""
	}
	var serr *SchemaError
	if errors.As(err, &serr) && len(serr.Locations) > 0 {
		return "invalid value at " + strings.Join(serr.Locations, ", ")
	}
	return strings.TrimPrefix(err.Error(), "schema validation failed: ")
}
