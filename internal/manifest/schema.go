package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	invjs "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id of the generated manifest schema.
const SchemaID = "https://gitgrip.dev/schema/gripspace.json"

// Schema returns the JSON Schema describing the manifest, generated from
// the Go types.
func Schema() ([]byte, error) {
	r := &invjs.Reflector{AllowAdditionalProperties: true}
	s := r.Reflect(&Manifest{})
	s.ID = invjs.ID(SchemaID)
	s.Title = "gitgrip manifest"
	s.Description = "Multi-repository workspace description read by gr."
	return json.MarshalIndent(s, "", "  ")
}

// compileSchema compiles the generated schema for validation.
func compileSchema() (*jsonschema.Schema, error) {
	data, err := Schema()
	if err != nil {
		return nil, fmt.Errorf("generate schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(SchemaID, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return compiler.Compile(SchemaID)
}

// ValidateSchema checks a raw manifest document (YAML or JSON) against the
// generated schema. Every violation is returned, prefixed by its
// instance location.
func ValidateSchema(data []byte) error {
	schema, err := compileSchema()
	if err != nil {
		return err
	}

	doc, err := toJSONValue(data)
	if err != nil {
		return &ParseError{Err: err}
	}

	err = schema.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}

	var errs *multierror.Error
	var collect func(*jsonschema.ValidationError)
	collect = func(ve *jsonschema.ValidationError) {
		if len(ve.Causes) == 0 {
			loc := ve.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			errs = multierror.Append(errs, fmt.Errorf("#%s: %s", loc, ve.Message))
		}
		for _, cause := range ve.Causes {
			collect(cause)
		}
	}
	collect(ve)
	return &ValidationError{Err: errs}
}

// toJSONValue decodes YAML or JSON into the generic form the validator
// expects (map[string]any, []any, json.Number, string, bool, nil).
func toJSONValue(data []byte) (any, error) {
	var raw []byte
	if isJSON(data) {
		raw = jsonc.ToJSON(data)
	} else {
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		var err error
		raw, err = json.Marshal(v)
		if err != nil {
			return nil, err
		}
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
