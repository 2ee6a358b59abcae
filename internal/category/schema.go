package category

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// DocumentTypeKey is the reply key carrying the category name.
const DocumentTypeKey = "documentType"

// JSONSchema describes a normalized result for this category: the
// document type plus every field, each present as a string or null.
func (d Definition) JSONSchema() map[string]any {
	props := map[string]any{
		DocumentTypeKey: map[string]any{
			"type": "string",
			"enum": []string{string(d.Category)},
		},
	}
	required := []string{DocumentTypeKey}
	for _, f := range d.fields {
		props[f] = map[string]any{"type": []string{"string", "null"}}
		required = append(required, f)
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

// Validate checks a JSON document against the category schema.
func (d Definition) Validate(doc []byte) error {
	schemaJSON, err := json.Marshal(d.JSONSchema())
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	url := string(d.Category) + ".schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return fmt.Errorf("unmarshal document: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("document does not match %s schema: %w", d.Category, err)
	}
	return nil
}
