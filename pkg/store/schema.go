package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func compileSchema(resource string, schema []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	url := resource + ".schema.json"
	if err := compiler.AddResource(url, bytes.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("failed to add schema for %q: %w", resource, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema for %q: %w", resource, err)
	}
	return compiled, nil
}

// validateItem checks item against schema. The item is round-tripped through
// JSON first so Go-typed values validate the same way decoded ones do.
func validateItem(resource string, schema *jsonschema.Schema, item Item) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return &ValidationError{Resource: resource, Message: fmt.Sprintf("item is not JSON encodable: %v", err)}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return &ValidationError{Resource: resource, Message: err.Error()}
	}

	err = schema.Validate(doc)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return &ValidationError{Resource: resource, Message: err.Error()}
	}
	leaf := firstLeaf(verr)
	return &ValidationError{
		Resource: resource,
		Field:    fieldFromPointer(leaf.InstanceLocation),
		Message:  leaf.Message,
	}
}

// firstLeaf walks down the first cause chain to the most specific failure.
func firstLeaf(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(err.Causes) > 0 {
		err = err.Causes[0]
	}
	return err
}

// fieldFromPointer converts a JSON pointer such as "/address/city" into
// dot notation.
func fieldFromPointer(path string) string {
	if path == "" || path == "/" {
		return ""
	}
	return strings.ReplaceAll(strings.TrimPrefix(path, "/"), "/", ".")
}
