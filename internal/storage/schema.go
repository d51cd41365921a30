package storage

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const stateSchemaURL = "editorsync://schema/state.schema.json"

//go:embed schema/state.schema.json
var stateSchemaJSON []byte

var (
	stateSchemaOnce sync.Once
	stateSchema     *jsonschema.Schema
	stateSchemaErr  error
)

func compiledStateSchema() (*jsonschema.Schema, error) {
	stateSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(stateSchemaURL, bytes.NewReader(stateSchemaJSON)); err != nil {
			stateSchemaErr = fmt.Errorf("add state schema: %w", err)
			return
		}
		stateSchema, stateSchemaErr = compiler.Compile(stateSchemaURL)
	})
	return stateSchema, stateSchemaErr
}

// ValidateState checks a persisted lastState record against the embedded
// schema.
func ValidateState(raw []byte) error {
	schema, err := compiledStateSchema()
	if err != nil {
		return err
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("invalid state: %w", err)
	}
	return nil
}
