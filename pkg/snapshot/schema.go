package snapshot

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed frame.schema.json
var frameSchemaJSON string

const frameSchemaURL = "https://deckreel.dev/schemas/frame.schema.json"

var (
	frameSchemaOnce sync.Once
	frameSchema     *jsonschema.Schema
	frameSchemaErr  error
)

// Schema returns the compiled frame-file schema.
func Schema() (*jsonschema.Schema, error) {
	frameSchemaOnce.Do(func() {
		frameSchema, frameSchemaErr = jsonschema.CompileString(frameSchemaURL, frameSchemaJSON)
	})
	return frameSchema, frameSchemaErr
}

// Validate checks that data is a well-formed frame document.
func Validate(data []byte) error {
	s, err := Schema()
	if err != nil {
		return fmt.Errorf("compile frame schema: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return s.Validate(v)
}
