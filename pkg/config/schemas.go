package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

var defaultSchemas = NewSchemaRegistry()

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	if err := sr.RegisterSchema("config", builtinConfigSchema); err != nil {
		panic(err)
	}

	return sr
}

// RegisterSchema registers a CUE schema with the given name.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	if def := val.LookupPath(cue.ParsePath("#Root")); def.Exists() {
		val = def
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(_ context.Context, schemaName string, data interface{}) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	// cue.Context is not safe for concurrent use
	sr.mu.Lock()
	defer sr.mu.Unlock()

	// Convert data to CUE value
	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	// Unify with schema (validates)
	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// ListSchemas returns all registered schema names.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Built-in schema definitions

const builtinConfigSchema = `
#Root: #Config

#Config: {
	// Game short name
	game: string & =~"^[a-z0-9]+$"

	// Profile names are used as database keys and in file names
	profile: string & =~"^[A-Za-z0-9][A-Za-z0-9 _.-]*$"

	data_dir?:       string & !=""
	plugins_file?:   string & =~"(?i)\\.txt$"
	local_app_data?: string & !=""

	encoding:       string & !=""
	use_load_order: bool

	store: {
		path: string & !=""
	}

	policy: {
		paths?:    [...string & !=""]
		disabled?: [...string & =~"^[a-z0-9][a-z0-9-]*$"]
	}

	logging: {
		level:   "trace" | "debug" | "info" | "warn" | "error"
		format:  "console" | "json"
		output?: string
	}

	metrics: {
		enabled:         bool
		listen_address?: string & =~"^[^:]*:[0-9]+$"
	}

	tracing: #Tracing
}

#Tracing: {
	enabled:       bool
	exporter:      "none" | "stdout" | "otlp"
	endpoint?:     string & !=""
	sampling_rate: number & >=0 & <=1

	if exporter == "otlp" {
		endpoint: string
	}
}
`
