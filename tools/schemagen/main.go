// Package main generates JSON schemas for the documents rtalign writes.
package main

import (
	"encoding"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/rtalign/pkg/readuntil"
	"github.com/Sumatoshi-tech/rtalign/pkg/report"
	"github.com/Sumatoshi-tech/rtalign/pkg/seedtracker"
)

const draft07 = "http://json-schema.org/draft-07/schema#"

// Schema is the subset of JSON Schema the generator emits.
type Schema struct {
	Schema      string             `json:"$schema,omitempty"`
	Title       string             `json:"title,omitempty"`
	Description string             `json:"description,omitempty"`
	Type        string             `json:"type,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Ref         string             `json:"$ref,omitempty"`
	Definitions map[string]*Schema `json:"definitions,omitempty"`
}

// documents maps output file names to a sample value of each document.
var documents = map[string]any{
	"result":     readuntil.Result{},
	"alignments": report.Alignments{},
	"signal":     report.Signal{},
	"summary":    report.Summary{},
	"snapshot":   seedtracker.Snapshot{},
}

var (
	textMarshaler = reflect.TypeFor[encoding.TextMarshaler]()
	durationType  = reflect.TypeFor[time.Duration]()
	strandType    = reflect.TypeFor[seedtracker.Strand]()
)

func main() {
	outputDir := flag.String("o", "docs/schemas", "output directory for schemas")
	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	names := make([]string, 0, len(documents))
	for name := range documents {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		if err := writeSchema(*outputDir, name, generateSchema(name, documents[name])); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing schema for %s: %v\n", name, err)
			os.Exit(1)
		}

		fmt.Printf("Generated schema for %s\n", name)
	}
}

func generateSchema(name string, v any) *Schema {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	defs := make(map[string]*Schema)
	props, required := structToProperties(t, defs)

	schema := &Schema{
		Schema:      draft07,
		Title:       "rtalign " + name,
		Description: fmt.Sprintf("JSON document written for %s output", name),
		Type:        "object",
		Properties:  props,
		Required:    required,
	}

	if len(defs) > 0 {
		schema.Definitions = defs
	}

	return schema
}

// structToProperties walks exported fields, honoring json names, "-" and
// omitempty. Embedded structs are flattened the way encoding/json does.
func structToProperties(t reflect.Type, defs map[string]*Schema) (map[string]*Schema, []string) {
	props := make(map[string]*Schema)

	var required []string

	for field := range fields(t) {
		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		jsonName, opts, _ := strings.Cut(jsonTag, ",")
		if jsonName == "" {
			jsonName = field.Name
		}

		props[jsonName] = typeToSchema(field.Type, defs)

		if !strings.Contains(opts, "omitempty") {
			required = append(required, jsonName)
		}
	}

	slices.Sort(required)

	return props, required
}

func fields(t reflect.Type) func(yield func(reflect.StructField) bool) {
	return func(yield func(reflect.StructField) bool) {
		for i := range t.NumField() {
			field := t.Field(i)

			if field.Anonymous && field.Type.Kind() == reflect.Struct && field.Tag.Get("json") == "" {
				for inner := range fields(field.Type) {
					if !yield(inner) {
						return
					}
				}

				continue
			}

			if !field.IsExported() {
				continue
			}

			if !yield(field) {
				return
			}
		}
	}
}

func typeToSchema(t reflect.Type, defs map[string]*Schema) *Schema {
	switch {
	case t == strandType:
		return &Schema{Type: "string", Enum: []string{"+", "-"}}
	case t == durationType:
		return &Schema{Type: "integer", Description: "Duration in nanoseconds"}
	case t.Implements(textMarshaler):
		return &Schema{Type: "string"}
	}

	switch t.Kind() {
	case reflect.String:
		return &Schema{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.Slice:
		// encoding/json writes nil slices as null.
		return &Schema{Items: typeToSchema(t.Elem(), defs)}
	case reflect.Map:
		return &Schema{Type: "object"}
	case reflect.Struct:
		if _, exists := defs[t.Name()]; !exists {
			defs[t.Name()] = &Schema{Type: "object"}
			props, required := structToProperties(t, defs)
			defs[t.Name()] = &Schema{Type: "object", Properties: props, Required: required}
		}

		return &Schema{Ref: "#/definitions/" + t.Name()}
	case reflect.Pointer:
		return typeToSchema(t.Elem(), defs)
	default:
		return &Schema{}
	}
}

func writeSchema(dir, name string, schema *Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	return os.WriteFile(filepath.Join(dir, name+".json"), append(data, '\n'), 0o644)
}
