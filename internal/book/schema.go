package book

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jackzampolin/clickread/internal/region"
)

// bookSchema accepts both persisted shapes: a flat array of region records,
// or an object with a pages array whose entries hold regions or elements.
// Field-level legacy variants are resolved later by the record mapper.
//
//go:embed book.schema.json
var bookSchema []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("book.schema.json", bytes.NewReader(bookSchema)); err != nil {
			schemaErr = fmt.Errorf("failed to load book schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("book.schema.json")
		if schemaErr != nil {
			schemaErr = fmt.Errorf("failed to compile book schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// validateShape checks a decoded document against the book schema.
func validateShape(doc any) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", region.ErrFormat, err)
	}
	return nil
}
