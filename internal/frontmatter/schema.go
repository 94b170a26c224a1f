package frontmatter

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const schemaURL = "metadata.schema.json"

//go:embed metadata.schema.json
var metadataSchema []byte

// ErrInvalidBlock means a block is not a YAML mapping matching the metadata schema.
var ErrInvalidBlock = errors.New("frontmatter: invalid metadata block")

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(metadataSchema)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Validate checks a delimited block: it must parse as a YAML mapping,
// title and description must be strings, keywords at most five strings and
// faqs a list of question/answer pairs. Other fields are not checked.
func Validate(block string) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("failed to compile metadata schema: %w", err)
	}

	inner := normalizeNewlines(block)
	inner = strings.TrimPrefix(inner, Delimiter+"\n")
	inner = strings.TrimSuffix(inner, "\n"+Delimiter)

	var doc any
	if err := yaml.Unmarshal([]byte(inner), &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}
	return nil
}
