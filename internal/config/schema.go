package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "oss-config.schema.json"

// Schema is the JSON Schema every configuration file must satisfy.
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "totalProcs":       {"type": "integer", "minimum": 0},
    "concurrencyLimit": {"type": "integer", "minimum": 0},
    "childTimeLimit":   {"type": "integer", "minimum": 1},
    "launchIntervalMs": {"type": "integer", "minimum": 0},
    "logFile":          {"type": "string", "minLength": 1},
    "tableCapacity":    {"type": "integer", "minimum": 1},
    "timeLimit":        {"type": "string", "pattern": "^[0-9]"},
    "seed":             {"type": "integer", "minimum": 0},
    "inProcess":        {"type": "boolean"},
    "summaryOut":       {"type": "string"}
  }
}`

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, strings.NewReader(Schema)); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return compiler.Compile(schemaURL)
})

// validateSchema checks a decoded document against Schema and reports every
// violation as a ValidationError.
func validateSchema(raw interface{}) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}

	doc, err := normalize(raw)
	if err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	err = schema.Validate(doc)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	return ValidationErrors(flatten(verr))
}

// flatten collects the leaf causes of a schema validation error.
func flatten(err *jsonschema.ValidationError) []ValidationError {
	if len(err.Causes) == 0 {
		path := strings.TrimPrefix(strings.ReplaceAll(err.InstanceLocation, "/", "."), ".")
		if path == "" {
			path = "(root)"
		}
		return []ValidationError{{Path: path, Message: err.Message}}
	}

	var out []ValidationError
	for _, cause := range err.Causes {
		out = append(out, flatten(cause)...)
	}
	return out
}
