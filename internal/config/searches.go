package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/jobscraper/internal/source"
)

// savedSearchesSchema constrains the saved searches file. Validating before
// unmarshaling gives field-level error messages instead of a bare decode
// failure.
const savedSearchesSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "sites": {
        "type": "array",
        "items": {
          "type": "string",
          "enum": ["linkedin", "indeed", "zip_recruiter", "glassdoor", "google", "bayt"]
        }
      },
      "search_term": {"type": "string"},
      "location": {"type": "string"},
      "distance": {"type": "integer", "minimum": 0},
      "job_type": {
        "type": "string",
        "enum": ["fulltime", "parttime", "internship", "contract"]
      },
      "is_remote": {"type": "boolean"},
      "results_wanted": {"type": "integer", "minimum": 0},
      "offset": {"type": "integer", "minimum": 0},
      "hours_old": {"type": "integer", "minimum": 0}
    },
    "anyOf": [
      {"required": ["search_term"]},
      {"required": ["location"]}
    ],
    "additionalProperties": false
  }
}`

// LoadSavedSearches reads and validates the saved searches file. Returned
// queries feed the background scheduler. An empty path returns an empty
// slice.
func LoadSavedSearches(path string) ([]source.Query, error) {
	if path == "" {
		return nil, nil
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read saved searches file %s: %w", path, err)
	}

	if err := validateSavedSearches(data); err != nil {
		return nil, fmt.Errorf("saved searches file %s: %w", path, err)
	}

	var searches []source.Query
	if err := json.Unmarshal(data, &searches); err != nil {
		return nil, fmt.Errorf("failed to parse saved searches JSON: %w", err)
	}
	return searches, nil
}

// validateSavedSearches checks the raw document against savedSearchesSchema.
func validateSavedSearches(data []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(savedSearchesSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msg := "validation failed:"
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		msg += fmt.Sprintf("\n  %s: %s", field, desc.Description())
	}
	return fmt.Errorf("%s", msg)
}
