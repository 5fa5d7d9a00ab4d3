package gource

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// aliasFileSchema validates the JSON aliases file shape before any entry
// is trusted: a single "aliases" object mapping raw identities to
// non-empty display identities.
const aliasFileSchema = `{
	"type": "object",
	"properties": {
		"aliases": {
			"type": "object",
			"additionalProperties": {
				"type": "string",
				"minLength": 1
			}
		}
	},
	"required": ["aliases"],
	"additionalProperties": false
}`

// ErrAliasFileInvalid indicates an aliases file that does not match the
// expected schema.
var ErrAliasFileInvalid = errors.New("aliases file failed schema validation")

// aliasFile is the decoded aliases file document.
type aliasFile struct {
	Aliases map[string]string `json:"aliases"`
}

// LoadAliasFile reads a JSON aliases file, validates it against the
// embedded schema and returns the parsed table with raw identities
// escaped the same way as command-line mappings.
func LoadAliasFile(path string) (AliasTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read aliases file: %w", err)
	}

	validateErr := validateAliasDocument(data)
	if validateErr != nil {
		return nil, validateErr
	}

	var doc aliasFile

	unmarshalErr := json.Unmarshal(data, &doc)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("parse aliases file: %w", unmarshalErr)
	}

	table := make(AliasTable, len(doc.Aliases))
	for raw, display := range doc.Aliases {
		table[EscapeIdentity(raw)] = display
	}

	return table, nil
}

func validateAliasDocument(data []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(aliasFileSchema)
	docLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("validate aliases file: %w", err)
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		details = append(details, resultErr.String())
	}

	return fmt.Errorf("%w: %s", ErrAliasFileInvalid, strings.Join(details, "; "))
}
