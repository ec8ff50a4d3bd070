package batch

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// ManifestSchema generates json schema of the manifest file
func ManifestSchema() ([]byte, error) {
	schema := jsonschema.Reflect(&Manifest{})
	schema.Title = "atsdesk Batch Manifest Schema"
	schema.Description = "Schema for atsdesk bulk match manifest file"
	schema.Version = "1.0.0"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}
