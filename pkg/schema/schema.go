// Package schema builds types.SchemaSnapshot values for the translator: from
// snapshot files, from SQLite database files and from DBML projects.
// Acquisition happens before translation; the engine itself never touches IO.
package schema

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nsxbet/querybridge/pkg/types"
)

// LoadFile reads a snapshot document from a YAML or JSON file.
func LoadFile(filename string) (*types.SchemaSnapshot, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read schema file %s", filename)
	}

	var snapshot types.SchemaSnapshot

	// Try YAML first, then JSON
	if yamlErr := yaml.Unmarshal(data, &snapshot); yamlErr != nil {
		if jsonErr := json.Unmarshal(data, &snapshot); jsonErr != nil {
			return nil, errors.Wrapf(yamlErr, "failed to parse schema file %s", filename)
		}
	}

	return &snapshot, nil
}
