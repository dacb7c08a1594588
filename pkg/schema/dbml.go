package schema

import (
	"github.com/pkg/errors"
	"github.com/zoobzio/dbml"

	"github.com/nsxbet/querybridge/pkg/types"
)

// FromDBML converts a DBML project into a snapshot. Tables and columns carry
// over; index and ref blocks stay behind, so analyzer rules that read index
// metadata see none.
func FromDBML(project *dbml.Project) (*types.SchemaSnapshot, error) {
	if project == nil {
		return nil, errors.New("project cannot be nil")
	}

	snapshot := &types.SchemaSnapshot{Name: project.Name}
	for _, table := range project.Tables {
		t := &types.TableSchema{Name: table.Name}
		for _, col := range table.Columns {
			t.Columns = append(t.Columns, &types.ColumnSchema{
				Name: col.Name,
				Type: col.Type,
			})
		}
		snapshot.Tables = append(snapshot.Tables, t)
	}
	return snapshot, nil
}
