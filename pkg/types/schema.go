package types

import "strings"

// SchemaSnapshot is a pre-fetched, read-only description of the database
// schema the analyzer consults. It is always passed in by the caller; the
// engine never fetches schema information itself.
type SchemaSnapshot struct {
	Name   string         `json:"name,omitempty" yaml:"name,omitempty"`
	Tables []*TableSchema `json:"tables"         yaml:"tables"`
}

// TableSchema represents one table of a schema snapshot.
type TableSchema struct {
	Name        string              `json:"name"                  yaml:"name"`
	Columns     []*ColumnSchema     `json:"columns,omitempty"     yaml:"columns,omitempty"`
	Indexes     []*IndexSchema      `json:"indexes,omitempty"     yaml:"indexes,omitempty"`
	ForeignKeys []*ForeignKeySchema `json:"foreignKeys,omitempty" yaml:"foreign_keys,omitempty"`
}

// ColumnSchema represents one column of a table.
type ColumnSchema struct {
	Name     string `json:"name"               yaml:"name"`
	Type     string `json:"type,omitempty"     yaml:"type,omitempty"`
	Nullable bool   `json:"nullable,omitempty" yaml:"nullable,omitempty"`
}

// IndexSchema represents one index of a table. Expressions holds the indexed
// columns in key order.
type IndexSchema struct {
	Name        string   `json:"name,omitempty"    yaml:"name,omitempty"`
	Expressions []string `json:"expressions"       yaml:"expressions"`
	Unique      bool     `json:"unique,omitempty"  yaml:"unique,omitempty"`
	Primary     bool     `json:"primary,omitempty" yaml:"primary,omitempty"`
}

// ForeignKeySchema represents one foreign key of a table. Foreign keys double
// as the relation catalog for the N+1 heuristic: the referenced table is the
// to-one side of the relation.
type ForeignKeySchema struct {
	Name              string   `json:"name,omitempty"    yaml:"name,omitempty"`
	Columns           []string `json:"columns"           yaml:"columns"`
	ReferencedTable   string   `json:"referencedTable"   yaml:"referenced_table"`
	ReferencedColumns []string `json:"referencedColumns" yaml:"referenced_columns"`
}

// Table returns the table with the given name, ignoring case, or nil.
func (s *SchemaSnapshot) Table(name string) *TableSchema {
	if s == nil {
		return nil
	}
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) {
			return t
		}
	}
	return nil
}

// Column returns the column with the given name, ignoring case, or nil.
func (t *TableSchema) Column(name string) *ColumnSchema {
	if t == nil {
		return nil
	}
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// HasIndexOn reports whether some index covers the column as its leading key
// part. Non-leading parts do not count: an index on (a, b) does not serve a
// lookup on b alone.
func (t *TableSchema) HasIndexOn(column string) bool {
	if t == nil {
		return false
	}
	for _, idx := range t.Indexes {
		if len(idx.Expressions) > 0 && strings.EqualFold(idx.Expressions[0], column) {
			return true
		}
	}
	return false
}
