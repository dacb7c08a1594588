package schema

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/nsxbet/querybridge/pkg/types"
)

// IntrospectSQLite opens a SQLite database file and reads its structure into
// a snapshot: tables, columns, indexes and foreign keys. The connection is
// closed before returning; translation itself never opens one.
func IntrospectSQLite(path string) (*types.SchemaSnapshot, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", path)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return nil, errors.Wrapf(err, "failed to connect to database %s", path)
	}

	names, err := tableNames(db)
	if err != nil {
		return nil, err
	}

	snapshot := &types.SchemaSnapshot{Name: path}
	for _, name := range names {
		table, err := introspectTable(db, name)
		if err != nil {
			return nil, err
		}
		snapshot.Tables = append(snapshot.Tables, table)
	}
	return snapshot, nil
}

func tableNames(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tables")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "failed to scan table name")
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to list tables")
	}
	return names, nil
}

func introspectTable(db *sql.DB, name string) (*types.TableSchema, error) {
	table := &types.TableSchema{Name: name}

	columns, pk, err := tableColumns(db, name)
	if err != nil {
		return nil, err
	}
	table.Columns = columns

	indexes, hasPK, err := tableIndexes(db, name)
	if err != nil {
		return nil, err
	}
	// An INTEGER PRIMARY KEY is the rowid and gets no index_list entry;
	// synthesize one so leading-column lookups still see it.
	if !hasPK && len(pk) > 0 {
		indexes = append(indexes, &types.IndexSchema{
			Expressions: pk,
			Unique:      true,
			Primary:     true,
		})
	}
	table.Indexes = indexes

	fks, err := tableForeignKeys(db, name)
	if err != nil {
		return nil, err
	}
	table.ForeignKeys = fks

	return table, nil
}

func tableColumns(db *sql.DB, table string) ([]*types.ColumnSchema, []string, error) {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%q)`, table))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read columns of %s", table)
	}
	defer rows.Close()

	var columns []*types.ColumnSchema
	pkByPos := make(map[int]string)
	for rows.Next() {
		var (
			cid     int
			name    string
			colType sql.NullString
			notNull int
			dflt    any
			pkPos   int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pkPos); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to scan column of %s", table)
		}
		columns = append(columns, &types.ColumnSchema{
			Name:     name,
			Type:     colType.String,
			Nullable: notNull == 0,
		})
		if pkPos > 0 {
			pkByPos[pkPos] = name
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read columns of %s", table)
	}

	pk := make([]string, 0, len(pkByPos))
	for i := 1; i <= len(pkByPos); i++ {
		if name, ok := pkByPos[i]; ok {
			pk = append(pk, name)
		}
	}
	return columns, pk, nil
}

func tableIndexes(db *sql.DB, table string) ([]*types.IndexSchema, bool, error) {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA index_list(%q)`, table))
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to read indexes of %s", table)
	}

	type indexEntry struct {
		name    string
		unique  bool
		primary bool
	}
	var entries []indexEntry
	for rows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			rows.Close()
			return nil, false, errors.Wrapf(err, "failed to scan index of %s", table)
		}
		entries = append(entries, indexEntry{name: name, unique: unique == 1, primary: origin == "pk"})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, false, errors.Wrapf(err, "failed to read indexes of %s", table)
	}
	rows.Close()

	var indexes []*types.IndexSchema
	hasPK := false
	for _, e := range entries {
		cols, err := indexColumns(db, e.name)
		if err != nil {
			return nil, false, err
		}
		if e.primary {
			hasPK = true
		}
		indexes = append(indexes, &types.IndexSchema{
			Name:        e.name,
			Expressions: cols,
			Unique:      e.unique,
			Primary:     e.primary,
		})
	}
	return indexes, hasPK, nil
}

func indexColumns(db *sql.DB, index string) ([]string, error) {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA index_info(%q)`, index))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read index %s", index)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			seqno int
			cid   int
			name  sql.NullString
		)
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, errors.Wrapf(err, "failed to scan index %s", index)
		}
		// Expression index parts come back NULL; keep the slot so key order
		// holds.
		cols = append(cols, name.String)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read index %s", index)
	}
	return cols, nil
}

func tableForeignKeys(db *sql.DB, table string) ([]*types.ForeignKeySchema, error) {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA foreign_key_list(%q)`, table))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read foreign keys of %s", table)
	}
	defer rows.Close()

	byID := make(map[int]*types.ForeignKeySchema)
	var order []int
	for rows.Next() {
		var (
			id       int
			seq      int
			refTable string
			from     string
			to       sql.NullString
			onUpdate string
			onDelete string
			match    string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, errors.Wrapf(err, "failed to scan foreign key of %s", table)
		}
		fk, ok := byID[id]
		if !ok {
			// SQLite does not expose constraint names through the pragma.
			fk = &types.ForeignKeySchema{
				Name:            fmt.Sprintf("fk_%s_%d", table, id),
				ReferencedTable: refTable,
			}
			byID[id] = fk
			order = append(order, id)
		}
		fk.Columns = append(fk.Columns, from)
		if to.Valid {
			fk.ReferencedColumns = append(fk.ReferencedColumns, to.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read foreign keys of %s", table)
	}

	fks := make([]*types.ForeignKeySchema, 0, len(order))
	for _, id := range order {
		fks = append(fks, byID[id])
	}
	return fks, nil
}
