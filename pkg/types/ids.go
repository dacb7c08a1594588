package types

import (
	"encoding/json"
	"strings"
)

// FrameworkID identifies an ORM framework surface syntax.
type FrameworkID string

const (
	FrameworkUnspecified     FrameworkID = ""
	FrameworkSQLAlchemy      FrameworkID = "sqlalchemy"
	FrameworkDjango          FrameworkID = "django"
	FrameworkEntityFramework FrameworkID = "entity-framework"
	FrameworkTypeORM         FrameworkID = "typeorm"
	FrameworkSequelize       FrameworkID = "sequelize"
	FrameworkPrisma          FrameworkID = "prisma"
	FrameworkHibernate       FrameworkID = "hibernate"
)

// Frameworks lists every built-in framework id in registration order.
func Frameworks() []FrameworkID {
	return []FrameworkID{
		FrameworkSQLAlchemy,
		FrameworkDjango,
		FrameworkEntityFramework,
		FrameworkTypeORM,
		FrameworkSequelize,
		FrameworkPrisma,
		FrameworkHibernate,
	}
}

func (f FrameworkID) String() string {
	return string(f)
}

// ParseFrameworkID resolves a user-supplied framework name, accepting the
// common spelling variants.
func ParseFrameworkID(s string) (FrameworkID, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlalchemy", "sql-alchemy":
		return FrameworkSQLAlchemy, nil
	case "django":
		return FrameworkDjango, nil
	case "entity-framework", "entityframework", "ef", "efcore", "ef-core":
		return FrameworkEntityFramework, nil
	case "typeorm":
		return FrameworkTypeORM, nil
	case "sequelize":
		return FrameworkSequelize, nil
	case "prisma":
		return FrameworkPrisma, nil
	case "hibernate":
		return FrameworkHibernate, nil
	default:
		return FrameworkUnspecified, &UnknownTargetError{Kind: "framework", ID: s}
	}
}

// UnmarshalYAML implements yaml.Unmarshaler for FrameworkID
func (f *FrameworkID) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	id, err := ParseFrameworkID(s)
	if err != nil {
		return err
	}
	*f = id
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for FrameworkID
func (f *FrameworkID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := ParseFrameworkID(s)
	if err != nil {
		return err
	}
	*f = id
	return nil
}

// DialectID identifies a SQL dialect.
type DialectID string

const (
	DialectUnspecified DialectID = ""
	DialectPostgreSQL  DialectID = "postgresql"
	DialectMySQL       DialectID = "mysql"
	DialectSQLite      DialectID = "sqlite"
	DialectSQLServer   DialectID = "sqlserver"
	DialectOracle      DialectID = "oracle"
)

// Dialects lists every supported dialect id.
func Dialects() []DialectID {
	return []DialectID{
		DialectPostgreSQL,
		DialectMySQL,
		DialectSQLite,
		DialectSQLServer,
		DialectOracle,
	}
}

func (d DialectID) String() string {
	return string(d)
}

// ParseDialectID resolves a user-supplied dialect name, accepting the common
// spelling variants.
func ParseDialectID(s string) (DialectID, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgresql", "postgres", "pg":
		return DialectPostgreSQL, nil
	case "mysql", "mariadb":
		return DialectMySQL, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "sqlserver", "sql-server", "mssql":
		return DialectSQLServer, nil
	case "oracle":
		return DialectOracle, nil
	default:
		return DialectUnspecified, &UnknownTargetError{Kind: "dialect", ID: s}
	}
}

// UnmarshalYAML implements yaml.Unmarshaler for DialectID
func (d *DialectID) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	id, err := ParseDialectID(s)
	if err != nil {
		return err
	}
	*d = id
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for DialectID
func (d *DialectID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := ParseDialectID(s)
	if err != nil {
		return err
	}
	*d = id
	return nil
}
