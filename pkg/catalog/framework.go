package catalog

import "github.com/nsxbet/querybridge/pkg/types"

// CaseStyle is an identifier casing convention.
type CaseStyle string

const (
	SnakeCase  CaseStyle = "snake_case"
	CamelCase  CaseStyle = "camelCase"
	PascalCase CaseStyle = "PascalCase"
)

// Slot names one query model field a framework emission walks over. The
// emission order per framework need not match declaration order.
type Slot string

const (
	SlotCTE     Slot = "cte"
	SlotSelect  Slot = "select"
	SlotSource  Slot = "source"
	SlotJoin    Slot = "join"
	SlotFilter  Slot = "filter"
	SlotGroupBy Slot = "group_by"
	SlotHaving  Slot = "having"
	SlotWindow  Slot = "window"
	SlotOrderBy Slot = "order_by"
	SlotLimit   Slot = "limit"
	SlotOffset  Slot = "offset"
)

// Framework describes the emission conventions of one ORM framework.
type Framework struct {
	ID types.FrameworkID
	// MethodOrder is the idiomatic emission order of populated slots.
	MethodOrder []Slot
	// Casing is the identifier convention for columns and fields.
	Casing CaseStyle
	// ModelCasing is the convention for model/entity names.
	ModelCasing CaseStyle
	// SingularModels reports whether model names are singular forms of the
	// table name (User for users).
	SingularModels bool
}

var frameworks = map[types.FrameworkID]*Framework{
	types.FrameworkSQLAlchemy: {
		ID:             types.FrameworkSQLAlchemy,
		MethodOrder:    []Slot{SlotSource, SlotSelect, SlotJoin, SlotFilter, SlotGroupBy, SlotHaving, SlotOrderBy, SlotLimit, SlotOffset},
		Casing:         SnakeCase,
		ModelCasing:    PascalCase,
		SingularModels: true,
	},
	types.FrameworkDjango: {
		ID:             types.FrameworkDjango,
		MethodOrder:    []Slot{SlotSource, SlotSelect, SlotGroupBy, SlotJoin, SlotFilter, SlotHaving, SlotOrderBy, SlotLimit, SlotOffset},
		Casing:         SnakeCase,
		ModelCasing:    PascalCase,
		SingularModels: true,
	},
	types.FrameworkEntityFramework: {
		ID:             types.FrameworkEntityFramework,
		MethodOrder:    []Slot{SlotSource, SlotJoin, SlotFilter, SlotGroupBy, SlotHaving, SlotSelect, SlotOrderBy, SlotOffset, SlotLimit},
		Casing:         PascalCase,
		ModelCasing:    PascalCase,
		SingularModels: true,
	},
	types.FrameworkTypeORM: {
		ID:             types.FrameworkTypeORM,
		MethodOrder:    []Slot{SlotSource, SlotSelect, SlotJoin, SlotFilter, SlotGroupBy, SlotHaving, SlotOrderBy, SlotOffset, SlotLimit},
		Casing:         CamelCase,
		ModelCasing:    PascalCase,
		SingularModels: true,
	},
	types.FrameworkSequelize: {
		ID:             types.FrameworkSequelize,
		MethodOrder:    []Slot{SlotSelect, SlotJoin, SlotFilter, SlotGroupBy, SlotHaving, SlotOrderBy, SlotLimit, SlotOffset},
		Casing:         CamelCase,
		ModelCasing:    PascalCase,
		SingularModels: true,
	},
	types.FrameworkPrisma: {
		ID:             types.FrameworkPrisma,
		MethodOrder:    []Slot{SlotSelect, SlotFilter, SlotGroupBy, SlotHaving, SlotOrderBy, SlotOffset, SlotLimit},
		Casing:         CamelCase,
		ModelCasing:    CamelCase,
		SingularModels: true,
	},
	types.FrameworkHibernate: {
		ID:             types.FrameworkHibernate,
		MethodOrder:    []Slot{SlotSelect, SlotSource, SlotJoin, SlotFilter, SlotGroupBy, SlotHaving, SlotOrderBy, SlotOffset, SlotLimit},
		Casing:         CamelCase,
		ModelCasing:    PascalCase,
		SingularModels: true,
	},
}

// ForFramework returns the catalog entry for id.
func ForFramework(id types.FrameworkID) (*Framework, error) {
	f, ok := frameworks[id]
	if !ok {
		return nil, &types.UnknownTargetError{Kind: "framework", ID: string(id)}
	}
	return f, nil
}
