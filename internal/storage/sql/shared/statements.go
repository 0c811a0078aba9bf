package shared

import (
	"github.com/mp-manager/mp-manager/internal/abstractions"
)

// SQLStatementsFactory builds the driver specific statements of the store.
// Table and column names must have been checked with ValidateTable first.
type SQLStatementsFactory interface {
	// table lifecycle
	CreateDropTableStatement(table string) string
	CreateCreateTableStatement(spec abstractions.TableSpec) string
	CreateInsertStatement(spec abstractions.TableSpec) string

	// stage hand off
	CreateDistinctStatement(table string, columns []string) string

	// projection
	CreateProjectionViewStatement() string
	CreateSelectProjectionStatement() string
}
