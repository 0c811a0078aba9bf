package abstractions

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/mp-manager/mp-manager/pkg/api"
)

type ColumnType string

const (
	ColumnText    ColumnType = "TEXT"
	ColumnInteger ColumnType = "INTEGER"
	ColumnReal    ColumnType = "REAL"
)

type Column struct {
	Name string
	Type ColumnType
}

// TableSpec is the ordered, typed column list of a table that is rebuilt by
// every update.
type TableSpec struct {
	Name    string
	Columns []Column
}

func (t TableSpec) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return names
}

// Row holds one value per column, nil for NULL.
type Row []any

// Nullable turns an optional value into a row value.
func Nullable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}

type Storage interface {
	WithLogger(logger *slog.Logger) Storage
	WithContext(ctx context.Context) Storage

	Ping(timeout time.Duration) error

	// Begin opens the transaction of one pipeline stage.
	Begin() (StageTx, error)

	// Projection streams the rows of the joined protein view.
	Projection() iter.Seq2[api.ProjectionRow, error]

	// Close the storage connection
	Close() error
}

// StageTx is the store handle of a single stage. Nothing is visible to other
// handles before Commit.
type StageTx interface {
	// ReplaceTable drops the table, creates it from spec and inserts rows. An
	// error yielded by rows is returned unchanged, store failures are
	// StoreErrors.
	ReplaceTable(spec TableSpec, rows iter.Seq2[Row, error]) (int64, error)

	// DistinctValues lazily reads the distinct combinations of columns.
	DistinctValues(table string, columns ...string) iter.Seq2[Row, error]

	Commit() error
	Rollback() error
}

// This interface must be decoupled from the command line layer.
// Do not pass ExecutionContext here either.
