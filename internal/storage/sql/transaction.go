package sql

// The code in this file must be unaware of the database implementation.

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"log/slog"

	"github.com/mp-manager/mp-manager/internal/abstractions"
	"github.com/mp-manager/mp-manager/internal/serviceerrors"
	"github.com/mp-manager/mp-manager/internal/storage/sql/shared"
)

type sqlStageTx struct {
	txn        *sql.Tx
	statements shared.SQLStatementsFactory
	logger     *slog.Logger
	ctx        context.Context
}

func (t *sqlStageTx) ReplaceTable(spec abstractions.TableSpec, rows iter.Seq2[abstractions.Row, error]) (int64, error) {
	if err := shared.ValidateTable(spec); err != nil {
		return 0, serviceerrors.NewStoreError("replace "+spec.Name, err)
	}

	if _, err := t.txn.ExecContext(t.ctx, t.statements.CreateDropTableStatement(spec.Name)); err != nil {
		return 0, serviceerrors.NewStoreError("drop "+spec.Name, err)
	}
	if _, err := t.txn.ExecContext(t.ctx, t.statements.CreateCreateTableStatement(spec)); err != nil {
		return 0, serviceerrors.NewStoreError("create "+spec.Name, err)
	}

	stmt, err := t.txn.PrepareContext(t.ctx, t.statements.CreateInsertStatement(spec))
	if err != nil {
		return 0, serviceerrors.NewStoreError("insert "+spec.Name, err)
	}
	defer stmt.Close()

	var count int64
	for row, err := range rows {
		if err != nil {
			// a failing source is reported as itself
			return count, err
		}
		if len(row) != len(spec.Columns) {
			return count, serviceerrors.NewStoreError("insert "+spec.Name, fmt.Errorf("row has %d values, table has %d columns", len(row), len(spec.Columns)))
		}
		if _, err := stmt.ExecContext(t.ctx, row...); err != nil {
			return count, serviceerrors.NewStoreError("insert "+spec.Name, err)
		}
		count++
	}

	t.logger.Debug("Replaced table", "table", spec.Name, "rows", count)
	return count, nil
}

func (t *sqlStageTx) DistinctValues(table string, columns ...string) iter.Seq2[abstractions.Row, error] {
	return func(yield func(abstractions.Row, error) bool) {
		if err := shared.ValidateIdentifier(table); err != nil {
			yield(nil, serviceerrors.NewStoreError("distinct "+table, err))
			return
		}
		if len(columns) == 0 {
			yield(nil, serviceerrors.NewStoreError("distinct "+table, fmt.Errorf("no columns requested")))
			return
		}
		for _, column := range columns {
			if err := shared.ValidateIdentifier(column); err != nil {
				yield(nil, serviceerrors.NewStoreError("distinct "+table, err))
				return
			}
		}

		rows, err := t.txn.QueryContext(t.ctx, t.statements.CreateDistinctStatement(table, columns))
		if err != nil {
			yield(nil, serviceerrors.NewStoreError("distinct "+table, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			values := make([]any, len(columns))
			targets := make([]any, len(columns))
			for i := range values {
				targets[i] = &values[i]
			}
			if err := rows.Scan(targets...); err != nil {
				yield(nil, serviceerrors.NewStoreError("distinct "+table, err))
				return
			}
			for i, v := range values {
				// drivers may hand back text as bytes
				if b, ok := v.([]byte); ok {
					values[i] = string(b)
				}
			}
			if !yield(abstractions.Row(values), nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, serviceerrors.NewStoreError("distinct "+table, err))
		}
	}
}

func (t *sqlStageTx) Commit() error {
	if err := t.txn.Commit(); err != nil {
		return serviceerrors.NewStoreError("commit", err)
	}
	return nil
}

func (t *sqlStageTx) Rollback() error {
	if err := t.txn.Rollback(); err != nil && err != sql.ErrTxDone {
		return serviceerrors.NewStoreError("rollback", err)
	}
	return nil
}
