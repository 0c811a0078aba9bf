package storage

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/mp-manager/mp-manager/internal/abstractions"
	"github.com/mp-manager/mp-manager/internal/config"
	"github.com/mp-manager/mp-manager/internal/storage/sql"
)

// NewStorage creates a new storage instance based on the configuration.
// It currently uses the SQL storage implementation.
func NewStorage(config *config.Config, logger *slog.Logger) (abstractions.Storage, error) {
	if config.Database == nil {
		return nil, fmt.Errorf("missing database configuration")
	}
	store, err := sql.NewStorage(*config.Database, config.IsOTELEnabled(), logger)
	if err != nil {
		return nil, err
	}
	return store, nil
}

type TransactionFunction func(abstractions.StageTx) error

// WithTransaction runs fn in a stage transaction. The transaction is committed
// when fn succeeds and rolled back otherwise, fn's error is returned as is.
func WithTransaction(store abstractions.Storage, logger *slog.Logger, name string, fn TransactionFunction) error {
	txn, err := store.Begin()
	if err != nil {
		logger.Error("Failed to begin transaction", "name", name, "error", err.Error())
		return err
	}

	if fnErr := fn(txn); fnErr != nil {
		if txnErr := txn.Rollback(); txnErr != nil {
			logger.Error("Failed to rollback transaction", "name", name, "error", txnErr.Error())
			return errors.Join(fnErr, txnErr)
		}
		return fnErr
	}

	if txnErr := txn.Commit(); txnErr != nil {
		logger.Error("Failed to commit transaction", "name", name, "error", txnErr.Error())
		return txnErr
	}
	return nil
}
