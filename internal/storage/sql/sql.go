package sql

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/mp-manager/mp-manager/internal/abstractions"
	"github.com/mp-manager/mp-manager/internal/serviceerrors"
	"github.com/mp-manager/mp-manager/internal/storage/sql/postgres"
	"github.com/mp-manager/mp-manager/internal/storage/sql/shared"
	"github.com/mp-manager/mp-manager/internal/storage/sql/sqlite"
	"github.com/mp-manager/mp-manager/pkg/api"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
)

type SQLStorage struct {
	sqlConfig  *shared.SQLDatabaseConfig
	pool       *sql.DB
	statements shared.SQLStatementsFactory
	logger     *slog.Logger
	ctx        context.Context
}

func NewStorage(config map[string]any, otelEnabled bool, logger *slog.Logger) (*SQLStorage, error) {
	var sqlConfig shared.SQLDatabaseConfig
	if err := mapstructure.Decode(config, &sqlConfig); err != nil {
		return nil, err
	}

	var system attribute.KeyValue
	switch sqlConfig.Driver {
	case sqlite.DRIVER:
		system = semconv.DBSystemSqlite
	case postgres.DRIVER:
		system = semconv.DBSystemPostgreSQL
	default:
		return nil, fmt.Errorf("unsupported database driver %q", sqlConfig.Driver)
	}

	databaseName := sqlConfig.GetDatabaseName()
	logger = logger.With("driver", sqlConfig.GetDriverName(), "database", databaseName)

	logger.Debug("Creating SQL storage")

	if sqlConfig.Driver == postgres.DRIVER {
		if err := postgres.EnsureDatabaseExists(context.Background(), logger, sqlConfig.URL); err != nil {
			return nil, serviceerrors.NewStoreError("create database", err)
		}
	}

	var pool *sql.DB
	var err error
	if otelEnabled {
		attrs := []attribute.KeyValue{system}
		if databaseName != "" {
			attrs = append(attrs, semconv.DBNameKey.String(databaseName))
		}
		pool, err = otelsql.Open(sqlConfig.Driver, sqlConfig.URL, otelsql.WithAttributes(attrs...))
	} else {
		pool, err = sql.Open(sqlConfig.Driver, sqlConfig.URL)
	}
	if err != nil {
		return nil, serviceerrors.NewStoreError("open", err)
	}

	success := false
	defer func() {
		if !success {
			pool.Close()
		}
	}()

	var statements shared.SQLStatementsFactory
	switch sqlConfig.Driver {
	case sqlite.DRIVER:
		statements, err = sqlite.Setup(pool, &sqlConfig)
	case postgres.DRIVER:
		statements, err = postgres.Setup(pool, &sqlConfig)
	}
	if err != nil {
		return nil, serviceerrors.NewStoreError("setup", err)
	}

	if sqlConfig.ConnMaxLifetime != nil {
		pool.SetConnMaxLifetime(*sqlConfig.ConnMaxLifetime)
	}
	if sqlConfig.MaxIdleConns != nil {
		pool.SetMaxIdleConns(*sqlConfig.MaxIdleConns)
	}
	if sqlConfig.MaxOpenConns != nil && sqlConfig.Driver != sqlite.DRIVER {
		pool.SetMaxOpenConns(*sqlConfig.MaxOpenConns)
	}

	s := &SQLStorage{
		sqlConfig:  &sqlConfig,
		pool:       pool,
		statements: statements,
		logger:     logger,
		ctx:        context.Background(),
	}

	// verify the DSN provided by the user is valid and the server is accessible
	if err := s.Ping(5 * time.Second); err != nil {
		return nil, serviceerrors.NewStoreError("ping", err)
	}

	success = true
	return s, nil
}

func (s *SQLStorage) Ping(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	return s.pool.PingContext(ctx)
}

// Begin starts the transaction of one stage on the shared pool. The connection
// it holds goes back to the pool on Commit or Rollback.
func (s *SQLStorage) Begin() (abstractions.StageTx, error) {
	txn, err := s.pool.BeginTx(s.ctx, nil)
	if err != nil {
		return nil, serviceerrors.NewStoreError("begin", err)
	}
	return &sqlStageTx{
		txn:        txn,
		statements: s.statements,
		logger:     s.logger,
		ctx:        s.ctx,
	}, nil
}

// Projection (re)creates the protein view over the current tables and streams
// its distinct rows.
func (s *SQLStorage) Projection() iter.Seq2[api.ProjectionRow, error] {
	return func(yield func(api.ProjectionRow, error) bool) {
		if _, err := s.pool.ExecContext(s.ctx, s.statements.CreateProjectionViewStatement()); err != nil {
			yield(api.ProjectionRow{}, serviceerrors.NewStoreError("create view", err))
			return
		}

		rows, err := s.pool.QueryContext(s.ctx, s.statements.CreateSelectProjectionStatement())
		if err != nil {
			yield(api.ProjectionRow{}, serviceerrors.NewStoreError("select view", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			row, err := scanProjectionRow(rows)
			if err != nil {
				yield(api.ProjectionRow{}, serviceerrors.NewStoreError("scan view", err))
				return
			}
			if !yield(row, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(api.ProjectionRow{}, serviceerrors.NewStoreError("select view", err))
		}
	}
}

func scanProjectionRow(rows *sql.Rows) (api.ProjectionRow, error) {
	var (
		pdbID, chainID, uniprotAC, proteinNames sql.NullString
		geneNames, organism, keggID, mitoID     sql.NullString
		geneID                                  sql.NullInt64
	)
	if err := rows.Scan(&pdbID, &chainID, &uniprotAC, &proteinNames, &geneNames, &organism, &keggID, &mitoID, &geneID); err != nil {
		return api.ProjectionRow{}, err
	}
	return api.ProjectionRow{
		PDBID:        pdbID.String,
		ChainID:      chainID.String,
		UniprotAC:    uniprotAC.String,
		ProteinNames: proteinNames.String,
		GeneNames:    geneNames.String,
		Organism:     organism.String,
		KeggID:       keggID.String,
		MitoID:       mitoID.String,
		GeneID:       geneID.Int64,
	}, nil
}

func (s *SQLStorage) Close() error {
	return s.pool.Close()
}

func (s *SQLStorage) WithLogger(logger *slog.Logger) abstractions.Storage {
	return &SQLStorage{
		sqlConfig:  s.sqlConfig,
		pool:       s.pool,
		statements: s.statements,
		logger:     logger,
		ctx:        s.ctx,
	}
}

func (s *SQLStorage) WithContext(ctx context.Context) abstractions.Storage {
	return &SQLStorage{
		sqlConfig:  s.sqlConfig,
		pool:       s.pool,
		statements: s.statements,
		logger:     s.logger,
		ctx:        ctx,
	}
}
