package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/mp-manager/mp-manager/internal/storage/sql/shared"

	// registers the "pgx" driver
	_ "github.com/jackc/pgx/v5/stdlib"
)

const DRIVER = "pgx"

func Setup(pool *sql.DB, config *shared.SQLDatabaseConfig) (shared.SQLStatementsFactory, error) {
	return NewStatementsFactory(), nil
}

// EnsureDatabaseExists connects to the "postgres" maintenance database and
// creates the database named in connURL when it is missing.
func EnsureDatabaseExists(ctx context.Context, logger *slog.Logger, connURL string) error {
	if !strings.Contains(connURL, "://") {
		logger.Warn("Postgres URL is not in URL form; skipping auto-create")
		return nil
	}

	parsed, err := url.Parse(connURL)
	if err != nil {
		return fmt.Errorf("parse postgres url: %w", err)
	}

	dbName := strings.TrimPrefix(parsed.Path, "/")
	if dbName == "" || dbName == "postgres" {
		return nil
	}

	adminURL := *parsed
	adminURL.Path = "/postgres"

	adminDB, err := sql.Open(DRIVER, adminURL.String())
	if err != nil {
		return fmt.Errorf("open postgres admin connection: %w", err)
	}
	defer adminDB.Close()

	if err := adminDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres admin database: %w", err)
	}

	var exists bool
	row := adminDB.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbName)
	if err := row.Scan(&exists); err != nil {
		return fmt.Errorf("check postgres database existence: %w", err)
	}
	if exists {
		return nil
	}

	logger.Info("Postgres database does not exist; creating", "database", dbName)

	createSQL := fmt.Sprintf("CREATE DATABASE %s", shared.QuoteIdentifier(dbName))
	if parsed.User != nil && parsed.User.Username() != "" {
		createSQL = fmt.Sprintf("CREATE DATABASE %s OWNER %s", shared.QuoteIdentifier(dbName), shared.QuoteIdentifier(parsed.User.Username()))
	}
	if _, err := adminDB.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("create postgres database: %w", err)
	}
	return nil
}
