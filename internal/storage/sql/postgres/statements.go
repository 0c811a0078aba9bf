package postgres

import (
	"fmt"
	"strings"

	"github.com/mp-manager/mp-manager/internal/abstractions"
	"github.com/mp-manager/mp-manager/internal/storage/sql/shared"
)

const (
	// the projection view depends on every table
	DROP_TABLE_STATEMENT   = `DROP TABLE IF EXISTS %s CASCADE;`
	CREATE_TABLE_STATEMENT = `CREATE TABLE IF NOT EXISTS %s (%s);`
	INSERT_STATEMENT       = `INSERT INTO %s (%s) VALUES (%s);`
	DISTINCT_STATEMENT     = `SELECT DISTINCT %s FROM %s;`

	// gene_id is BIGINT here, the KEGG suffix is compared as text
	CREATE_VIEW_STATEMENT = `CREATE OR REPLACE VIEW protein_csv AS
SELECT DISTINCT pdb_info.pdb_id, chain_info.chain_id, uniprot_info.uniprot_ac, uniprot_info.protein_names, uniprot_info.gene_names, uniprot_info.organism, uniprot_kegg.kegg_id, mitoproteome.mito_id, gene_uniprot.gene_id
FROM pdb_info, chain_info, uniprot_info, uniprot_pdb, uniprot_kegg, mitoproteome, gene_uniprot
WHERE mitoproteome.gene_id = gene_uniprot.gene_id
AND gene_uniprot.uniprot_ac = uniprot_info.uniprot_ac
AND gene_uniprot.uniprot_ac = uniprot_pdb.uniprot_ac
AND gene_uniprot.uniprot_ac = uniprot_kegg.uniprot_ac
AND (SUBSTR(uniprot_kegg.kegg_id, 4, 1) = ':' AND SUBSTR(uniprot_kegg.kegg_id, 5) = CAST(gene_uniprot.gene_id AS TEXT) OR SUBSTR(uniprot_kegg.kegg_id, 5, 1) = ':' AND SUBSTR(uniprot_kegg.kegg_id, 6) = CAST(gene_uniprot.gene_id AS TEXT))
AND uniprot_pdb.pdb_id = pdb_info.pdb_id
AND pdb_info.pdb_id = chain_info.pdb_id
AND pdb_info.chain_id = chain_info.chain_id
AND chain_info.uniprot_ac = uniprot_info.uniprot_ac;`

	SELECT_PROJECTION_STATEMENT = `SELECT DISTINCT * FROM protein_csv;`
)

var columnTypes = map[abstractions.ColumnType]string{
	abstractions.ColumnText:    "TEXT",
	abstractions.ColumnInteger: "BIGINT",
	abstractions.ColumnReal:    "DOUBLE PRECISION",
}

type postgresStatementsFactory struct {
}

func NewStatementsFactory() shared.SQLStatementsFactory {
	return &postgresStatementsFactory{}
}

func (s *postgresStatementsFactory) CreateDropTableStatement(table string) string {
	return fmt.Sprintf(DROP_TABLE_STATEMENT, shared.QuoteIdentifier(table))
}

func (s *postgresStatementsFactory) CreateCreateTableStatement(spec abstractions.TableSpec) string {
	columns := make([]string, 0, len(spec.Columns))
	for _, column := range spec.Columns {
		columns = append(columns, fmt.Sprintf("%s %s", shared.QuoteIdentifier(column.Name), columnTypes[column.Type]))
	}
	return fmt.Sprintf(CREATE_TABLE_STATEMENT, shared.QuoteIdentifier(spec.Name), strings.Join(columns, ", "))
}

func (s *postgresStatementsFactory) CreateInsertStatement(spec abstractions.TableSpec) string {
	placeholders := make([]string, 0, len(spec.Columns))
	for i := range spec.Columns {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
	}
	return fmt.Sprintf(INSERT_STATEMENT, shared.QuoteIdentifier(spec.Name), shared.QuoteIdentifiers(spec.ColumnNames()), strings.Join(placeholders, ", "))
}

func (s *postgresStatementsFactory) CreateDistinctStatement(table string, columns []string) string {
	return fmt.Sprintf(DISTINCT_STATEMENT, shared.QuoteIdentifiers(columns), shared.QuoteIdentifier(table))
}

func (s *postgresStatementsFactory) CreateProjectionViewStatement() string {
	return CREATE_VIEW_STATEMENT
}

func (s *postgresStatementsFactory) CreateSelectProjectionStatement() string {
	return SELECT_PROJECTION_STATEMENT
}
