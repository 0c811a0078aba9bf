package sqlite

import (
	"fmt"
	"strings"

	"github.com/mp-manager/mp-manager/internal/abstractions"
	"github.com/mp-manager/mp-manager/internal/storage/sql/shared"
)

const DROP_TABLE_STATEMENT = `DROP TABLE IF EXISTS %s;`
const CREATE_TABLE_STATEMENT = `CREATE TABLE IF NOT EXISTS %s (%s);`
const INSERT_STATEMENT = `INSERT INTO %s (%s) VALUES (%s);`
const DISTINCT_STATEMENT = `SELECT DISTINCT %s FROM %s;`

// The KEGG id is matched positionally: "hsa:4519" or "dosa:4519" against gene 4519.
const CREATE_VIEW_STATEMENT = `CREATE VIEW IF NOT EXISTS protein_csv AS
SELECT DISTINCT pdb_info.pdb_id, chain_info.chain_id, uniprot_info.uniprot_ac, uniprot_info.protein_names, uniprot_info.gene_names, uniprot_info.organism, uniprot_kegg.kegg_id, mitoproteome.mito_id, gene_uniprot.gene_id
FROM pdb_info, chain_info, uniprot_info, uniprot_pdb, uniprot_kegg, mitoproteome, gene_uniprot
WHERE mitoproteome.gene_id = gene_uniprot.gene_id
AND gene_uniprot.uniprot_ac = uniprot_info.uniprot_ac
AND gene_uniprot.uniprot_ac = uniprot_pdb.uniprot_ac
AND gene_uniprot.uniprot_ac = uniprot_kegg.uniprot_ac
AND (SUBSTR(uniprot_kegg.kegg_id, 4, 1) = ':' AND SUBSTR(uniprot_kegg.kegg_id, 5) = gene_uniprot.gene_id OR SUBSTR(uniprot_kegg.kegg_id, 5, 1) = ':' AND SUBSTR(uniprot_kegg.kegg_id, 6) = gene_uniprot.gene_id)
AND uniprot_pdb.pdb_id = pdb_info.pdb_id
AND pdb_info.pdb_id = chain_info.pdb_id
AND pdb_info.chain_id = chain_info.chain_id
AND chain_info.uniprot_ac = uniprot_info.uniprot_ac`

const SELECT_PROJECTION_STATEMENT = `SELECT DISTINCT * FROM protein_csv;`

type sqliteStatementsFactory struct{}

func NewStatementsFactory() shared.SQLStatementsFactory {
	return &sqliteStatementsFactory{}
}

func (s *sqliteStatementsFactory) CreateDropTableStatement(table string) string {
	return fmt.Sprintf(DROP_TABLE_STATEMENT, shared.QuoteIdentifier(table))
}

func (s *sqliteStatementsFactory) CreateCreateTableStatement(spec abstractions.TableSpec) string {
	columns := make([]string, 0, len(spec.Columns))
	for _, column := range spec.Columns {
		columns = append(columns, fmt.Sprintf("%s %s", shared.QuoteIdentifier(column.Name), column.Type))
	}
	return fmt.Sprintf(CREATE_TABLE_STATEMENT, shared.QuoteIdentifier(spec.Name), strings.Join(columns, ", "))
}

func (s *sqliteStatementsFactory) CreateInsertStatement(spec abstractions.TableSpec) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(spec.Columns)), ", ")
	return fmt.Sprintf(INSERT_STATEMENT, shared.QuoteIdentifier(spec.Name), shared.QuoteIdentifiers(spec.ColumnNames()), placeholders)
}

func (s *sqliteStatementsFactory) CreateDistinctStatement(table string, columns []string) string {
	return fmt.Sprintf(DISTINCT_STATEMENT, shared.QuoteIdentifiers(columns), shared.QuoteIdentifier(table))
}

func (s *sqliteStatementsFactory) CreateProjectionViewStatement() string {
	return CREATE_VIEW_STATEMENT
}

func (s *sqliteStatementsFactory) CreateSelectProjectionStatement() string {
	return SELECT_PROJECTION_STATEMENT
}
