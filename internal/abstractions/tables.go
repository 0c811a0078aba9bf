package abstractions

const (
	TABLE_MITOPROTEOME = "mitoproteome"
	TABLE_GENE_UNIPROT = "gene_uniprot"
	TABLE_UNIPROT_INFO = "uniprot_info"
	TABLE_UNIPROT_PDB  = "uniprot_pdb"
	TABLE_UNIPROT_KEGG = "uniprot_kegg"
	TABLE_PDB_INFO     = "pdb_info"
	TABLE_CHAIN_INFO   = "chain_info"

	VIEW_PROTEIN_CSV = "protein_csv"
)

var (
	MitoproteomeTable = TableSpec{
		Name: TABLE_MITOPROTEOME,
		Columns: []Column{
			{Name: "mito_id", Type: ColumnText},
			{Name: "gene_id", Type: ColumnInteger},
		},
	}
	GeneUniprotTable = TableSpec{
		Name: TABLE_GENE_UNIPROT,
		Columns: []Column{
			{Name: "gene_id", Type: ColumnInteger},
			{Name: "uniprot_ac", Type: ColumnText},
		},
	}
	UniprotInfoTable = TableSpec{
		Name: TABLE_UNIPROT_INFO,
		Columns: []Column{
			{Name: "uniprot_ac", Type: ColumnText},
			{Name: "protein_names", Type: ColumnText},
			{Name: "gene_names", Type: ColumnText},
			{Name: "organism", Type: ColumnText},
		},
	}
	UniprotPdbTable = TableSpec{
		Name: TABLE_UNIPROT_PDB,
		Columns: []Column{
			{Name: "uniprot_ac", Type: ColumnText},
			{Name: "pdb_id", Type: ColumnText},
		},
	}
	UniprotKeggTable = TableSpec{
		Name: TABLE_UNIPROT_KEGG,
		Columns: []Column{
			{Name: "uniprot_ac", Type: ColumnText},
			{Name: "kegg_id", Type: ColumnText},
		},
	}
	PdbInfoTable = TableSpec{
		Name: TABLE_PDB_INFO,
		Columns: []Column{
			{Name: "pdb_id", Type: ColumnText},
			{Name: "resolution", Type: ColumnReal},
			{Name: "entity_id", Type: ColumnInteger},
			{Name: "chain_id", Type: ColumnText},
		},
	}
	ChainInfoTable = TableSpec{
		Name: TABLE_CHAIN_INFO,
		Columns: []Column{
			{Name: "pdb_id", Type: ColumnText},
			{Name: "chain_id", Type: ColumnText},
			{Name: "length", Type: ColumnInteger},
			{Name: "uniprot_ac", Type: ColumnText},
		},
	}
)
