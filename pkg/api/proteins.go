package api

import (
	"iter"
	"strconv"
)

// MitoGeneLink pairs a MitoProteome entry with its Entrez gene id.
type MitoGeneLink struct {
	MitoID string `json:"mito_id"`
	GeneID int64  `json:"gene_id"`
}

type GeneUniprotLink struct {
	GeneID    int64  `json:"gene_id"`
	UniprotAC string `json:"uniprot_ac"`
}

type UniprotInfo struct {
	UniprotAC    string `json:"uniprot_ac"`
	ProteinNames string `json:"protein_names"`
	GeneNames    string `json:"gene_names"`
	Organism     string `json:"organism"`
}

type UniprotPdbLink struct {
	UniprotAC string `json:"uniprot_ac"`
	PDBID     string `json:"pdb_id"`
}

type UniprotKeggLink struct {
	UniprotAC string `json:"uniprot_ac"`
	KeggID    string `json:"kegg_id"`
}

// IDMapping is one line of a UniProt id-mapping response.
type IDMapping struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PdbEntity is a protein entity of a structure together with its chains.
type PdbEntity struct {
	EntityID int64    `json:"entity_id"`
	ChainIDs []string `json:"chain_ids"`
}

// PdbStructure is the nested form returned by the structure adapter. Resolution
// is only set for X-ray structures that report one.
type PdbStructure struct {
	PDBID      string      `json:"pdb_id"`
	Resolution *float64    `json:"resolution,omitempty"`
	Entities   []PdbEntity `json:"entities"`
}

// PdbStructureInfo is one persisted row per (structure, entity, chain).
type PdbStructureInfo struct {
	PDBID      string   `json:"pdb_id"`
	Resolution *float64 `json:"resolution,omitempty"`
	EntityID   int64    `json:"entity_id"`
	ChainID    string   `json:"chain_id"`
}

// ChainKey identifies a polymer chain within a structure.
type ChainKey struct {
	PDBID   string `json:"pdb_id"`
	ChainID string `json:"chain_id"`
}

// Dotted returns the "pdbid.chainid" form used by the PDB REST API.
func (k ChainKey) Dotted() string {
	return k.PDBID + "." + k.ChainID
}

type ChainInfo struct {
	PDBID     string  `json:"pdb_id"`
	ChainID   string  `json:"chain_id"`
	Length    int64   `json:"length"`
	UniprotAC *string `json:"uniprot_ac,omitempty"`
}

// ProjectionRow is one row of the joined protein view.
type ProjectionRow struct {
	PDBID        string `json:"pdb_id"`
	ChainID      string `json:"chain_id"`
	UniprotAC    string `json:"uniprot_ac"`
	ProteinNames string `json:"protein_names"`
	GeneNames    string `json:"gene_names"`
	Organism     string `json:"organism"`
	KeggID       string `json:"kegg_id"`
	MitoID       string `json:"mito_id"`
	GeneID       int64  `json:"gene_id"`
}

func (r ProjectionRow) Chain() ChainKey {
	return ChainKey{PDBID: r.PDBID, ChainID: r.ChainID}
}

// Record returns the row in column order for delimited output.
func (r ProjectionRow) Record() []string {
	return []string{
		r.PDBID,
		r.ChainID,
		r.UniprotAC,
		r.ProteinNames,
		r.GeneNames,
		r.Organism,
		r.KeggID,
		r.MitoID,
		strconv.FormatInt(r.GeneID, 10),
	}
}

// FlattenStructures expands every structure into one row per (entity, chain),
// carrying the structure's resolution onto each row. Errors from the source
// sequence are passed through and stop the expansion.
func FlattenStructures(structures iter.Seq2[PdbStructure, error]) iter.Seq2[PdbStructureInfo, error] {
	return func(yield func(PdbStructureInfo, error) bool) {
		for structure, err := range structures {
			if err != nil {
				yield(PdbStructureInfo{}, err)
				return
			}
			for _, entity := range structure.Entities {
				for _, chainID := range entity.ChainIDs {
					row := PdbStructureInfo{
						PDBID:      structure.PDBID,
						Resolution: structure.Resolution,
						EntityID:   entity.EntityID,
						ChainID:    chainID,
					}
					if !yield(row, nil) {
						return
					}
				}
			}
		}
	}
}
