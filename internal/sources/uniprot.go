package sources

import (
	"context"
	"iter"
	"strconv"
	"strings"

	"github.com/mp-manager/mp-manager/internal/batch"
	"github.com/mp-manager/mp-manager/internal/serviceerrors"
	"github.com/mp-manager/mp-manager/pkg/api"
)

// UniProt id-mapping namespaces.
const (
	NamespaceEntrezGene = "P_ENTREZGENEID"
	NamespaceAccession  = "ACC"
	NamespacePDB        = "PDB_ID"
	NamespaceKEGG       = "KEGG_ID"
)

// infoColumns are requested from UniProt; "id" and "entry" come back as a
// single column so every row has four fields.
var infoColumns = []string{"id", "entry", "protein names", "genes", "organism"}

const sourceUniprotMapping = "UniProt mapping"

// MapIDs translates ids from one UniProt namespace to another, one request
// per group of ids.
func (s *Sources) MapIDs(ctx context.Context, ids iter.Seq[string], from string, to string) *batch.Stream[api.IDMapping] {
	return batch.Fetch(ctx, s.limiter, ids, func(ctx context.Context, group []string) ([]api.IDMapping, error) {
		body, err := s.transport.Get(ctx, s.config.UniprotMapURL, map[string][]string{
			"from":   {from},
			"to":     {to},
			"format": {"tab"},
			"query":  {strings.Join(group, ",")},
		})
		if err != nil {
			return nil, err
		}
		return parseIDMapping(body), nil
	})
}

// GeneAccessions maps Entrez gene ids to UniProt accessions.
func (s *Sources) GeneAccessions(ctx context.Context, geneIDs iter.Seq[int64]) *batch.Stream[api.GeneUniprotLink] {
	ids := func(yield func(string) bool) {
		for id := range geneIDs {
			if !yield(strconv.FormatInt(id, 10)) {
				return
			}
		}
	}
	return batch.Map(s.MapIDs(ctx, ids, NamespaceEntrezGene, NamespaceAccession), func(m api.IDMapping) (api.GeneUniprotLink, error) {
		geneID, err := strconv.ParseInt(m.From, 10, 64)
		if err != nil {
			return api.GeneUniprotLink{}, serviceerrors.NewParseError(sourceUniprotMapping, "gene id %q: %w", m.From, err)
		}
		return api.GeneUniprotLink{GeneID: geneID, UniprotAC: m.To}, nil
	})
}

// PdbIDs maps accessions to the PDB entries that contain them.
func (s *Sources) PdbIDs(ctx context.Context, accessions iter.Seq[string]) *batch.Stream[api.UniprotPdbLink] {
	return batch.Map(s.MapIDs(ctx, accessions, NamespaceAccession, NamespacePDB), func(m api.IDMapping) (api.UniprotPdbLink, error) {
		return api.UniprotPdbLink{UniprotAC: m.From, PDBID: m.To}, nil
	})
}

// KeggIDs maps accessions to KEGG gene ids such as "hsa:4519".
func (s *Sources) KeggIDs(ctx context.Context, accessions iter.Seq[string]) *batch.Stream[api.UniprotKeggLink] {
	return batch.Map(s.MapIDs(ctx, accessions, NamespaceAccession, NamespaceKEGG), func(m api.IDMapping) (api.UniprotKeggLink, error) {
		return api.UniprotKeggLink{UniprotAC: m.From, KeggID: m.To}, nil
	})
}

// Info looks up protein names, gene names and organism of each accession.
func (s *Sources) Info(ctx context.Context, accessions iter.Seq[string]) *batch.Stream[api.UniprotInfo] {
	return batch.Fetch(ctx, s.limiter, accessions, func(ctx context.Context, group []string) ([]api.UniprotInfo, error) {
		query := make([]string, 0, len(group))
		for _, accession := range group {
			query = append(query, "accession:"+accession)
		}
		body, err := s.transport.Get(ctx, s.config.UniprotURL, map[string][]string{
			"query":   {strings.Join(query, " OR ")},
			"columns": {strings.Join(infoColumns, ",")},
			"format":  {"tab"},
		})
		if err != nil {
			return nil, err
		}
		return parseUniprotInfo(body), nil
	})
}

// parseIDMapping drops the header line and every line that is not exactly
// "from<TAB>to".
func parseIDMapping(body []byte) []api.IDMapping {
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	var mappings []api.IDMapping
	for _, line := range lines[1:] {
		fields := strings.Split(line, "\t")
		if len(fields) != 2 {
			continue
		}
		mappings = append(mappings, api.IDMapping{From: fields[0], To: fields[1]})
	}
	return mappings
}

// parseUniprotInfo drops the header line and every line without four fields.
func parseUniprotInfo(body []byte) []api.UniprotInfo {
	lines := strings.Split(string(body), "\n")
	var infos []api.UniprotInfo
	for _, line := range lines[1:] {
		fields := strings.Split(line, "\t")
		if len(fields) != 4 {
			continue
		}
		infos = append(infos, api.UniprotInfo{
			UniprotAC:    fields[0],
			ProteinNames: fields[1],
			GeneNames:    fields[2],
			Organism:     fields[3],
		})
	}
	return infos
}
