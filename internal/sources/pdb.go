package sources

import (
	"bytes"
	"context"
	"encoding/xml"
	"iter"
	"net/url"
	"strconv"
	"strings"

	"github.com/mp-manager/mp-manager/internal/batch"
	"github.com/mp-manager/mp-manager/internal/serviceerrors"
	"github.com/mp-manager/mp-manager/pkg/api"
)

const (
	sourceEntityInfo  = "PDB getEntityInfo"
	sourceDescribeMol = "PDB describeMol"

	methodXRay     = "xray"
	entityProtein  = "protein"
	pathEntityInfo = "getEntityInfo"
	pathDescribe   = "describeMol"
)

type entityInfoResponse struct {
	Structures []structureNode `xml:"PDB"`
}

type structureNode struct {
	StructureID *string      `xml:"structureId,attr"`
	Resolution  *string      `xml:"resolution,attr"`
	Methods     []methodNode `xml:"Method"`
	Entities    []entityNode `xml:"Entity"`
}

type methodNode struct {
	Name *string `xml:"name,attr"`
}

type entityNode struct {
	ID     string      `xml:"id,attr"`
	Type   string      `xml:"type,attr"`
	Chains []chainNode `xml:"Chain"`
}

type chainNode struct {
	ID string `xml:"id,attr"`
}

type describeMolResponse struct {
	Chains []describedChainNode `xml:"structureId"`
}

type describedChainNode struct {
	ID       *string       `xml:"id,attr"`
	ChainID  *string       `xml:"chainId,attr"`
	Polymers []polymerNode `xml:"polymer"`
}

type polymerNode struct {
	Length         *string             `xml:"length,attr"`
	MacroMolecules []macroMoleculeNode `xml:"macroMolecule"`
}

type macroMoleculeNode struct {
	Accessions []accessionNode `xml:"accession"`
}

type accessionNode struct {
	ID *string `xml:"id,attr"`
}

// Structures fetches the experimental method, resolution and protein
// entities of every PDB entry. Resolution is only kept for X-ray entries.
func (s *Sources) Structures(ctx context.Context, pdbIDs iter.Seq[string]) *batch.Stream[api.PdbStructure] {
	return batch.Fetch(ctx, s.limiter, pdbIDs, func(ctx context.Context, group []string) ([]api.PdbStructure, error) {
		endpoint, err := url.JoinPath(s.config.PDBRestURL, pathEntityInfo)
		if err != nil {
			return nil, serviceerrors.NewNetworkError(s.config.PDBRestURL, 0, err)
		}
		body, err := s.transport.Get(ctx, endpoint, map[string][]string{
			"structureId": {strings.Join(group, ",")},
		})
		if err != nil {
			return nil, err
		}
		return parseStructures(body)
	})
}

// Chains fetches the polymer length and UniProt accession of every chain.
func (s *Sources) Chains(ctx context.Context, chains iter.Seq[api.ChainKey]) *batch.Stream[api.ChainInfo] {
	return batch.Fetch(ctx, s.limiter, chains, func(ctx context.Context, group []api.ChainKey) ([]api.ChainInfo, error) {
		endpoint, err := url.JoinPath(s.config.PDBRestURL, pathDescribe)
		if err != nil {
			return nil, serviceerrors.NewNetworkError(s.config.PDBRestURL, 0, err)
		}
		ids := make([]string, 0, len(group))
		for _, chain := range group {
			ids = append(ids, chain.Dotted())
		}
		body, err := s.transport.Get(ctx, endpoint, map[string][]string{
			"structureId": {strings.Join(ids, ",")},
		})
		if err != nil {
			return nil, err
		}
		return parseChains(body)
	})
}

func parseStructures(body []byte) ([]api.PdbStructure, error) {
	var resp entityInfoResponse
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&resp); err != nil {
		return nil, &serviceerrors.ParseError{Source: sourceEntityInfo, Err: err}
	}

	structures := make([]api.PdbStructure, 0, len(resp.Structures))
	for _, node := range resp.Structures {
		if node.StructureID == nil {
			return nil, serviceerrors.NewParseError(sourceEntityInfo, "<PDB> without structureId")
		}
		pdbID := *node.StructureID
		if len(node.Methods) == 0 || node.Methods[0].Name == nil {
			return nil, serviceerrors.NewParseError(sourceEntityInfo, "%s has no <Method name>", pdbID)
		}

		structure := api.PdbStructure{PDBID: pdbID, Entities: []api.PdbEntity{}}
		if *node.Methods[0].Name == methodXRay && node.Resolution != nil {
			resolution, err := strconv.ParseFloat(*node.Resolution, 64)
			if err != nil {
				return nil, serviceerrors.NewParseError(sourceEntityInfo, "resolution %q of %s: %w", *node.Resolution, pdbID, err)
			}
			structure.Resolution = &resolution
		}

		for _, entity := range node.Entities {
			if entity.Type != entityProtein {
				continue
			}
			entityID, err := strconv.ParseInt(entity.ID, 10, 64)
			if err != nil {
				return nil, serviceerrors.NewParseError(sourceEntityInfo, "entity id %q of %s: %w", entity.ID, pdbID, err)
			}
			chainIDs := make([]string, 0, len(entity.Chains))
			for _, chain := range entity.Chains {
				chainIDs = append(chainIDs, chain.ID)
			}
			structure.Entities = append(structure.Entities, api.PdbEntity{EntityID: entityID, ChainIDs: chainIDs})
		}
		structures = append(structures, structure)
	}
	return structures, nil
}

func parseChains(body []byte) ([]api.ChainInfo, error) {
	var resp describeMolResponse
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&resp); err != nil {
		return nil, &serviceerrors.ParseError{Source: sourceDescribeMol, Err: err}
	}

	chains := make([]api.ChainInfo, 0, len(resp.Chains))
	for _, node := range resp.Chains {
		if node.ID == nil || node.ChainID == nil {
			return nil, serviceerrors.NewParseError(sourceDescribeMol, "<structureId> without id or chainId")
		}
		key := api.ChainKey{PDBID: *node.ID, ChainID: *node.ChainID}
		if len(node.Polymers) == 0 || node.Polymers[0].Length == nil {
			return nil, serviceerrors.NewParseError(sourceDescribeMol, "%s has no <polymer length>", key.Dotted())
		}
		polymer := node.Polymers[0]
		length, err := strconv.ParseInt(*polymer.Length, 10, 64)
		if err != nil {
			return nil, serviceerrors.NewParseError(sourceDescribeMol, "length %q of %s: %w", *polymer.Length, key.Dotted(), err)
		}

		info := api.ChainInfo{PDBID: key.PDBID, ChainID: key.ChainID, Length: length}
		if len(polymer.MacroMolecules) > 0 {
			macroMolecule := polymer.MacroMolecules[0]
			if len(macroMolecule.Accessions) == 0 || macroMolecule.Accessions[0].ID == nil {
				return nil, serviceerrors.NewParseError(sourceDescribeMol, "%s has a <macroMolecule> without <accession id>", key.Dotted())
			}
			accession := *macroMolecule.Accessions[0].ID
			info.UniprotAC = &accession
		}
		chains = append(chains, info)
	}
	return chains, nil
}
