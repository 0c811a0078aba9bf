package sources

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/mp-manager/mp-manager/internal/batch"
	"github.com/mp-manager/mp-manager/internal/config"
	"github.com/mp-manager/mp-manager/internal/httpclient"
	"github.com/mp-manager/mp-manager/internal/serviceerrors"
	"github.com/mp-manager/mp-manager/pkg/api"
)

type call struct {
	url    string
	params url.Values
	fields map[string]string
}

type fakeTransport struct {
	calls     []call
	responses []string
	err       error
}

func (f *fakeTransport) next() ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return nil, errors.New("no more responses")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return []byte(resp), nil
}

func (f *fakeTransport) Get(_ context.Context, rawURL string, params url.Values) ([]byte, error) {
	f.calls = append(f.calls, call{url: rawURL, params: params})
	return f.next()
}

func (f *fakeTransport) PostMultipart(_ context.Context, rawURL string, fields map[string]string) ([]byte, error) {
	f.calls = append(f.calls, call{url: rawURL, fields: fields})
	return f.next()
}

func testConfig() *config.SourcesConfig {
	return &config.SourcesConfig{
		MitoTableURL:     "https://www.mitoproteome.org/MITO_table.php",
		MitoDetailMarker: "MITO_detail.php",
		EntrezGeneMarker: "http://www.ncbi.nlm.nih.gov/sites/entrez",
		MitoListingSize:  10000,
		UniprotURL:       "https://www.uniprot.org/uniprot/",
		UniprotMapURL:    "https://www.uniprot.org/mapping/",
		PDBRestURL:       "https://www.rcsb.org/pdb/rest/",
		GroupSize:        2,
		Delay:            time.Second,
	}
}

func newTestSources(transport Transport) *Sources {
	limiter := &batch.Limiter{GroupSize: 2, Sleep: func(context.Context, time.Duration) error { return nil }}
	return New(transport, testConfig(), slog.New(slog.DiscardHandler)).WithLimiter(limiter)
}

const mitoPage = `<html><body><table>
<tr><td><a href="MITO_detail.php?id=MTO_00001">MTO_00001</a></td><td><a href="http://www.ncbi.nlm.nih.gov/sites/entrez?db=gene&term=4519">4519</a></td></tr>
<tr><td><a href="MITO_detail.php?id=MTO_00002">MTO_00002</a></td><td><a href="http://www.ncbi.nlm.nih.gov/sites/entrez?db=gene&term=1537">1537</a></td></tr>
<tr><td><a name="anchor-without-href">skip</a><a href="MITO_detail.php?id=MTO_00003">MTO_00003</a></td></tr>
<tr><td><a href="/about.html">About</a></td></tr>
</table></body></html>`

func TestMitoGeneLinks(t *testing.T) {
	t.Run("anchors are zipped and truncated to the shorter list", func(t *testing.T) {
		transport := &fakeTransport{responses: []string{mitoPage}}
		links, err := batch.Collect(newTestSources(transport).MitoGeneLinks(context.Background()).All())
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		want := []api.MitoGeneLink{{MitoID: "MTO_00001", GeneID: 4519}, {MitoID: "MTO_00002", GeneID: 1537}}
		if !slices.Equal(links, want) {
			t.Fatalf("Expected %v, got %v", want, links)
		}
		if len(transport.calls) != 1 {
			t.Fatalf("Expected a single POST, got %d calls", len(transport.calls))
		}
		if transport.calls[0].fields["nums"] != "10000" {
			t.Fatalf("Expected nums=10000, got %v", transport.calls[0].fields)
		}
	})

	t.Run("non numeric gene id is a parse error", func(t *testing.T) {
		page := `<a href="MITO_detail.php?id=1">MTO_1</a><a href="http://www.ncbi.nlm.nih.gov/sites/entrez?x">not-a-number</a>`
		_, err := batch.Collect(newTestSources(&fakeTransport{responses: []string{page}}).MitoGeneLinks(context.Background()).All())
		if !serviceerrors.IsParseError(err) {
			t.Fatalf("Expected ParseError, got %v", err)
		}
	})

	t.Run("network failure is passed through", func(t *testing.T) {
		failure := serviceerrors.NewNetworkError("https://www.mitoproteome.org/MITO_table.php", 500, errors.New("boom"))
		_, err := batch.Collect(newTestSources(&fakeTransport{err: failure}).MitoGeneLinks(context.Background()).All())
		if !serviceerrors.IsNetworkError(err) {
			t.Fatalf("Expected NetworkError, got %v", err)
		}
	})
}

func TestParseIDMapping(t *testing.T) {
	t.Run("malformed lines are dropped", func(t *testing.T) {
		got := parseIDMapping([]byte("From\tTo\nA\tB\nC\nD\tE\n"))
		want := []api.IDMapping{{From: "A", To: "B"}, {From: "D", To: "E"}}
		if !slices.Equal(got, want) {
			t.Fatalf("Expected %v, got %v", want, got)
		}
	})

	t.Run("header only", func(t *testing.T) {
		if got := parseIDMapping([]byte("From\tTo\n")); len(got) != 0 {
			t.Fatalf("Expected no mappings, got %v", got)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		if got := parseIDMapping([]byte("")); len(got) != 0 {
			t.Fatalf("Expected no mappings, got %v", got)
		}
	})
}

func TestParseUniprotInfo(t *testing.T) {
	body := "Entry\tProtein names\tGene names\tOrganism\n" +
		"P53396\tATP-citrate synthase (EC 2.3.3.8)\tACLY\tHomo sapiens (Human)\n" +
		"P00000\tshort line\n" +
		"Q00001\ttoo\tmany\tfields\there\n"
	got := parseUniprotInfo([]byte(body))
	want := []api.UniprotInfo{{
		UniprotAC:    "P53396",
		ProteinNames: "ATP-citrate synthase (EC 2.3.3.8)",
		GeneNames:    "ACLY",
		Organism:     "Homo sapiens (Human)",
	}}
	if !slices.Equal(got, want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
}

func TestUniprotAdapters(t *testing.T) {
	t.Run("gene ids are mapped in groups", func(t *testing.T) {
		transport := &fakeTransport{responses: []string{
			"From\tTo\n4519\tP00156\n1537\tP08574\n",
			"From\tTo\n7384\tP31930\n",
		}}
		got, err := batch.Collect(newTestSources(transport).GeneAccessions(context.Background(), slices.Values([]int64{4519, 1537, 7384})).All())
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		want := []api.GeneUniprotLink{{GeneID: 4519, UniprotAC: "P00156"}, {GeneID: 1537, UniprotAC: "P08574"}, {GeneID: 7384, UniprotAC: "P31930"}}
		if !slices.Equal(got, want) {
			t.Fatalf("Expected %v, got %v", want, got)
		}
		if len(transport.calls) != 2 {
			t.Fatalf("Expected 2 calls, got %d", len(transport.calls))
		}
		first := transport.calls[0].params
		if first.Get("from") != NamespaceEntrezGene || first.Get("to") != NamespaceAccession || first.Get("query") != "4519,1537" || first.Get("format") != "tab" {
			t.Fatalf("Unexpected mapping params %v", first)
		}
	})

	t.Run("pdb and kegg mappings use their namespaces", func(t *testing.T) {
		transport := &fakeTransport{responses: []string{
			"From\tTo\nP00156\t1BE3\n",
			"From\tTo\nP00156\thsa:4519\n",
		}}
		s := newTestSources(transport)
		pdb, err := batch.Collect(s.PdbIDs(context.Background(), slices.Values([]string{"P00156"})).All())
		if err != nil || !slices.Equal(pdb, []api.UniprotPdbLink{{UniprotAC: "P00156", PDBID: "1BE3"}}) {
			t.Fatalf("Unexpected pdb mapping %v %v", pdb, err)
		}
		kegg, err := batch.Collect(s.KeggIDs(context.Background(), slices.Values([]string{"P00156"})).All())
		if err != nil || !slices.Equal(kegg, []api.UniprotKeggLink{{UniprotAC: "P00156", KeggID: "hsa:4519"}}) {
			t.Fatalf("Unexpected kegg mapping %v %v", kegg, err)
		}
		if transport.calls[0].params.Get("to") != NamespacePDB || transport.calls[1].params.Get("to") != NamespaceKEGG {
			t.Fatalf("Unexpected namespaces %v %v", transport.calls[0].params, transport.calls[1].params)
		}
	})

	t.Run("info query and columns", func(t *testing.T) {
		transport := &fakeTransport{responses: []string{"Entry\tProtein names\tGene names\tOrganism\nP1\tA\tB\tC\n"}}
		got, err := batch.Collect(newTestSources(transport).Info(context.Background(), slices.Values([]string{"P1", "P2"})).All())
		if err != nil || len(got) != 1 {
			t.Fatalf("Unexpected info %v %v", got, err)
		}
		params := transport.calls[0].params
		if params.Get("query") != "accession:P1 OR accession:P2" {
			t.Fatalf("Unexpected query %q", params.Get("query"))
		}
		if params.Get("columns") != "id,entry,protein names,genes,organism" {
			t.Fatalf("Unexpected columns %q", params.Get("columns"))
		}
	})
}

const entityInfo = `<?xml version='1.0' standalone='no' ?>
<entityInfo>
  <PDB bioAssemblies="1" release_date="Tue Jan 01 00:00:00 PST 2002" resolution="1.74" structureId="4HHB">
    <Method name="xray" />
    <Entity id="1" type="protein">
      <Chain id="A" />
      <Chain id="C" />
    </Entity>
    <Entity id="2" type="protein">
      <Chain id="B" />
      <Chain id="D" />
    </Entity>
    <Entity id="3" type="non-polymer">
      <Chain id="E" />
    </Entity>
  </PDB>
  <PDB bioAssemblies="1" structureId="1A02" resolution="2.7">
    <Method name="nmr" />
    <Entity id="1" type="protein">
      <Chain id="A" />
    </Entity>
  </PDB>
  <PDB bioAssemblies="1" structureId="10GS">
    <Method name="xray" />
    <Entity id="1" type="protein">
      <Chain id="A" />
    </Entity>
  </PDB>
</entityInfo>`

func TestParseStructures(t *testing.T) {
	structures, err := parseStructures([]byte(entityInfo))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(structures) != 3 {
		t.Fatalf("Expected 3 structures, got %d", len(structures))
	}

	t.Run("xray with resolution", func(t *testing.T) {
		s := structures[0]
		if s.Resolution == nil || *s.Resolution != 1.74 {
			t.Fatalf("Expected resolution 1.74, got %v", s.Resolution)
		}
		if len(s.Entities) != 2 {
			t.Fatalf("Expected only protein entities, got %v", s.Entities)
		}
	})

	t.Run("non xray has no resolution", func(t *testing.T) {
		if structures[1].Resolution != nil {
			t.Fatalf("Expected nil resolution for nmr, got %v", *structures[1].Resolution)
		}
	})

	t.Run("xray without resolution attribute", func(t *testing.T) {
		if structures[2].Resolution != nil {
			t.Fatalf("Expected nil resolution, got %v", *structures[2].Resolution)
		}
		if !slices.Equal(structures[2].Entities[0].ChainIDs, structures[1].Entities[0].ChainIDs) {
			t.Fatalf("Expected identical chains for both structures")
		}
	})

	t.Run("flattened to one row per chain", func(t *testing.T) {
		seq := func(yield func(api.PdbStructure, error) bool) {
			yield(structures[0], nil)
		}
		rows, err := batch.Collect(api.FlattenStructures(seq))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(rows) != 4 {
			t.Fatalf("Expected 4 rows, got %d", len(rows))
		}
		for _, row := range rows {
			if row.PDBID != "4HHB" || row.Resolution == nil || *row.Resolution != 1.74 {
				t.Fatalf("Unexpected row %+v", row)
			}
		}
	})

	t.Run("missing method is a parse error", func(t *testing.T) {
		_, err := parseStructures([]byte(`<entityInfo><PDB structureId="1ABC"><Entity id="1" type="protein"/></PDB></entityInfo>`))
		if !serviceerrors.IsParseError(err) {
			t.Fatalf("Expected ParseError, got %v", err)
		}
	})

	t.Run("malformed xml is a parse error", func(t *testing.T) {
		_, err := parseStructures([]byte(`<entityInfo><PDB`))
		if !serviceerrors.IsParseError(err) {
			t.Fatalf("Expected ParseError, got %v", err)
		}
	})
}

const describeMol = `<?xml version='1.0' standalone='no' ?>
<molDescription>
  <structureId id="4HHB" chainId="A">
    <polymer entityNr="1" length="141" type="protein" weight="15150.5">
      <chain id="A" />
      <Taxonomy name="Homo sapiens" id="9606" />
      <macroMolecule name="Hemoglobin subunit alpha">
        <accession id="P69905" />
      </macroMolecule>
      <polymerDescription description="HEMOGLOBIN (DEOXY) (ALPHA CHAIN)" />
    </polymer>
  </structureId>
  <structureId id="1XYZ" chainId="B">
    <polymer entityNr="2" length="12" type="protein" weight="1000.0">
      <chain id="B" />
    </polymer>
  </structureId>
</molDescription>`

func TestParseChains(t *testing.T) {
	chains, err := parseChains([]byte(describeMol))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(chains) != 2 {
		t.Fatalf("Expected 2 chains, got %d", len(chains))
	}
	if chains[0].Length != 141 || chains[0].UniprotAC == nil || *chains[0].UniprotAC != "P69905" {
		t.Fatalf("Unexpected chain %+v", chains[0])
	}
	if chains[1].Length != 12 || chains[1].UniprotAC != nil {
		t.Fatalf("Expected a chain without accession, got %+v", chains[1])
	}

	t.Run("missing polymer is a parse error", func(t *testing.T) {
		_, err := parseChains([]byte(`<molDescription><structureId id="1ABC" chainId="A"/></molDescription>`))
		if !serviceerrors.IsParseError(err) {
			t.Fatalf("Expected ParseError, got %v", err)
		}
	})
}

func TestPdbAdapters(t *testing.T) {
	transport := &fakeTransport{responses: []string{entityInfo, describeMol}}
	s := newTestSources(transport)

	structures, err := batch.Collect(s.Structures(context.Background(), slices.Values([]string{"4HHB", "1A02"})).All())
	if err != nil || len(structures) != 3 {
		t.Fatalf("Unexpected structures %v %v", structures, err)
	}
	if transport.calls[0].url != "https://www.rcsb.org/pdb/rest/getEntityInfo" {
		t.Fatalf("Unexpected url %s", transport.calls[0].url)
	}
	if transport.calls[0].params.Get("structureId") != "4HHB,1A02" {
		t.Fatalf("Unexpected structureId %q", transport.calls[0].params.Get("structureId"))
	}

	keys := []api.ChainKey{{PDBID: "4HHB", ChainID: "A"}, {PDBID: "1XYZ", ChainID: "B"}}
	chains, err := batch.Collect(s.Chains(context.Background(), slices.Values(keys)).All())
	if err != nil || len(chains) != 2 {
		t.Fatalf("Unexpected chains %v %v", chains, err)
	}
	if transport.calls[1].url != "https://www.rcsb.org/pdb/rest/describeMol" {
		t.Fatalf("Unexpected url %s", transport.calls[1].url)
	}
	if transport.calls[1].params.Get("structureId") != "4HHB.A,1XYZ.B" {
		t.Fatalf("Unexpected structureId %q", transport.calls[1].params.Get("structureId"))
	}
}

func TestAdaptersOverHTTP(t *testing.T) {
	t.Run("server error aborts the stream", func(t *testing.T) {
		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			if requests == 2 {
				http.Error(w, "overloaded", http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("From\tTo\nA\tB\n"))
		}))
		defer server.Close()

		cfg := testConfig()
		cfg.UniprotMapURL = server.URL + "/mapping/"
		client := httpclient.NewClientWithHTTP(server.Client(), slog.New(slog.DiscardHandler))
		limiter := &batch.Limiter{GroupSize: 1, Sleep: func(context.Context, time.Duration) error { return nil }}
		s := New(client, cfg, slog.New(slog.DiscardHandler)).WithLimiter(limiter)

		got, err := batch.Collect(s.PdbIDs(context.Background(), slices.Values([]string{"A", "C", "E"})).All())
		if !serviceerrors.IsNetworkError(err) {
			t.Fatalf("Expected NetworkError, got %v", err)
		}
		if len(got) != 1 || requests != 2 {
			t.Fatalf("Expected one row and no request after the failure, got %v after %d requests", got, requests)
		}
		if !strings.Contains(err.Error(), "503") {
			t.Fatalf("Expected the status in the error, got %v", err)
		}
	})
}
