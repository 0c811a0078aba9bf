// Package pipeline runs the five dependent fetch stages of an update. Every
// stage replaces its tables and reads back the keys of the next stage in one
// transaction; a failing stage leaves the tables of earlier stages in place.
package pipeline

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/mp-manager/mp-manager/internal/abstractions"
	"github.com/mp-manager/mp-manager/internal/batch"
	"github.com/mp-manager/mp-manager/internal/config"
	"github.com/mp-manager/mp-manager/internal/executioncontext"
	"github.com/mp-manager/mp-manager/internal/metrics"
	"github.com/mp-manager/mp-manager/internal/otel"
	"github.com/mp-manager/mp-manager/internal/serviceerrors"
	"github.com/mp-manager/mp-manager/internal/sources"
	"github.com/mp-manager/mp-manager/internal/storage"
	"github.com/mp-manager/mp-manager/pkg/api"
)

const (
	STAGE_MITOPROTEOME = "mitoproteome"
	STAGE_ACCESSIONS   = "gene_accessions"
	STAGE_UNIPROT      = "uniprot"
	STAGE_STRUCTURES   = "pdb_structures"
	STAGE_CHAINS       = "pdb_chains"
)

type Pipeline struct {
	config  *config.Config
	store   abstractions.Storage
	sources *sources.Sources
	metrics *metrics.Metrics
}

// New creates a pipeline. m may be nil.
func New(cfg *config.Config, store abstractions.Storage, src *sources.Sources, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		config:  cfg,
		store:   store,
		sources: src,
		metrics: m,
	}
}

// keys handed from one stage to the next
type handoff struct {
	geneIDs    []int64
	accessions []string
	pdbIDs     []string
	chains     []api.ChainKey
}

type stage struct {
	name string
	run  func(ctx context.Context, tx abstractions.StageTx, keys *handoff) error
}

// Run executes every stage in order and stops at the first failure.
func (p *Pipeline) Run(ec *executioncontext.ExecutionContext) error {
	stages := []stage{
		{name: STAGE_MITOPROTEOME, run: p.mitoproteome},
		{name: STAGE_ACCESSIONS, run: p.geneAccessions},
		{name: STAGE_UNIPROT, run: p.uniprot},
		{name: STAGE_STRUCTURES, run: p.structures},
		{name: STAGE_CHAINS, run: p.chains},
	}

	keys := &handoff{}
	for i, s := range stages {
		if err := p.runStage(ec, s, keys); err != nil {
			ec.Logger.Debug("Stage failed", "stage", s.name, "index", i+1, "run_id", ec.RunID, "error", err.Error())
			return err
		}
	}

	p.metrics.MarkSuccess(time.Now())
	ec.Logger.Debug("Update completed", "run_id", ec.RunID, "stages", len(stages), "duration", time.Since(ec.StartedAt).String())
	return nil
}

func (p *Pipeline) runStage(ec *executioncontext.ExecutionContext, s stage, keys *handoff) error {
	started := time.Now()
	attributes := map[string]string{
		"run_id": ec.RunID,
		"stage":  s.name,
	}
	err := otel.WithSpan(ec.Ctx, p.config, ec.Logger, "pipeline", s.name, attributes, func(ctx context.Context) error {
		stageEC := ec.WithContext(ctx)
		if err := stageEC.Ctx.Err(); err != nil {
			return err
		}
		store := p.store.WithContext(stageEC.Ctx).WithLogger(stageEC.Logger)
		return storage.WithTransaction(store, stageEC.Logger, s.name, func(tx abstractions.StageTx) error {
			return s.run(stageEC.Ctx, tx, keys)
		})
	})
	p.metrics.ObserveStage(s.name, started, err)
	if err == nil {
		ec.Logger.Debug("Stage committed", "stage", s.name, "duration", time.Since(started).String())
	}
	return err
}

func (p *Pipeline) replace(tx abstractions.StageTx, spec abstractions.TableSpec, rows iter.Seq2[abstractions.Row, error]) error {
	count, err := tx.ReplaceTable(spec, rows)
	if err != nil {
		return err
	}
	p.metrics.SetTableRows(spec.Name, count)
	return nil
}

// Stage 1: MitoProteome listing.
func (p *Pipeline) mitoproteome(ctx context.Context, tx abstractions.StageTx, keys *handoff) error {
	links := p.sources.MitoGeneLinks(ctx)
	err := p.replace(tx, abstractions.MitoproteomeTable, toRows(links.All(), func(l api.MitoGeneLink) abstractions.Row {
		return abstractions.Row{l.MitoID, l.GeneID}
	}))
	if err != nil {
		return err
	}

	keys.geneIDs, err = collectColumn(tx.DistinctValues(abstractions.TABLE_MITOPROTEOME, "gene_id"), asInt64)
	return err
}

// Stage 2: gene id to UniProt accession.
func (p *Pipeline) geneAccessions(ctx context.Context, tx abstractions.StageTx, keys *handoff) error {
	links := p.sources.GeneAccessions(ctx, slices.Values(keys.geneIDs))
	err := p.replace(tx, abstractions.GeneUniprotTable, toRows(links.All(), func(l api.GeneUniprotLink) abstractions.Row {
		return abstractions.Row{l.GeneID, l.UniprotAC}
	}))
	if err != nil {
		return err
	}

	keys.accessions, err = collectColumn(tx.DistinctValues(abstractions.TABLE_GENE_UNIPROT, "uniprot_ac"), asString)
	return err
}

// Stage 3: UniProt info, PDB ids and KEGG ids of every accession.
func (p *Pipeline) uniprot(ctx context.Context, tx abstractions.StageTx, keys *handoff) error {
	info := p.sources.Info(ctx, slices.Values(keys.accessions))
	err := p.replace(tx, abstractions.UniprotInfoTable, toRows(info.All(), func(i api.UniprotInfo) abstractions.Row {
		return abstractions.Row{i.UniprotAC, i.ProteinNames, i.GeneNames, i.Organism}
	}))
	if err != nil {
		return err
	}

	pdbLinks := p.sources.PdbIDs(ctx, slices.Values(keys.accessions))
	err = p.replace(tx, abstractions.UniprotPdbTable, toRows(pdbLinks.All(), func(l api.UniprotPdbLink) abstractions.Row {
		return abstractions.Row{l.UniprotAC, l.PDBID}
	}))
	if err != nil {
		return err
	}

	keggLinks := p.sources.KeggIDs(ctx, slices.Values(keys.accessions))
	err = p.replace(tx, abstractions.UniprotKeggTable, toRows(keggLinks.All(), func(l api.UniprotKeggLink) abstractions.Row {
		return abstractions.Row{l.UniprotAC, l.KeggID}
	}))
	if err != nil {
		return err
	}

	keys.pdbIDs, err = collectColumn(tx.DistinctValues(abstractions.TABLE_UNIPROT_PDB, "pdb_id"), asString)
	return err
}

// Stage 4: structure info, one row per chain.
func (p *Pipeline) structures(ctx context.Context, tx abstractions.StageTx, keys *handoff) error {
	structures := p.sources.Structures(ctx, slices.Values(keys.pdbIDs))
	err := p.replace(tx, abstractions.PdbInfoTable, toRows(api.FlattenStructures(structures.All()), func(s api.PdbStructureInfo) abstractions.Row {
		return abstractions.Row{s.PDBID, abstractions.Nullable(s.Resolution), s.EntityID, s.ChainID}
	}))
	if err != nil {
		return err
	}

	pairs, err := batch.Collect(tx.DistinctValues(abstractions.TABLE_PDB_INFO, "pdb_id", "chain_id"))
	if err != nil {
		return err
	}
	keys.chains = make([]api.ChainKey, 0, len(pairs))
	for _, pair := range pairs {
		pdbID, err := asString(pair[0])
		if err != nil {
			return err
		}
		chainID, err := asString(pair[1])
		if err != nil {
			return err
		}
		keys.chains = append(keys.chains, api.ChainKey{PDBID: pdbID, ChainID: chainID})
	}
	return nil
}

// Stage 5: chain descriptions.
func (p *Pipeline) chains(ctx context.Context, tx abstractions.StageTx, keys *handoff) error {
	chains := p.sources.Chains(ctx, slices.Values(keys.chains))
	return p.replace(tx, abstractions.ChainInfoTable, toRows(chains.All(), func(c api.ChainInfo) abstractions.Row {
		return abstractions.Row{c.PDBID, c.ChainID, c.Length, abstractions.Nullable(c.UniprotAC)}
	}))
}

func toRows[T any](seq iter.Seq2[T, error], fn func(T) abstractions.Row) iter.Seq2[abstractions.Row, error] {
	return func(yield func(abstractions.Row, error) bool) {
		for item, err := range seq {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(fn(item), nil) {
				return
			}
		}
	}
}

func collectColumn[T any](rows iter.Seq2[abstractions.Row, error], convert func(any) (T, error)) ([]T, error) {
	var values []T
	for row, err := range rows {
		if err != nil {
			return nil, err
		}
		value, err := convert(row[0])
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, serviceerrors.NewStoreError("read back", fmt.Errorf("unexpected integer value %v (%T)", v, v))
	}
}

func asString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", serviceerrors.NewStoreError("read back", fmt.Errorf("unexpected text value %v (%T)", v, v))
	}
}
