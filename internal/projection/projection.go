// Package projection answers pickout queries over the joined protein view.
package projection

import (
	"iter"
	"log/slog"
	"strings"

	"github.com/mp-manager/mp-manager/internal/abstractions"
	"github.com/mp-manager/mp-manager/pkg/api"
)

// ParseChainRefs turns "PDBID_CHAIN" arguments into chain keys. Duplicates are
// collapsed and arguments without exactly one underscore are skipped, they can
// never match a row.
func ParseChainRefs(refs []string, logger *slog.Logger) []api.ChainKey {
	seen := make(map[api.ChainKey]struct{}, len(refs))
	keys := make([]api.ChainKey, 0, len(refs))
	for _, ref := range refs {
		parts := strings.Split(ref, "_")
		if len(parts) != 2 {
			logger.Warn("Ignoring chain identifier, expected PDBID_CHAIN", "chain", ref)
			continue
		}
		key := api.ChainKey{PDBID: parts[0], ChainID: parts[1]}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

// All streams every row of the view.
func All(store abstractions.Storage) iter.Seq2[api.ProjectionRow, error] {
	return store.Projection()
}

// Pickout streams the rows whose (pdb_id, chain_id) is one of chains. The
// match is exact and case sensitive.
func Pickout(store abstractions.Storage, chains []api.ChainKey) iter.Seq2[api.ProjectionRow, error] {
	wanted := make(map[api.ChainKey]struct{}, len(chains))
	for _, chain := range chains {
		wanted[chain] = struct{}{}
	}
	return func(yield func(api.ProjectionRow, error) bool) {
		if len(wanted) == 0 {
			return
		}
		for row, err := range store.Projection() {
			if err != nil {
				yield(api.ProjectionRow{}, err)
				return
			}
			if _, ok := wanted[row.Chain()]; !ok {
				continue
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}
