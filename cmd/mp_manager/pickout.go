package main

import (
	"errors"
	"iter"

	"github.com/mp-manager/mp-manager/internal/export"
	"github.com/mp-manager/mp-manager/internal/projection"
	"github.com/mp-manager/mp-manager/pkg/api"
	"github.com/spf13/cobra"
)

type pickoutOptions struct {
	all  bool
	dest string
}

func newPickoutCommand(opts *rootOptions) *cobra.Command {
	pickout := &pickoutOptions{}
	command := &cobra.Command{
		Use:   "pickout [PDBID_CHAIN ...]",
		Short: "Write the protein view for the given chains as CSV",
		Long: "Write the protein view as CSV. Chains are given as PDBID_CHAIN, for example 1A02_A.\n" +
			"The destination may be a local file or s3://bucket/key, an existing destination is never replaced.",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, a.Close())
			}()

			store := a.store.WithContext(cmd.Context())
			var rows iter.Seq2[api.ProjectionRow, error]
			if pickout.all {
				rows = projection.All(store)
			} else {
				rows = projection.Pickout(store, projection.ParseChainRefs(args, a.logger))
			}

			return export.New(a.config.Export, a.logger).Export(cmd.Context(), pickout.dest, cmd.OutOrStdout(), rows)
		},
	}
	command.Flags().BoolVarP(&pickout.all, "all", "a", false, "Pick out every chain")
	command.Flags().StringVarP(&pickout.dest, "dest", "d", "", "Destination file, standard output when empty")
	return command
}
