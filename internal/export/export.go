// Package export writes pickout results as comma separated text to standard
// output, a new local file or a new S3 object.
package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"strings"

	"github.com/mp-manager/mp-manager/internal/config"
	"github.com/mp-manager/mp-manager/internal/serviceerrors"
	"github.com/mp-manager/mp-manager/pkg/api"
)

// Header is the first line of every export.
var Header = []string{"pdbid", "chain", "uniprot", "proteinnames", "genenames", "organism", "kegg", "mitoid", "entrezgeneid"}

const s3Scheme = "s3://"

type Exporter struct {
	config   *config.ExportConfig
	logger   *slog.Logger
	s3Client S3API
}

func New(cfg *config.ExportConfig, logger *slog.Logger) *Exporter {
	return &Exporter{
		config: cfg,
		logger: logger,
	}
}

// WithS3Client uses client for s3:// destinations instead of one built from
// the configuration.
func (e *Exporter) WithS3Client(client S3API) *Exporter {
	return &Exporter{
		config:   e.config,
		logger:   e.logger,
		s3Client: client,
	}
}

// Export writes rows to dest. An empty dest writes to stdout. Existing files
// and objects are never replaced, the check happens before rows is read.
func (e *Exporter) Export(ctx context.Context, dest string, stdout io.Writer, rows iter.Seq2[api.ProjectionRow, error]) error {
	var count int
	var err error
	switch {
	case dest == "":
		count, err = WriteCSV(stdout, rows)
	case strings.HasPrefix(dest, s3Scheme):
		count, err = e.exportS3(ctx, dest, rows)
	default:
		count, err = exportFile(dest, rows)
	}
	if err != nil {
		return err
	}
	e.logger.Debug("Exported rows", "destination", dest, "rows", count)
	return nil
}

// WriteCSV writes the header followed by one record per row.
func WriteCSV(w io.Writer, rows iter.Seq2[api.ProjectionRow, error]) (int, error) {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return 0, err
	}
	count := 0
	for row, err := range rows {
		if err != nil {
			writer.Flush()
			return count, err
		}
		if err := writer.Write(row.Record()); err != nil {
			return count, err
		}
		count++
	}
	writer.Flush()
	return count, writer.Error()
}

func exportFile(path string, rows iter.Seq2[api.ProjectionRow, error]) (int, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, serviceerrors.NewOutputConflictError(path)
		}
		return 0, fmt.Errorf("cannot create %s: %w", path, err)
	}

	count, err := WriteCSV(f, rows)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("cannot write %s: %w", path, closeErr)
	}
	if err != nil {
		// drop the partial export
		if removeErr := os.Remove(path); removeErr != nil {
			err = errors.Join(err, fmt.Errorf("cannot remove %s: %w", path, removeErr))
		}
	}
	return count, err
}
