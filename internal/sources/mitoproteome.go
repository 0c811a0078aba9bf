package sources

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mp-manager/mp-manager/internal/batch"
	"github.com/mp-manager/mp-manager/internal/serviceerrors"
	"github.com/mp-manager/mp-manager/pkg/api"
)

const sourceMitoProteome = "MitoProteome"

// MitoGeneLinks posts the listing form once and pairs every MitoProteome
// detail link with the Entrez gene link that follows it in the page.
func (s *Sources) MitoGeneLinks(ctx context.Context) *batch.Stream[api.MitoGeneLink] {
	return batch.NewStream(func(yield func(api.MitoGeneLink, error) bool) {
		fields := map[string]string{"nums": strconv.Itoa(s.config.MitoListingSize)}
		body, err := s.transport.PostMultipart(ctx, s.config.MitoTableURL, fields)
		if err != nil {
			yield(api.MitoGeneLink{}, err)
			return
		}
		links, err := parseMitoProteome(body, s.config.MitoDetailMarker, s.config.EntrezGeneMarker)
		if err != nil {
			yield(api.MitoGeneLink{}, err)
			return
		}
		for _, link := range links {
			if !yield(link, nil) {
				return
			}
		}
	})
}

// parseMitoProteome zips the texts of the detail anchors and the gene anchors
// in document order. Extra anchors of either kind are dropped.
func parseMitoProteome(body []byte, detailMarker string, geneMarker string) ([]api.MitoGeneLink, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &serviceerrors.ParseError{Source: sourceMitoProteome, Err: err}
	}

	var mitoIDs, geneIDs []string
	doc.Find("a").Each(func(_ int, anchor *goquery.Selection) {
		href, ok := anchor.Attr("href")
		if !ok {
			return
		}
		if strings.Contains(href, detailMarker) {
			mitoIDs = append(mitoIDs, strings.TrimSpace(anchor.Text()))
		}
		if strings.Contains(href, geneMarker) {
			geneIDs = append(geneIDs, strings.TrimSpace(anchor.Text()))
		}
	})

	n := min(len(mitoIDs), len(geneIDs))
	links := make([]api.MitoGeneLink, 0, n)
	for i := range n {
		geneID, err := strconv.ParseInt(geneIDs[i], 10, 64)
		if err != nil {
			return nil, serviceerrors.NewParseError(sourceMitoProteome, "gene id %q of %s: %w", geneIDs[i], mitoIDs[i], err)
		}
		links = append(links, api.MitoGeneLink{MitoID: mitoIDs[i], GeneID: geneID})
	}
	return links, nil
}
