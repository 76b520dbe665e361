// Package cli provides output formatting and the HTTP client for the titlenorm CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/hyperjump/titlenorm/internal/models"
	"github.com/hyperjump/titlenorm/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one "<title> - <classification>" line per query.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// maxColumn bounds query and title columns in text output.
const maxColumn = 48

// ParseOutputFormat validates a -output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
}

// WriteMatchResults writes match results to w in the given format.
func WriteMatchResults(w io.Writer, response *models.MatchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for _, r := range response.Results {
			if _, err := fmt.Fprintln(w, r.Standardized()); err != nil {
				return err
			}
		}
		return nil
	default:
		return writeMatchResultsText(w, response)
	}
}

func writeMatchResultsText(w io.Writer, response *models.MatchResponse) error {
	zero := 0
	for _, r := range response.Results {
		if r.Score == 0 {
			zero++
		}
	}
	fmt.Fprintf(w, "\nMatched %d queries in %dms (%d without overlap)\n", len(response.Results), response.QueryTime, zero)
	if response.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", response.RunID)
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "QUERY\tTITLE\tCLASSIFICATION\tCODE\tSCORE")
	for _, r := range response.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.4f\n",
			utils.Truncate(r.Query, maxColumn),
			utils.Truncate(r.Title, maxColumn),
			r.Classification,
			dash(r.Code),
			r.Score)
	}
	return tw.Flush()
}

// WriteStandardized writes one standardized value per line, or a JSON array.
func WriteStandardized(w io.Writer, values []string, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, models.StandardizeResponse{Values: values})
	}
	for _, v := range values {
		if _, err := fmt.Fprintln(w, v); err != nil {
			return err
		}
	}
	return nil
}

// WriteLookup writes a reverse lookup result.
func WriteLookup(w io.Writer, lookup *models.LookupResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, lookup)
	case OutputCompact:
		_, err := fmt.Fprintln(w, lookup.Classification)
		return err
	default:
		known := "known"
		if !lookup.Known {
			known = "not in catalog"
		}
		if _, err := fmt.Fprintf(w, "%s -> %s (code %s, %s)\n", lookup.Title, lookup.Classification, dash(lookup.Code), known); err != nil {
			return err
		}
		if len(lookup.DidYouMean) > 0 {
			_, err := fmt.Fprintf(w, "did you mean: %s\n", strings.Join(lookup.DidYouMean, ", "))
			return err
		}
		return nil
	}
}

// WriteRuns writes a page of recorded runs.
func WriteRuns(w io.Writer, list *models.RunList, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, list)
	}
	fmt.Fprintf(w, "%d run(s) recorded\n\n", list.Total)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSOURCE\tQUERIES\tZERO-SCORE")
	for _, run := range list.Runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n",
			run.ID,
			run.CreatedAt.Format("2006-01-02 15:04:05"),
			utils.Truncate(run.Source, maxColumn),
			run.QueryCount,
			run.ZeroScoreCount)
	}
	return tw.Flush()
}

// WriteStatus writes the index status.
func WriteStatus(w io.Writer, st *models.IndexStatus, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "loaded:          %t\n", st.Loaded)
	if st.Loaded {
		fmt.Fprintf(w, "documents:       %d   # alias titles in the corpus\n", st.Documents)
		fmt.Fprintf(w, "terms:           %d   # vocabulary size\n", st.Terms)
		fmt.Fprintf(w, "nonzeros:        %d   # stored TF-IDF weights\n", st.NonZeros)
		fmt.Fprintf(w, "catalog_entries: %d\n", st.Entries)
		fmt.Fprintf(w, "fingerprint:     %s\n", st.Fingerprint)
		fmt.Fprintf(w, "loaded_at:       %s\n", st.LoadedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(w, "index_path:      %s\n", st.IndexPath)
	fmt.Fprintf(w, "index_bytes:     %d\n", st.IndexBytes)
	if st.CatalogPath != "" {
		fmt.Fprintf(w, "catalog_path:    %s\n", st.CatalogPath)
	} else {
		fmt.Fprintf(w, "catalog_path:    (bundled)\n")
	}
	fmt.Fprintf(w, "cache_hits:      %d\n", st.CacheHits)
	_, err := fmt.Fprintf(w, "cache_misses:    %d\n", st.CacheMisses)
	return err
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
