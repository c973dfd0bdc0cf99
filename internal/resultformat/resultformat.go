// Package resultformat renders search results for the CLI, adapted from
// the teacher's discovery-result formatter: the same three output modes
// (table via text/tabwriter, JSON, YAML) over this module's own
// mftypes.SearchHit shape instead of a filesystem-walk result.
package resultformat

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/halsted/mftsearch/internal/mftypes"
)

// Response is the top-level result set a search command renders.
type Response struct {
	Query      string              `json:"query" yaml:"query"`
	Hits       []mftypes.SearchHit `json:"hits" yaml:"hits"`
	TotalFound int                 `json:"total_found" yaml:"total_found"`
	SearchTime time.Duration       `json:"search_time" yaml:"search_time"`
	Truncated  bool                `json:"truncated" yaml:"truncated"`
}

// FormatOutput writes response to w in the given format ("table", "json",
// or "yaml").
func FormatOutput(w io.Writer, response *Response, format string) error {
	switch format {
	case "json":
		return formatJSON(w, response)
	case "yaml":
		return formatYAML(w, response)
	case "table", "":
		return formatTable(w, response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func formatTable(w io.Writer, response *Response) error {
	if len(response.Hits) == 0 {
		fmt.Fprintln(w, "No files found matching the query.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "DRIVE\tPRIORITY\tPATH\n")
	fmt.Fprintf(tw, "-----\t--------\t----\n")

	hits := make([]mftypes.SearchHit, len(response.Hits))
	copy(hits, response.Hits)
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Priority > hits[j].Priority })

	for _, hit := range hits {
		fmt.Fprintf(tw, "%c:\t%d\t%s\n", hit.Drive, hit.Priority, hit.Path)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nFound %d file(s)", response.TotalFound)
	if response.Truncated {
		fmt.Fprintf(w, " (showing first %d)", len(response.Hits))
	}
	fmt.Fprintf(w, " in %v\n", response.SearchTime)
	return nil
}

func formatJSON(w io.Writer, response *Response) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

func formatYAML(w io.Writer, response *Response) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(response)
}
