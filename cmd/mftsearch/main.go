// Command mftsearch is the reference external collaborator for the core
// indexing and query engine: a CLI that links the module as a library and
// issues search/rebuild/monitor/warmup calls through internal/ifaces.Engine,
// never reading artifact files directly.
package main

import (
	"fmt"
	"os"

	"github.com/halsted/mftsearch/cmd/mftsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
