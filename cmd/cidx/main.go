// Command cidx is the CLI surface over the indexing engine: index a
// project, query it, rebuild its auxiliary indexes, and check its
// consistency.
package main

import (
	"fmt"
	"os"

	"github.com/jsbattig/code-indexer-sub023/cmd/cidx/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
