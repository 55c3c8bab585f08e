// skywatch is the pipeline CLI: it starts workers that execute the stage
// activities and submits pipeline runs to the Temporal service.
package main

import (
	"fmt"
	"os"

	"github.com/ahrav/skywatch/cmd/skywatch/cli"
)

func main() {
	if err := cli.RootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
