// Command brix is the command line for the brix artifact sync core.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/brix/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "brix: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
