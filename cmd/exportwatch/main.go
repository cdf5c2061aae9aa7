// Command exportwatch routes report exports from download folders into the
// automation tree.
package main

import (
	"fmt"
	"os"

	"exportwatch/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
