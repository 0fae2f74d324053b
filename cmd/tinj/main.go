// Command tinj runs and inspects a transient injection node.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tinj/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
