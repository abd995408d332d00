// Command pairledger runs the chat economy bot and its admin tools.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/pairledger/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pairledger:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
