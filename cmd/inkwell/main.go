// Command inkwell is the local-first notes daemon and CLI.
package main

import (
	"os"

	"github.com/inkwell-notes/inkwell/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
