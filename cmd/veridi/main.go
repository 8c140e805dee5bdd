// Command veridi runs the green hydrogen credit ledger and compliance engine.
package main

import (
	"os"

	"github.com/veridichain/veridi/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
