package main

import (
	"os"

	"github.com/rustyeddy/tradecore/cmd/terminal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
