package main

import (
	"os"

	"github.com/wasm-oj/wark/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
