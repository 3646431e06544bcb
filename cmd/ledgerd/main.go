package main

import (
	"os"

	"github.com/uccc/cloud-cost-ledger/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
