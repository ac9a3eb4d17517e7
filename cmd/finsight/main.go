package main

import (
	"os"

	"github.com/shreyanshxt/FinSight/cmd/finsight/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
