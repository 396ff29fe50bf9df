package main

import (
	"os"

	"keuangan/cmd/keuangan-cli/cmd"
	"keuangan/internal/cli"
)

func main() {
	cli.LoadEnvFile()
	if err := cmd.NewRootCmd(cmd.OpenFromConfig).Execute(); err != nil {
		os.Exit(1)
	}
}
