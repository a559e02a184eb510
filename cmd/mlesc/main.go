package main

import (
	"os"

	"mlesc/cmd/mlesc/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
