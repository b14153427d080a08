package main

import (
	"os"

	"soroban-dao/cmd/dao/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
