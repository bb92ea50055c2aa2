package main

import (
	"os"

	"github.com/saadkhan2003/masjid-ledger/cmd/ledgerctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
