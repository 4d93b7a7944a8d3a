package main

import (
	"os"

	"metadata-ingestion/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
