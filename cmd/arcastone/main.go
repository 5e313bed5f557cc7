// Command arcastone is an offline PDF vault with semantic search.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/arcastone/vault/internal/adapters/driving/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: loading .env: %v\n", err)
	}

	cli.SetVersion(version)
	cli.SetOpener(openVault)

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
