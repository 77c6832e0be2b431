// Command dbconn inspects and queries the datasources of a go-datasource configuration.
package main

import (
	"fmt"
	"os"

	"github.com/gaborage/go-datasource/internal/commands"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := commands.NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
