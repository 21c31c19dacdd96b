// Command xmlindex is the CLI entrypoint for the per-project semantic XML
// index: it indexes a project directory, runs ad hoc searches against it,
// and reports the Service Facade's readiness status.
package main

import (
	"fmt"
	"log"
	"os"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("xmlindex\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		os.Exit(0)
	}

	log.SetOutput(os.Stderr)

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}
