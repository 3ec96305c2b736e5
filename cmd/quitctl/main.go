// quitctl is the offline-first command line client. It keeps check-ins in a
// local SQLite or Badger store and, when a database is configured, commits
// them to the same Postgres tier the API server uses.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
