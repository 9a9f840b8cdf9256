// Command langbuddy serves the reading API and manages the vocabulary
// database from the command line.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
