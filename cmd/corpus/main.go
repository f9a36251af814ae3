// Command corpus loads a directory of notes and answers lookups, keyword
// searches and category listings from the command line or over HTTP.
package main

import (
	"fmt"
	"os"

	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/errors"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "corpus: %v\n", err)
		os.Exit(apperrors.ExitCode(err))
	}
}
