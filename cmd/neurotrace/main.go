package main

import (
	"fmt"
	"os"

	"github.com/ppiankov/neurotrace/internal/cli"
	"github.com/ppiankov/neurotrace/internal/errors"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
