package config

import (
	"fmt"
	"io"
	"os"
)

var (
	exitWriter io.Writer = os.Stderr
	exitFunc             = os.Exit
)

// Exitf writes a formatted error message to stderr and exits with code 1.
// Entry points use it for configuration and startup failures.
func Exitf(format string, args ...any) {
	fmt.Fprintf(exitWriter, format+"\n", args...)
	exitFunc(1)
}
