package util

import (
	"fmt"
	"os"

	"github.com/Blopaa/Orn-sub000/pkg/config"
)

// AlignUp rounds n up to the next multiple of align.
func AlignUp(n, align int64) int64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

// Error prints a formatted error message and exits the program.
func Error(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "orn: \033[31merror:\033[0m ")
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintln(os.Stderr)
	os.Exit(1)
}

// Warn prints a formatted warning message if the corresponding warning is
// enabled in the configuration.
func Warn(cfg *config.Config, wt config.Warning, format string, args ...interface{}) {
	if cfg == nil || !cfg.IsWarningEnabled(wt) {
		return
	}
	warningName := cfg.Warnings[wt].Name
	fmt.Fprintf(os.Stderr, "orn: \033[33mwarning:\033[0m ")
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintf(os.Stderr, " [-W%s]\n", warningName)
}

// WriteFile writes the generated assembly to path in a single operation.
// There is no partial-write recovery; a failed write leaves whatever the OS
// left behind and reports the error.
func WriteFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("could not write '%s': %w", path, err)
	}
	return nil
}
