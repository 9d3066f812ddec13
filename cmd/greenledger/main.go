// Package main provides the greenledger CLI: recording green states,
// verifying post-commit archives, and rolling the integration branch back to
// a verified green target. See docs/ROLLBACK.md for the governance this tool
// automates.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUserError)
	}
}
