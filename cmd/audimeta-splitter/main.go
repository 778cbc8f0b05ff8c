// Package main provides the entry point for the audimeta-splitter CLI.
package main

import (
	"os"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
