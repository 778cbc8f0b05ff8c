// Package id provides unique identifier generation for split runs.
package id

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	size     = 12
)

// Generate creates a new unique run ID.
// Format: run-<nanoid>
// Example: run-4f9kq2x7ab0c
func Generate() string {
	random, err := gonanoid.Generate(alphabet, size)
	if err != nil {
		// Fallback to timestamp only if the random source fails
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return "run-" + random
}
