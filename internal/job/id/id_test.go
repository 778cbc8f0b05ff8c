package id

import (
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	id := Generate()

	// Check format
	if !strings.HasPrefix(id, "run-") {
		t.Errorf("expected ID to start with 'run-', got %s", id)
	}
	if len(id) != len("run-")+size {
		t.Errorf("expected ID length %d, got %d (%s)", len("run-")+size, len(id), id)
	}
	if strings.Trim(strings.TrimPrefix(id, "run-"), alphabet) != "" {
		t.Errorf("ID %s contains characters outside the alphabet", id)
	}

	// Check uniqueness
	id2 := Generate()
	if id == id2 {
		t.Error("expected different IDs for consecutive calls")
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := Generate()
		if seen[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}
