// Package testhelper provides testdata loading and fake platform servers
// for the LMS and Reporting client tests.
package testhelper

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// LoadTestdata loads a testdata file from the caller's testdata directory.
func LoadTestdata(t testing.TB, filename string) []byte {
	t.Helper()

	testdataPath := filepath.Join("testdata", filename)

	data, err := os.ReadFile(testdataPath) //nolint:gosec // Test file paths are controlled
	if err != nil {
		t.Fatalf("Failed to load testdata file %s: %v", testdataPath, err)
	}

	return data
}

// LoadJSON loads and unmarshals JSON from a testdata file.
func LoadJSON(t testing.TB, filename string, v any) {
	t.Helper()

	data := LoadTestdata(t, filename)

	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("Failed to unmarshal JSON from testdata file %s: %v", filename, err)
	}
}

// Envelope wraps v under key, the way the platforms frame responses.
func Envelope(t testing.TB, key string, v any) []byte {
	t.Helper()

	data, err := json.Marshal(map[string]any{key: v})
	if err != nil {
		t.Fatalf("Failed to marshal %s envelope: %v", key, err)
	}
	return data
}
