package services

import (
	"fmt"
	"os"
	"testing"
)

// TestMain refuses to run the services tests outside GO_ENV=test
func TestMain(m *testing.M) {
	if env := os.Getenv("GO_ENV"); env != "test" {
		fmt.Fprintf(os.Stderr, "services tests must run with GO_ENV=test (current GO_ENV=%q)\n", env)
		os.Exit(1)
	}

	os.Exit(m.Run())
}
