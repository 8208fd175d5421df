// File: cmd/main_test.go
package cmd

import (
	"bytes"
	"context"
	"testing"
)

// executeCommand runs a pristine command tree with args and returns what it wrote to
// stdout and stderr.
func executeCommand(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	// Keep the host environment from redirecting tests to a real endpoint.
	t.Setenv("ASSISTANT_API_URL", "")

	root := NewRootCommand()
	var outBuf, errBuf bytes.Buffer
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetArgs(args)

	err = root.ExecuteContext(context.Background())
	return outBuf.String(), errBuf.String(), err
}
