//go:build !unix

package fido

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

const waitDelay = 2 * time.Second

// processGroupExecutor falls back to killing only the command itself on
// platforms without process groups.
type processGroupExecutor struct{}

func (processGroupExecutor) Output(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.WaitDelay = waitDelay
	err := cmd.Run()
	return stdout.Bytes(), err
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}
