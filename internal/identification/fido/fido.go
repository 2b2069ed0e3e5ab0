package fido

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"medialog/internal/identification"
	"medialog/internal/services"
)

// EngineName is the name outcomes are recorded under.
const EngineName = "fido"

const (
	fieldPUID    = 2
	fieldName    = 3
	fieldMIME    = 7
	fieldVersion = 8
	minFields    = 9
)

// Executor runs a command to completion and returns its stdout.
type Executor interface {
	Output(ctx context.Context, binary string, args []string) ([]byte, error)
}

// Option configures the engine.
type Option func(*Engine)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(e *Engine) {
		if exec != nil {
			e.exec = exec
		}
	}
}

// Engine wraps the external fido command.
type Engine struct {
	binary  string
	args    []string
	timeout time.Duration
	exec    Executor
}

var _ identification.Engine = (*Engine)(nil)

// New constructs the engine. The staged path is appended after args.
func New(binary string, args []string, timeout time.Duration, opts ...Option) (*Engine, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, services.Wrap(services.ErrEngineInit, "fido", "configure", "binary required", nil)
	}
	if timeout <= 0 {
		return nil, services.Wrap(services.ErrEngineInit, "fido", "configure", "timeout must be positive", nil)
	}
	engine := &Engine{
		binary:  binary,
		args:    append([]string(nil), args...),
		timeout: timeout,
		exec:    processGroupExecutor{},
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

func (e *Engine) Name() string { return EngineName }

// Identify runs the command with the staged file's absolute path. The exit
// status is not inspected; only stdout decides the result.
func (e *Engine) Identify(ctx context.Context, in identification.Input) ([]identification.Candidate, error) {
	path, err := filepath.Abs(in.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve staged path: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := append(append([]string(nil), e.args...), path)
	stdout, runErr := e.exec.Output(runCtx, e.binary, args)
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, services.Wrap(services.ErrTimeout, "fido", "run",
			fmt.Sprintf("no response within %s", e.timeout), runErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if runErr != nil && len(stdout) == 0 && !isExitError(runErr) {
		return nil, fmt.Errorf("run %s: %w", e.binary, runErr)
	}
	return ParseResponse(stdout)
}

// ParseResponse maps the first output line to at most one candidate.
func ParseResponse(stdout []byte) ([]identification.Candidate, error) {
	line := string(stdout)
	if idx := strings.IndexAny(line, "\r\n"); idx >= 0 {
		line = line[:idx]
	}
	if !strings.HasPrefix(line, "OK") {
		return nil, nil
	}

	reader := csv.NewReader(strings.NewReader(line))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	fields, err := reader.Read()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, services.Wrap(services.ErrMalformedResponse, "fido", "parse", line, err)
	}
	if len(fields) < minFields {
		return nil, services.Wrap(services.ErrMalformedResponse, "fido", "parse",
			fmt.Sprintf("expected %d fields, got %d", minFields, len(fields)), nil)
	}

	return []identification.Candidate{{
		MIMERaw: stripQuotes(fields[fieldMIME]),
		Version: strings.TrimSpace(fields[fieldVersion]),
		Name:    stripQuotes(fields[fieldName]),
		PUID:    strings.TrimSpace(fields[fieldPUID]),
	}}, nil
}

// stripQuotes removes one enclosing quote pair left over after CSV decoding.
// Quotes inside or at one end of the value are data.
func stripQuotes(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		return value[1 : len(value)-1]
	}
	return value
}
