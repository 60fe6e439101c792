package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// CommandError describes a command that exited non-zero or wrote an error.
// errors.Is matches it against ErrPermissionDenied or ErrNotFound when the
// command's error output says so.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
	kind     error
}

func (e *CommandError) Error() string {
	msg := firstLine(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s (exit %d): %s", e.Command, e.ExitCode, msg)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel the error output was classified as.
func (e *CommandError) Is(target error) bool {
	return e.kind != nil && target == e.kind
}

// Run executes name with args and returns trimmed stdout.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if name == "" {
		return nil, errors.New("no command supplied")
	}

	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", name, ctxErr)
		}
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", name, ErrUnsupported)
		}
		return nil, newCommandError(name, code, stderr.String()+stdout.String(), err)
	}

	return bytes.TrimSpace(stdout.Bytes()), nil
}

// PowerShell runs script with Windows PowerShell. The script runs with
// $ErrorActionPreference = 'Stop' so cmdlet errors exit non-zero, and with
// UTF-8 output so JSON survives the console code page.
func (r ExecRunner) PowerShell(ctx context.Context, script string) ([]byte, error) {
	return r.Run(ctx,
		"powershell.exe",
		"-NoLogo",
		"-NoProfile",
		"-NonInteractive",
		"-ExecutionPolicy", "Bypass",
		"-Command",
		powerShellPrelude+script,
	)
}

const powerShellPrelude = "$ErrorActionPreference = 'Stop'\n" +
	"$ProgressPreference = 'SilentlyContinue'\n" +
	"[Console]::OutputEncoding = [System.Text.Encoding]::UTF8\n"

func newCommandError(name string, code int, output string, err error) *CommandError {
	return &CommandError{
		Command:  name,
		ExitCode: code,
		Stderr:   strings.TrimSpace(output),
		Err:      err,
		kind:     classifyOutput(output),
	}
}

// classifyOutput maps well-known Windows tool messages to sentinel errors.
func classifyOutput(output string) error {
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "access is denied"),
		strings.Contains(lower, "permissiondenied"),
		strings.Contains(lower, "unauthorizedaccess"),
		strings.Contains(lower, "requires elevation"),
		strings.Contains(lower, "administrator privileges"):
		return ErrPermissionDenied
	case strings.Contains(lower, "objectnotfound"),
		strings.Contains(lower, "no msft_"),
		strings.Contains(lower, "does not exist"),
		strings.Contains(lower, "cannot find"):
		return ErrNotFound
	default:
		return nil
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}
