package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/alessio/shellescape"
	"github.com/ethpandaops/gatewaybench/pkg/discovery"
	"github.com/sirupsen/logrus"
)

// Spawner starts a unit, redirects its output and waits for it to exit.
// A non-nil error means the unit could not be launched at all; a unit that
// ran and failed is reported through the exit code only.
type Spawner interface {
	Spawn(ctx context.Context, unit discovery.TestUnit, out io.Writer) (exitCode int, err error)
}

// InterpreterFunc returns the interpreter command for a unit path, or nil
// to execute the file directly.
type InterpreterFunc func(path string) []string

// ProcessSpawner runs units as child processes that inherit the parent
// environment, with the unit's directory as working directory.
type ProcessSpawner struct {
	log         logrus.FieldLogger
	interpreter InterpreterFunc
}

// Ensure interface compliance.
var _ Spawner = (*ProcessSpawner)(nil)

// NewProcessSpawner creates a spawner using interpreter to pick the command.
func NewProcessSpawner(log logrus.FieldLogger, interpreter InterpreterFunc) *ProcessSpawner {
	if interpreter == nil {
		interpreter = func(string) []string { return nil }
	}

	return &ProcessSpawner{
		log:         log.WithField("component", "spawner"),
		interpreter: interpreter,
	}
}

// Spawn runs the unit to completion. Combined stdout and stderr go to out.
func (p *ProcessSpawner) Spawn(ctx context.Context, unit discovery.TestUnit, out io.Writer) (int, error) {
	argv := p.command(unit.Path)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // units are operator supplied
	cmd.Dir = filepath.Dir(unit.Path)
	cmd.Env = os.Environ()
	cmd.Stdout = out
	cmd.Stderr = out

	p.log.WithFields(logrus.Fields{
		"unit":    unit.Name,
		"command": shellescape.QuoteCommand(argv),
	}).Debug("Spawning process")

	if err := cmd.Start(); err != nil {
		return 1, fmt.Errorf("starting process: %w", err)
	}

	return exitCode(cmd.Wait())
}

func (p *ProcessSpawner) command(path string) []string {
	interp := p.interpreter(path)
	if len(interp) == 0 {
		return []string{path}
	}

	argv := make([]string, 0, len(interp)+1)
	argv = append(argv, interp...)

	return append(argv, path)
}

// exitCode converts the result of Wait into a shell style exit status.
// A process killed by a signal reports 128 plus the signal number.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 1, fmt.Errorf("waiting for process: %w", err)
	}

	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal()), nil
	}

	return exitErr.ExitCode(), nil
}
