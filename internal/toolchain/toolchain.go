// Package toolchain runs the external NEURON and arbor build commands.
//
// Commands are configured as plain strings split on whitespace; shell
// quoting is not interpreted.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/roach88/glia/internal/asset"
	"github.com/roach88/glia/internal/config"
	"github.com/roach88/glia/internal/glia"
	"github.com/roach88/glia/internal/hash"
)

// outputTail is how much command output a CommandError keeps.
const outputTail = 4096

// CommandError reports an external command that could not run or exited
// non-zero.
type CommandError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	if e.ExitCode != 0 {
		msg := fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
		if e.Output != "" {
			msg += ": " + lastLine(e.Output)
		}
		return msg
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// IsCommandError reports whether err is a CommandError.
func IsCommandError(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce)
}

// Exec builds with external commands.
type Exec struct {
	Library   string
	Catalogue string
	// DescribeCommand prints the build configuration catalogues depend on.
	DescribeCommand string

	// Output receives command output of verbose builds.
	Output io.Writer
	Logger *slog.Logger
}

var (
	_ glia.Compiler  = (*Exec)(nil)
	_ glia.Toolchain = (*Exec)(nil)
)

// FromConfig returns an Exec running the configured commands.
func FromConfig(c config.ToolchainConfig, logger *slog.Logger) *Exec {
	return &Exec{
		Library:         c.Library,
		Catalogue:       c.Catalogue,
		DescribeCommand: c.Describe,
		Logger:          logger,
	}
}

// CompileLibrary runs the library command inside dir.
func (e *Exec) CompileLibrary(ctx context.Context, dir string, mods []*asset.Mod) error {
	e.logger().Debug("running library compiler", "command", e.Library, "dir", dir, "mods", len(mods))
	_, err := e.run(ctx, dir, e.Library, nil, true)
	return err
}

// BuildCatalogue runs the catalogue command inside outDir and returns the
// catalogue it produced.
func (e *Exec) BuildCatalogue(ctx context.Context, pkg *asset.Package, modDir, outDir string, opts glia.BuildOptions) (string, error) {
	args := []string{pkg.Name, modDir}
	if opts.Verbose {
		args = append(args, "--verbose")
	}
	if opts.Debug {
		args = append(args, "--debug", outDir)
	}
	if opts.GPU != "" {
		args = append(args, "--gpu", opts.GPU)
	}
	if _, err := e.run(ctx, outDir, e.Catalogue, args, opts.Verbose); err != nil {
		return "", err
	}
	return filepath.Join(outDir, pkg.Name+"-catalogue.so"), nil
}

// Describe returns the output of the describe command or, without one, a
// fingerprint of the catalogue command's executable.
func (e *Exec) Describe(ctx context.Context) (string, error) {
	if e.DescribeCommand != "" {
		out, err := e.run(ctx, "", e.DescribeCommand, nil, false)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(out), nil
	}

	name, _ := split(e.Catalogue)
	path, err := exec.LookPath(name)
	if err != nil {
		return "", &CommandError{Command: name, Err: err}
	}
	digest, err := hash.File(path)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", path, err)
	}
	return name + "@" + digest, nil
}

func (e *Exec) run(ctx context.Context, dir, command string, extra []string, stream bool) (string, error) {
	name, args := split(command)
	if name == "" {
		return "", &CommandError{Command: command, Err: errors.New("no command configured")}
	}
	args = append(args, extra...)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var out bytes.Buffer
	var w io.Writer = &out
	if stream && e.Output != nil {
		w = io.MultiWriter(&out, e.Output)
	}
	cmd.Stdout = w
	cmd.Stderr = w

	if err := cmd.Run(); err != nil {
		ce := &CommandError{Command: name, Output: tail(out.String()), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			ce.ExitCode = exitErr.ExitCode()
		}
		return "", ce
	}
	return out.String(), nil
}

func (e *Exec) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e.Logger
}

func split(command string) (string, []string) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

func tail(s string) string {
	if len(s) <= outputTail {
		return s
	}
	return s[len(s)-outputTail:]
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
