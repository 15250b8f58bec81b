package runner

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/identity"
	"github.com/arthur-debert/archsetup/pkg/logging"
	"github.com/rs/zerolog"
)

// Command describes one subprocess invocation
type Command struct {
	Name string
	Args []string
	// Dir is the working directory; empty means the current one
	Dir string
	// Env is laid over the inherited environment
	Env []string
	// As runs the command with the user's credentials; nil runs it as the
	// process itself
	As *identity.User
	// Mutates marks commands that change the system
	Mutates bool
}

// String renders the command line the way a user would type it
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// User returns the name of the account the command runs as
func (c Command) User() string {
	if c.As == nil {
		return "root"
	}
	return c.As.Name
}

// Runner executes commands
type Runner interface {
	// Run executes the command, streaming its output
	Run(ctx context.Context, cmd Command) error
	// Output executes the command and returns its stdout
	Output(ctx context.Context, cmd Command) ([]byte, error)
	// LookPath resolves an executable on PATH
	LookPath(name string) (string, error)
}

// Options configures an ExecRunner
type Options struct {
	DryRun bool
	Stdout io.Writer
	Stderr io.Writer
}

// ExecRunner runs commands with os/exec
type ExecRunner struct {
	logger zerolog.Logger
	dryRun bool
	stdout io.Writer
	stderr io.Writer
}

// New creates an ExecRunner
func New(opts Options) *ExecRunner {
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &ExecRunner{
		logger: logging.GetLogger("runner"),
		dryRun: opts.DryRun,
		stdout: stdout,
		stderr: stderr,
	}
}

// DryRun reports whether mutating commands are skipped
func (r *ExecRunner) DryRun() bool {
	return r.dryRun
}

// Run executes cmd with its output streamed to the runner's writers
func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	if cmd.Name == "" {
		return errors.New(errors.ErrInvalidInput, "command requires a name")
	}

	logging.LogCommand(r.logger, cmd.Name, cmd.Args, cmd.User())

	if r.dryRun && cmd.Mutates {
		r.logger.Info().
			Str("command", cmd.String()).
			Str("user", cmd.User()).
			Msg("Dry run mode - command would be executed")
		return nil
	}

	c := r.build(ctx, cmd)
	c.Stdout = r.stdout
	c.Stderr = r.stderr

	if err := c.Run(); err != nil {
		return r.failure(cmd, err, "")
	}

	r.logger.Info().
		Str("command", cmd.String()).
		Str("user", cmd.User()).
		Msg("Command executed successfully")
	return nil
}

// Output executes cmd and returns its stdout. Stderr is captured for the
// error report. Mutating commands are skipped in dry-run mode and yield no
// output.
func (r *ExecRunner) Output(ctx context.Context, cmd Command) ([]byte, error) {
	if cmd.Name == "" {
		return nil, errors.New(errors.ErrInvalidInput, "command requires a name")
	}

	logging.LogCommand(r.logger, cmd.Name, cmd.Args, cmd.User())

	if r.dryRun && cmd.Mutates {
		r.logger.Info().
			Str("command", cmd.String()).
			Msg("Dry run mode - command would be executed")
		return nil, nil
	}

	var stdout, stderr bytes.Buffer
	c := r.build(ctx, cmd)
	c.Stdout = &stdout
	c.Stderr = &stderr

	if err := c.Run(); err != nil {
		return stdout.Bytes(), r.failure(cmd, err, stderr.String())
	}

	r.logger.Trace().
		Str("command", cmd.String()).
		Str("output", stdout.String()).
		Msg("Command stdout")
	return stdout.Bytes(), nil
}

// LookPath resolves name on the process PATH
func (r *ExecRunner) LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrCommandNotFound, "%s not found in PATH", name)
	}
	return path, nil
}

func (r *ExecRunner) build(ctx context.Context, cmd Command) *exec.Cmd {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir

	env := os.Environ()
	if cmd.As != nil {
		env = append(withoutIdentity(env), cmd.As.Env()...)
		if !isProcessUser(cmd.As) {
			c.SysProcAttr = &syscall.SysProcAttr{Credential: cmd.As.Credential()}
		}
	}
	c.Env = append(env, cmd.Env...)
	return c
}

func (r *ExecRunner) failure(cmd Command, err error, stderr string) error {
	var execErr *exec.Error
	if stderrors.As(err, &execErr) {
		return errors.Wrapf(err, errors.ErrCommandNotFound, "%s not found in PATH", cmd.Name).
			WithDetail("command", cmd.String())
	}

	status := exitStatus(err)
	r.logger.Error().
		Err(err).
		Str("command", cmd.String()).
		Str("user", cmd.User()).
		Int("status", status).
		Str("stderr", stderr).
		Msg("Command execution failed")

	return errors.Wrapf(err, errors.ErrCommandExecute, "%s exited with status %d", cmd.Name, status).
		WithDetail("command", cmd.String()).
		WithDetail("user", cmd.User()).
		WithExitStatus(status)
}

// exitStatus extracts the status of a failed process. A process killed by a
// signal reports 128+signal, as shells do.
func exitStatus(err error) int {
	var exitErr *exec.ExitError
	if !stderrors.As(err, &exitErr) {
		return 1
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	if code := exitErr.ExitCode(); code > 0 {
		return code
	}
	return 1
}

// isProcessUser reports whether u is who the process already runs as, in
// which case there are no credentials to switch to
func isProcessUser(u *identity.User) bool {
	return int(u.UID) == os.Geteuid() && int(u.GID) == os.Getegid()
}

// withoutIdentity drops the variables that would make a user-scoped
// subprocess believe it is still root
func withoutIdentity(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		key, _, _ := strings.Cut(kv, "=")
		switch key {
		case "HOME", "USER", "LOGNAME", "MAIL":
			continue
		}
		out = append(out, kv)
	}
	return out
}

var _ Runner = (*ExecRunner)(nil)
