// Package symlink materializes configuration symlinks on behalf of the
// invoking user.
//
// Paths are resolved against the invoking user's home. Every change to the
// filesystem (missing parent directories, removing an old link, creating the
// new one) runs as a subprocess with that user's credentials, so a root run
// can only touch what the user could touch themselves.
package symlink

import (
	"context"
	"os"
	"path/filepath"

	"github.com/arthur-debert/archsetup/pkg/config"
	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/filesystem"
	"github.com/arthur-debert/archsetup/pkg/identity"
	"github.com/arthur-debert/archsetup/pkg/logging"
	"github.com/arthur-debert/archsetup/pkg/paths"
	"github.com/arthur-debert/archsetup/pkg/runner"
	"github.com/rs/zerolog"
)

// workDir is where link commands run; every path they get is absolute
const workDir = "/"

// Outcome is what Link did with a mapping
type Outcome string

const (
	OutcomeCreated       Outcome = "created"
	OutcomeReplaced      Outcome = "replaced"
	OutcomeMissingSource Outcome = "missing-source"
)

// State is what Inspect found at a mapping's target
type State string

const (
	StateLinked        State = "linked"
	StateMissingSource State = "missing-source"
	StateAbsent        State = "absent"
	StateStale         State = "stale"
	StateConflict      State = "conflict"
)

// Result describes one processed mapping
type Result struct {
	Source  string  `json:"source"`
	Target  string  `json:"target"`
	Outcome Outcome `json:"outcome"`
	// Previous is the destination of a replaced link
	Previous string `json:"previous,omitempty"`
}

// Status describes one inspected mapping
type Status struct {
	Source string `json:"source"`
	Target string `json:"target"`
	State  State  `json:"state"`
	// Current is the destination of a link found at the target
	Current string `json:"current,omitempty"`
}

// Linker creates links as the invoking user. The filesystem is only read
// directly; changes go through the runner.
type Linker struct {
	fs     filesystem.FS
	runner runner.Runner
	user   *identity.User
	dryRun bool
	logger zerolog.Logger
}

// NewLinker creates a Linker. With a nil user, paths resolve against
// $HOME and commands run as the process itself.
func NewLinker(fs filesystem.FS, r runner.Runner, user *identity.User, dryRun bool) *Linker {
	return &Linker{
		fs:     fs,
		runner: r,
		user:   user,
		dryRun: dryRun,
		logger: logging.GetLogger("symlink"),
	}
}

// Resolve returns the absolute source and target of a mapping
func (l *Linker) Resolve(m config.Link) (string, string) {
	return l.resolve(m.Source), l.resolve(m.Target)
}

func (l *Linker) resolve(path string) string {
	if l.user == nil {
		return paths.Resolve(path, "", nil)
	}
	return paths.Resolve(path, l.user.Home, l.user.Getenv)
}

// Link makes target point at source. A missing source is not an error: the
// mapping is skipped with OutcomeMissingSource. An existing link at the
// target is replaced; anything else there is left alone and reported as
// SYMLINK_EXISTS. A source the user cannot reach counts as missing.
func (l *Linker) Link(ctx context.Context, m config.Link) (Result, error) {
	source, target := l.Resolve(m)
	result := Result{Source: source, Target: target}
	logger := l.logger.With().Str("source", source).Str("target", target).Logger()

	exists, err := l.sourceExists(ctx, source)
	if err != nil {
		return result, err
	}
	if !exists {
		logger.Warn().Msg("Symlink source does not exist, skipping")
		result.Outcome = OutcomeMissingSource
		return result, nil
	}

	info, err := l.fs.Lstat(target)
	switch {
	case err == nil && filesystem.IsSymlink(info):
		previous, _ := l.fs.Readlink(target)
		result.Previous = previous
		result.Outcome = OutcomeReplaced
	case err == nil:
		kind := "file"
		if info.IsDir() {
			kind = "directory"
		}
		return result, errors.Newf(errors.ErrSymlinkExists,
			"%s exists and is not a symlink; move it away to link it to %s", target, source).
			WithDetail("target", target).
			WithDetail("type", kind)
	case os.IsNotExist(err):
		result.Outcome = OutcomeCreated
	default:
		return result, errors.Wrapf(err, errors.ErrFileAccess, "cannot access symlink target %s", target)
	}

	if l.dryRun {
		logger.Info().Str("outcome", string(result.Outcome)).Msg("Dry run mode - symlink would be created")
		return result, nil
	}

	if err := l.ensureParent(ctx, filepath.Dir(target)); err != nil {
		return result, err
	}

	if err := l.runner.Run(ctx, l.LinkCommand(source, target, result.Outcome == OutcomeReplaced)); err != nil {
		return result, errors.Wrapf(err, errors.ErrSymlinkCreate, "failed to create symlink %s -> %s", target, source).
			WithDetail("user", l.userName())
	}

	logger.Info().Str("outcome", string(result.Outcome)).Msg("Symlink created")
	return result, nil
}

// LinkCommand creates target pointing at source as the invoking user.
// Replacing swaps an existing link without following it.
func (l *Linker) LinkCommand(source, target string, replace bool) runner.Command {
	flags := "-s"
	if replace {
		flags = "-sfn"
	}
	return l.command("ln", flags, "--", source, target)
}

// MkdirCommand creates dir and its missing ancestors as the invoking user
func (l *Linker) MkdirCommand(dir string) runner.Command {
	return l.command("mkdir", "-p", "--", dir)
}

func (l *Linker) command(name string, args ...string) runner.Command {
	return runner.Command{
		Name:    name,
		Args:    args,
		Dir:     workDir,
		As:      l.user,
		Mutates: true,
	}
}

// Inspect reports the state of a mapping without changing anything
func (l *Linker) Inspect(m config.Link) (Status, error) {
	source, target := l.Resolve(m)
	status := Status{Source: source, Target: target}

	info, err := l.fs.Lstat(target)
	switch {
	case err == nil && filesystem.IsSymlink(info):
		current, err := l.fs.Readlink(target)
		if err != nil {
			return status, errors.Wrapf(err, errors.ErrFileAccess, "cannot read symlink %s", target)
		}
		status.Current = current
		if current == source {
			status.State = StateLinked
		} else {
			status.State = StateStale
		}
	case err == nil:
		status.State = StateConflict
	case os.IsNotExist(err):
		status.State = StateAbsent
	default:
		return status, errors.Wrapf(err, errors.ErrFileAccess, "cannot access symlink target %s", target)
	}

	if _, err := l.fs.Stat(source); os.IsNotExist(err) {
		status.State = StateMissingSource
	}
	return status, nil
}

// sourceExists checks the source with the invoking user's permissions.
// test exits 1 for a missing or unreachable path; anything else is a
// failure to run the check at all.
func (l *Linker) sourceExists(ctx context.Context, source string) (bool, error) {
	cmd := runner.Command{Name: "test", Args: []string{"-e", source}, Dir: workDir, As: l.user}
	err := l.runner.Run(ctx, cmd)
	switch {
	case err == nil:
		return true, nil
	case errors.IsErrorCode(err, errors.ErrCommandExecute) && errors.ExitCode(err) == 1:
		return false, nil
	default:
		return false, errors.Wrapf(err, errors.ErrFileAccess, "cannot check symlink source %s", source)
	}
}

// ensureParent creates dir and any missing ancestors as the invoking user
func (l *Linker) ensureParent(ctx context.Context, dir string) error {
	if _, err := l.fs.Lstat(dir); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot access %s", dir)
	}

	if err := l.runner.Run(ctx, l.MkdirCommand(dir)); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "failed to create %s", dir).
			WithDetail("user", l.userName())
	}
	l.logger.Debug().Str("dir", dir).Msg("Created parent directories")
	return nil
}

func (l *Linker) userName() string {
	if l.user == nil {
		return "root"
	}
	return l.user.Name
}
