package aur

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/archsetup/pkg/config"
	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/filesystem"
	"github.com/arthur-debert/archsetup/pkg/identity"
	"github.com/arthur-debert/archsetup/pkg/logging"
	"github.com/arthur-debert/archsetup/pkg/pacman"
	"github.com/arthur-debert/archsetup/pkg/runner"
	"github.com/rs/zerolog"
)

// Options configures a Helper
type Options struct {
	Runner runner.Runner
	FS     filesystem.FS
	Pacman *pacman.Manager
	Config config.Helper
	// User is the invoking user that builds and runs the helper
	User *identity.User
	// TempRoot is where the build directory is created; empty uses the
	// system temp root
	TempRoot string
	DryRun   bool
}

// Helper manages the AUR helper
type Helper struct {
	runner   runner.Runner
	fs       filesystem.FS
	pacman   *pacman.Manager
	cfg      config.Helper
	user     *identity.User
	tempRoot string
	dryRun   bool
	logger   zerolog.Logger
}

// New creates a Helper
func New(opts Options) *Helper {
	return &Helper{
		runner:   opts.Runner,
		fs:       opts.FS,
		pacman:   opts.Pacman,
		cfg:      opts.Config,
		user:     opts.User,
		tempRoot: opts.TempRoot,
		dryRun:   opts.DryRun,
		logger:   logging.GetLogger("aur"),
	}
}

// Name returns the helper binary name
func (h *Helper) Name() string {
	return h.cfg.Name
}

// Present reports whether the helper is resolvable on PATH
func (h *Helper) Present() bool {
	_, err := h.runner.LookPath(h.cfg.Name)
	return err == nil
}

// Ensure bootstraps the helper unless it is already present. It reports
// whether a bootstrap was performed.
func (h *Helper) Ensure(ctx context.Context) (bool, error) {
	if h.Present() {
		h.logger.Info().Str("helper", h.cfg.Name).Msg("Helper already installed, skipping bootstrap")
		return false, nil
	}
	if err := h.Bootstrap(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Bootstrap builds and installs the helper from its recipe
func (h *Helper) Bootstrap(ctx context.Context) error {
	if h.user == nil {
		return errors.New(errors.ErrIdentity, "building the AUR helper requires a non-root invoking user")
	}
	done := logging.LogOperationStart(h.logger, "helper-bootstrap")
	defer done()

	if err := h.pacman.Install(ctx, h.cfg.Prerequisites); err != nil {
		return errors.Wrapf(err, errors.ErrHelperBootstrap, "failed to install build prerequisites for %s", h.cfg.Name)
	}

	workDir, err := h.makeWorkDir()
	if err != nil {
		return err
	}
	defer h.removeWorkDir(workDir)

	recipeDir := filepath.Join(workDir, h.cfg.Name)
	for _, cmd := range []runner.Command{h.CloneCommand(recipeDir), h.BuildCommand(recipeDir)} {
		if err := h.runner.Run(ctx, cmd); err != nil {
			return errors.Wrapf(err, errors.ErrHelperBootstrap, "failed to build %s", h.cfg.Name).
				WithDetail("step", cmd.Name)
		}
	}

	if h.dryRun {
		h.logger.Info().Str("helper", h.cfg.Name).Msg("Dry run mode - built packages would be installed")
		return nil
	}

	files, err := h.builtPackages(ctx, recipeDir)
	if err != nil {
		return err
	}
	if err := h.pacman.InstallFiles(ctx, files); err != nil {
		return errors.Wrapf(err, errors.ErrHelperBootstrap, "failed to install %s", h.cfg.Name)
	}

	if !h.Present() {
		return errors.Newf(errors.ErrHelperBootstrap, "%s is still not on PATH after installation", h.cfg.Name)
	}
	h.logger.Info().Str("helper", h.cfg.Name).Msg("Helper bootstrapped")
	return nil
}

// CloneCommand fetches the helper's recipe into dir, from inside the build
// directory that holds it
func (h *Helper) CloneCommand(dir string) runner.Command {
	return runner.Command{
		Name:    "git",
		Args:    []string{"clone", "--depth", "1", h.cfg.Repository, dir},
		Dir:     filepath.Dir(dir),
		As:      h.user,
		Mutates: true,
	}
}

// BuildCommand builds the recipe in dir without installing it
func (h *Helper) BuildCommand(dir string) runner.Command {
	return runner.Command{
		Name:    "makepkg",
		Args:    append([]string{}, h.cfg.BuildArgs...),
		Dir:     dir,
		As:      h.user,
		Mutates: true,
	}
}

// InstallCommand installs pkgs through the helper as the invoking user
func (h *Helper) InstallCommand(pkgs []string) runner.Command {
	args := make([]string, 0, len(h.cfg.InstallArgs)+len(pkgs))
	args = append(args, h.cfg.InstallArgs...)
	args = append(args, pkgs...)
	return runner.Command{Name: h.cfg.Name, Args: args, Dir: h.userHome(), As: h.user, Mutates: true}
}

// userHome is the working directory of user-scoped commands that have no
// directory of their own; root's may not be readable by the user
func (h *Helper) userHome() string {
	if h.user == nil {
		return ""
	}
	return h.user.Home
}

// Install installs community packages in one helper invocation. An empty
// list is skipped and reported as not installed.
func (h *Helper) Install(ctx context.Context, pkgs []string) (bool, error) {
	if len(pkgs) == 0 {
		h.logger.Info().Msg("No community packages configured, skipping")
		return false, nil
	}
	if h.user == nil {
		return false, errors.New(errors.ErrIdentity, "community packages must be installed as a non-root invoking user")
	}

	h.logger.Info().
		Str("helper", h.cfg.Name).
		Str("user", h.user.Name).
		Int("count", len(pkgs)).
		Msg("Installing community packages")
	if err := h.runner.Run(ctx, h.InstallCommand(pkgs)); err != nil {
		return false, errors.Wrap(err, errors.ErrPackageManager, "community package installation failed").
			WithDetail("packages", pkgs)
	}
	return true, nil
}

func (h *Helper) makeWorkDir() (string, error) {
	root := h.tempRoot
	if root == "" {
		root = os.TempDir()
	}
	pattern := "archsetup-" + h.cfg.Name + "-"

	if h.dryRun {
		dir := filepath.Join(root, pattern+"dryrun")
		h.logger.Info().Str("dir", dir).Msg("Dry run mode - build directory would be created")
		return dir, nil
	}

	dir, err := h.fs.MkdirTemp(root, pattern)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrDirCreate, "failed to create build directory")
	}
	if err := h.fs.Chown(dir, int(h.user.UID), int(h.user.GID)); err != nil {
		h.removeWorkDir(dir)
		return "", errors.Wrapf(err, errors.ErrFileAccess, "failed to hand build directory to %s", h.user.Name)
	}
	h.logger.Debug().Str("dir", dir).Msg("Build directory created")
	return dir, nil
}

func (h *Helper) removeWorkDir(dir string) {
	if h.dryRun {
		return
	}
	if err := h.fs.RemoveAll(dir); err != nil {
		h.logger.Warn().Err(err).Str("dir", dir).Msg("Failed to remove build directory")
		return
	}
	h.logger.Debug().Str("dir", dir).Msg("Build directory removed")
}

// builtPackages asks makepkg which files the build produced. Split
// packages that were not built, such as disabled debug packages, are left
// out.
func (h *Helper) builtPackages(ctx context.Context, recipeDir string) ([]string, error) {
	out, err := h.runner.Output(ctx, runner.Command{
		Name: "makepkg",
		Args: []string{"--packagelist"},
		Dir:  recipeDir,
		As:   h.user,
	})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrHelperBootstrap, "failed to list packages built for %s", h.cfg.Name)
	}

	var files []string
	for _, line := range strings.Split(string(out), "\n") {
		path := strings.TrimSpace(line)
		if path == "" {
			continue
		}
		if _, err := h.fs.Stat(path); err != nil {
			h.logger.Debug().Str("file", path).Msg("Listed package was not built, skipping")
			continue
		}
		files = append(files, path)
	}
	if len(files) == 0 {
		return nil, errors.Newf(errors.ErrHelperBootstrap, "building %s produced no package files", h.cfg.Name)
	}
	return files, nil
}
