// Package pacman wraps the Arch Linux system package manager.
package pacman

import (
	"context"
	"strings"

	"github.com/arthur-debert/archsetup/pkg/config"
	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/logging"
	"github.com/arthur-debert/archsetup/pkg/runner"
	"github.com/rs/zerolog"
)

// Manager issues pacman invocations. All of them run as the process
// itself, which for a provisioning run is root.
type Manager struct {
	runner runner.Runner
	cfg    config.Pacman
	logger zerolog.Logger
}

// New creates a Manager
func New(r runner.Runner, cfg config.Pacman) *Manager {
	return &Manager{
		runner: r,
		cfg:    cfg,
		logger: logging.GetLogger("pacman"),
	}
}

// UpdateCommand is the full system upgrade
func (m *Manager) UpdateCommand() runner.Command {
	return m.command(m.cfg.UpdateArgs, nil)
}

// InstallCommand installs pkgs from the sync repositories in one call
func (m *Manager) InstallCommand(pkgs []string) runner.Command {
	return m.command(m.cfg.InstallArgs, pkgs)
}

// LocalInstallCommand installs built package files
func (m *Manager) LocalInstallCommand(files []string) runner.Command {
	return m.command(m.cfg.LocalInstallArgs, files)
}

func (m *Manager) command(base, operands []string) runner.Command {
	args := make([]string, 0, len(base)+len(operands))
	args = append(args, base...)
	args = append(args, operands...)
	return runner.Command{Name: m.cfg.Binary, Args: args, Mutates: true}
}

// Update refreshes the package databases and upgrades the system
func (m *Manager) Update(ctx context.Context) error {
	cmd := m.UpdateCommand()
	m.logger.Info().Str("command", cmd.String()).Msg("Upgrading system")
	if err := m.runner.Run(ctx, cmd); err != nil {
		return errors.Wrap(err, errors.ErrPackageManager, "system upgrade failed")
	}
	return nil
}

// Install installs pkgs in a single invocation. An empty list is a no-op.
// Whether a failing package aborts the whole transaction is pacman's call.
func (m *Manager) Install(ctx context.Context, pkgs []string) error {
	if len(pkgs) == 0 {
		m.logger.Info().Msg("No packages to install")
		return nil
	}
	cmd := m.InstallCommand(pkgs)
	m.logger.Info().Int("count", len(pkgs)).Msg("Installing packages")
	if err := m.runner.Run(ctx, cmd); err != nil {
		return errors.Wrap(err, errors.ErrPackageManager, "package installation failed").
			WithDetail("packages", pkgs)
	}
	return nil
}

// InstallFiles installs locally built package files
func (m *Manager) InstallFiles(ctx context.Context, files []string) error {
	if len(files) == 0 {
		return errors.New(errors.ErrInvalidInput, "no package files to install")
	}
	if err := m.runner.Run(ctx, m.LocalInstallCommand(files)); err != nil {
		return errors.Wrap(err, errors.ErrPackageManager, "local package installation failed").
			WithDetail("files", files)
	}
	return nil
}

// Installed returns the names of all installed packages
func (m *Manager) Installed(ctx context.Context) (map[string]bool, error) {
	return m.query(ctx, m.cfg.QueryArgs)
}

// Foreign returns the names of installed packages not found in the sync
// databases, which is where AUR packages end up
func (m *Manager) Foreign(ctx context.Context) (map[string]bool, error) {
	return m.query(ctx, m.cfg.ForeignQueryArgs)
}

func (m *Manager) query(ctx context.Context, args []string) (map[string]bool, error) {
	out, err := m.runner.Output(ctx, runner.Command{Name: m.cfg.Binary, Args: args})
	if err != nil {
		// pacman -Qqm exits 1 when nothing matches
		if errors.ExitCode(err) == 1 && len(strings.TrimSpace(string(out))) == 0 {
			return map[string]bool{}, nil
		}
		return nil, errors.Wrap(err, errors.ErrPackageManager, "package query failed")
	}
	return ParseList(out), nil
}

// ParseList parses one package name per line, as printed by pacman -Qq
func ParseList(out []byte) map[string]bool {
	set := make(map[string]bool)
	for _, line := range strings.Split(string(out), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			set[name] = true
		}
	}
	return set
}

// Missing returns the entries of pkgs absent from installed, in order
func Missing(pkgs []string, installed map[string]bool) []string {
	var missing []string
	for _, pkg := range pkgs {
		if !installed[pkg] {
			missing = append(missing, pkg)
		}
	}
	return missing
}
