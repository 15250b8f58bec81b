package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/arthur-debert/archsetup/pkg/aur"
	"github.com/arthur-debert/archsetup/pkg/config"
	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/filesystem"
	"github.com/arthur-debert/archsetup/pkg/identity"
	"github.com/arthur-debert/archsetup/pkg/logging"
	"github.com/arthur-debert/archsetup/pkg/pacman"
	"github.com/arthur-debert/archsetup/pkg/runner"
	"github.com/arthur-debert/archsetup/pkg/symlink"
	"github.com/rs/zerolog"
)

// StepName identifies a step
type StepName string

const (
	StepPrivileges StepName = "privileges"
	StepUpdate     StepName = "system-update"
	StepOfficial   StepName = "official-packages"
	StepHelper     StepName = "aur-helper"
	StepCommunity  StepName = "community-packages"
	StepLinks      StepName = "symlinks"
)

// Steps lists every step in execution order
var Steps = []StepName{StepPrivileges, StepUpdate, StepOfficial, StepHelper, StepCommunity, StepLinks}

// Title is the human readable name of a step
func (s StepName) Title() string {
	switch s {
	case StepPrivileges:
		return "Privilege check"
	case StepUpdate:
		return "System upgrade"
	case StepOfficial:
		return "Official packages"
	case StepHelper:
		return "AUR helper"
	case StepCommunity:
		return "Community packages"
	case StepLinks:
		return "Configuration links"
	default:
		return string(s)
	}
}

// StepStatus is how a step ended
type StepStatus string

const (
	StatusDone    StepStatus = "done"
	StatusSkipped StepStatus = "skipped"
	StatusWarning StepStatus = "warning"
	StatusFailed  StepStatus = "failed"
)

// StepResult records one finished step
type StepResult struct {
	Name    StepName         `json:"name"`
	Status  StepStatus       `json:"status"`
	Message string           `json:"message,omitempty"`
	Error   string           `json:"error,omitempty"`
	Links   []symlink.Result `json:"links,omitempty"`
}

// Result records a run. Steps holds the steps that started, in order.
type Result struct {
	DryRun bool         `json:"dry_run"`
	User   string       `json:"user,omitempty"`
	Steps  []StepResult `json:"steps"`
}

// Failed returns the failed step, if any
func (r *Result) Failed() (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			return s, true
		}
	}
	return StepResult{}, false
}

// Warnings returns the steps that finished with warnings
func (r *Result) Warnings() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Status == StatusWarning {
			out = append(out, s)
		}
	}
	return out
}

// Privileges answers the privilege check and names the invoking user.
// identity.Resolver is the production implementation.
type Privileges interface {
	RequireSuperuser() error
	Invoker() (*identity.User, error)
}

// Observer is notified as steps start and finish
type Observer interface {
	StepStarted(name StepName)
	StepFinished(result StepResult)
}

// Options configures a Provisioner
type Options struct {
	Privileges Privileges
	Config     *config.Config
	Runner     runner.Runner
	FS         filesystem.FS
	// TempRoot holds the helper build directory; empty uses the system temp root
	TempRoot string
	DryRun   bool
	Observer Observer
}

// Provisioner runs the bootstrap
type Provisioner struct {
	privileges Privileges
	cfg        *config.Config
	runner     runner.Runner
	fs         filesystem.FS
	tempRoot   string
	dryRun     bool
	observer   Observer
	logger     zerolog.Logger
}

// New creates a Provisioner
func New(opts Options) *Provisioner {
	fs := opts.FS
	if fs == nil {
		fs = filesystem.NewOS()
	}
	return &Provisioner{
		privileges: opts.Privileges,
		cfg:        opts.Config,
		runner:     opts.Runner,
		fs:         fs,
		tempRoot:   opts.TempRoot,
		dryRun:     opts.DryRun,
		observer:   opts.Observer,
		logger:     logging.GetLogger("provision"),
	}
}

// outcome is what a step function reports back to the run loop
type outcome struct {
	status  StepStatus
	message string
	links   []symlink.Result
}

// components are the collaborators bound to the invoking user
type components struct {
	user   *identity.User
	pacman *pacman.Manager
	helper *aur.Helper
	linker *symlink.Linker
}

func (p *Provisioner) components(user *identity.User) components {
	pm := pacman.New(p.runner, p.cfg.Pacman)
	return components{
		user:   user,
		pacman: pm,
		helper: aur.New(aur.Options{
			Runner:   p.runner,
			FS:       p.fs,
			Pacman:   pm,
			Config:   p.cfg.Helper,
			User:     user,
			TempRoot: p.tempRoot,
			DryRun:   p.dryRun,
		}),
		linker: symlink.NewLinker(p.fs, p.runner, user, p.dryRun),
	}
}

// Run executes the steps in order and stops at the first failure. The
// returned error carries the exit status of a failing subprocess.
func (p *Provisioner) Run(ctx context.Context) (*Result, error) {
	done := logging.LogOperationStart(p.logger, "provision")
	defer done()

	result := &Result{DryRun: p.dryRun}
	var c components

	steps := []struct {
		name StepName
		fn   func(ctx context.Context) (outcome, error)
	}{
		{StepPrivileges, func(ctx context.Context) (outcome, error) {
			user, err := p.checkPrivileges()
			if err != nil {
				return outcome{}, err
			}
			c = p.components(user)
			result.User = user.Name
			return outcome{status: StatusDone, message: fmt.Sprintf("running as root for %s", user.Name)}, nil
		}},
		{StepUpdate, func(ctx context.Context) (outcome, error) {
			return p.update(ctx, c)
		}},
		{StepOfficial, func(ctx context.Context) (outcome, error) {
			return p.installOfficial(ctx, c)
		}},
		{StepHelper, func(ctx context.Context) (outcome, error) {
			return p.ensureHelper(ctx, c)
		}},
		{StepCommunity, func(ctx context.Context) (outcome, error) {
			return p.installCommunity(ctx, c)
		}},
		{StepLinks, func(ctx context.Context) (outcome, error) {
			return p.link(ctx, c)
		}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return result, errors.Wrap(err, errors.ErrCanceled, "interrupted").
				WithDetail("step", string(step.name)).
				WithExitStatus(130)
		}

		p.notifyStarted(step.name)
		p.logger.Debug().Str("step", string(step.name)).Msg("Step started")

		out, err := step.fn(ctx)
		sr := StepResult{Name: step.name, Status: out.status, Message: out.message, Links: out.links}
		if err != nil {
			sr.Status = StatusFailed
			sr.Error = err.Error()
			result.Steps = append(result.Steps, sr)
			p.notifyFinished(sr)
			p.logger.Error().Err(err).Str("step", string(step.name)).Msg("Step failed, aborting")
			return result, err
		}

		result.Steps = append(result.Steps, sr)
		p.notifyFinished(sr)
		p.logger.Info().
			Str("step", string(step.name)).
			Str("status", string(sr.Status)).
			Msg("Step finished")
	}

	return result, nil
}

func (p *Provisioner) checkPrivileges() (*identity.User, error) {
	if err := p.privileges.RequireSuperuser(); err != nil {
		return nil, err
	}
	user, err := p.privileges.Invoker()
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New(errors.ErrIdentity, "no invoking user")
	}
	p.logger.Info().Str("user", user.Name).Uint32("uid", user.UID).Msg("Resolved invoking user")
	return user, nil
}

func (p *Provisioner) update(ctx context.Context, c components) (outcome, error) {
	if err := c.pacman.Update(ctx); err != nil {
		return outcome{}, err
	}
	return outcome{status: StatusDone, message: "system upgraded"}, nil
}

func (p *Provisioner) installOfficial(ctx context.Context, c components) (outcome, error) {
	pkgs := p.cfg.OfficialPackages()
	if len(pkgs) == 0 {
		p.logger.Info().Msg("No official packages configured, skipping")
		return outcome{status: StatusSkipped, message: "no official packages configured"}, nil
	}
	if err := c.pacman.Install(ctx, pkgs); err != nil {
		return outcome{}, err
	}
	return outcome{status: StatusDone, message: countOf(len(pkgs), "package")}, nil
}

func (p *Provisioner) ensureHelper(ctx context.Context, c components) (outcome, error) {
	if p.cfg.Helper.Name == "" {
		p.logger.Info().Msg("No AUR helper configured, skipping")
		return outcome{status: StatusSkipped, message: "no helper configured"}, nil
	}
	built, err := c.helper.Ensure(ctx)
	if err != nil {
		return outcome{}, err
	}
	if !built {
		return outcome{status: StatusSkipped, message: c.helper.Name() + " already installed"}, nil
	}
	return outcome{status: StatusDone, message: c.helper.Name() + " built and installed"}, nil
}

func (p *Provisioner) installCommunity(ctx context.Context, c components) (outcome, error) {
	pkgs := p.cfg.CommunityPackages()
	installed, err := c.helper.Install(ctx, pkgs)
	if err != nil {
		return outcome{}, err
	}
	if !installed {
		return outcome{status: StatusSkipped, message: "no community packages configured"}, nil
	}
	return outcome{
		status:  StatusDone,
		message: fmt.Sprintf("%s as %s", countOf(len(pkgs), "package"), c.user.Name),
	}, nil
}

func (p *Provisioner) link(ctx context.Context, c components) (outcome, error) {
	if len(p.cfg.Links) == 0 {
		return outcome{status: StatusSkipped, message: "no links configured"}, nil
	}

	out := outcome{status: StatusDone}
	var missing []string
	for _, m := range p.cfg.Links {
		res, err := c.linker.Link(ctx, m)
		if err != nil {
			return outcome{links: out.links}, err
		}
		out.links = append(out.links, res)
		if res.Outcome == symlink.OutcomeMissingSource {
			missing = append(missing, res.Source)
		}
	}

	if len(missing) > 0 {
		out.status = StatusWarning
		out.message = "source missing: " + strings.Join(missing, ", ")
		return out, nil
	}
	out.message = countOf(len(out.links), "link")
	return out, nil
}

func (p *Provisioner) notifyStarted(name StepName) {
	if p.observer != nil {
		p.observer.StepStarted(name)
	}
}

func (p *Provisioner) notifyFinished(result StepResult) {
	if p.observer != nil {
		p.observer.StepFinished(result)
	}
}

func countOf(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
