package provision

import (
	"context"

	"github.com/arthur-debert/archsetup/pkg/identity"
	"github.com/arthur-debert/archsetup/pkg/pacman"
	"github.com/arthur-debert/archsetup/pkg/symlink"
)

// PackageStatus compares a configured list with what is installed
type PackageStatus struct {
	Configured int      `json:"configured"`
	Missing    []string `json:"missing"`
}

// HelperStatus reports whether the AUR helper is installed
type HelperStatus struct {
	Name    string `json:"name"`
	Present bool   `json:"present"`
	Path    string `json:"path,omitempty"`
}

// Report is the outcome of Status
type Report struct {
	User      string           `json:"user"`
	Official  PackageStatus    `json:"official"`
	Helper    HelperStatus     `json:"helper"`
	Community PackageStatus    `json:"community"`
	Links     []symlink.Status `json:"links"`
}

// Complete reports whether a run would have nothing left to install or link
func (r *Report) Complete() bool {
	if len(r.Official.Missing) > 0 || len(r.Community.Missing) > 0 {
		return false
	}
	if r.Helper.Name != "" && !r.Helper.Present {
		return false
	}
	for _, l := range r.Links {
		if l.State != symlink.StateLinked {
			return false
		}
	}
	return true
}

// Status inspects the machine on behalf of user without changing it
func (p *Provisioner) Status(ctx context.Context, user *identity.User) (*Report, error) {
	c := p.components(user)
	report := &Report{User: user.Name}

	official := p.cfg.OfficialPackages()
	installed, err := c.pacman.Installed(ctx)
	if err != nil {
		return nil, err
	}
	report.Official = PackageStatus{
		Configured: len(official),
		Missing:    nonNil(pacman.Missing(official, installed)),
	}

	if name := p.cfg.Helper.Name; name != "" {
		report.Helper.Name = name
		if path, err := p.runner.LookPath(name); err == nil {
			report.Helper.Present = true
			report.Helper.Path = path
		}
	}

	community := p.cfg.CommunityPackages()
	if len(community) > 0 {
		foreign, err := c.pacman.Foreign(ctx)
		if err != nil {
			return nil, err
		}
		report.Community.Missing = pacman.Missing(community, foreign)
	}
	report.Community.Configured = len(community)
	report.Community.Missing = nonNil(report.Community.Missing)

	for _, m := range p.cfg.Links {
		st, err := c.linker.Inspect(m)
		if err != nil {
			return nil, err
		}
		report.Links = append(report.Links, st)
	}

	p.logger.Debug().
		Int("missingOfficial", len(report.Official.Missing)).
		Int("missingCommunity", len(report.Community.Missing)).
		Bool("helper", report.Helper.Present).
		Msg("Status collected")

	return report, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
