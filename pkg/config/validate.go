package config

import (
	"github.com/arthur-debert/archsetup/pkg/errors"
)

// Validate checks the invariants a run relies on
func (c *Config) Validate() error {
	if c.Pacman.Binary == "" {
		return errors.New(errors.ErrConfigValid, "pacman.binary must not be empty")
	}

	community := c.CommunityPackages()
	if len(community) > 0 && c.Helper.Name == "" {
		return errors.New(errors.ErrConfigValid, "helper.name is required when community packages are listed")
	}
	if c.Helper.Name != "" && c.Helper.Repository == "" {
		return errors.Newf(errors.ErrConfigValid, "helper.repository is required to bootstrap %s", c.Helper.Name)
	}

	official := make(map[string]bool)
	for _, pkg := range c.OfficialPackages() {
		official[pkg] = true
	}
	var overlap []string
	for _, pkg := range community {
		if official[pkg] {
			overlap = append(overlap, pkg)
		}
	}
	if len(overlap) > 0 {
		return errors.Newf(errors.ErrConfigValid,
			"packages listed as both official and community: %v", overlap).
			WithDetail("packages", overlap)
	}

	for i, link := range c.Links {
		if link.Source == "" || link.Target == "" {
			return errors.Newf(errors.ErrConfigValid, "links[%d] needs both source and target", i)
		}
	}

	return nil
}
