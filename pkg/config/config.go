package config

import (
	"github.com/pelletier/go-toml/v2"
)

// Packages holds the two package lists
type Packages struct {
	Official       []string `koanf:"official" toml:"official"`
	Community      []string `koanf:"community" toml:"community"`
	ExtraOfficial  []string `koanf:"extra_official" toml:"extra_official"`
	ExtraCommunity []string `koanf:"extra_community" toml:"extra_community"`
}

// Pacman holds the system package manager invocation
type Pacman struct {
	Binary           string   `koanf:"binary" toml:"binary"`
	UpdateArgs       []string `koanf:"update_args" toml:"update_args"`
	InstallArgs      []string `koanf:"install_args" toml:"install_args"`
	LocalInstallArgs []string `koanf:"local_install_args" toml:"local_install_args"`
	QueryArgs        []string `koanf:"query_args" toml:"query_args"`
	ForeignQueryArgs []string `koanf:"foreign_query_args" toml:"foreign_query_args"`
}

// Helper holds the AUR helper settings
type Helper struct {
	// Name is both the binary looked up on PATH and the recipe directory
	Name          string   `koanf:"name" toml:"name"`
	Repository    string   `koanf:"repository" toml:"repository"`
	Prerequisites []string `koanf:"prerequisites" toml:"prerequisites"`
	InstallArgs   []string `koanf:"install_args" toml:"install_args"`
	BuildArgs     []string `koanf:"build_args" toml:"build_args"`
}

// Link maps a workspace path to the configuration path that should point at it
type Link struct {
	Source string `koanf:"source" toml:"source"`
	Target string `koanf:"target" toml:"target"`
}

// Config is the main configuration structure
type Config struct {
	Packages Packages `koanf:"packages" toml:"packages"`
	Pacman   Pacman   `koanf:"pacman" toml:"pacman"`
	Helper   Helper   `koanf:"helper" toml:"helper"`
	Links    []Link   `koanf:"links" toml:"links"`

	// Sources lists the files merged over the defaults, in load order
	Sources []string `koanf:"-" toml:"-"`
}

// OfficialPackages returns the official list with extras appended
func (c *Config) OfficialPackages() []string {
	return unique(append(append([]string{}, c.Packages.Official...), c.Packages.ExtraOfficial...))
}

// CommunityPackages returns the community list with extras appended
func (c *Config) CommunityPackages() []string {
	return unique(append(append([]string{}, c.Packages.Community...), c.Packages.ExtraCommunity...))
}

// TOML renders the configuration as a TOML document
func (c *Config) TOML() ([]byte, error) {
	return toml.Marshal(c)
}

// Duplicates lists the identifiers that appear more than once in the
// official and community lists, extras included, keyed by list
func (c *Config) Duplicates() map[string][]string {
	out := make(map[string][]string)
	if _, dropped := dedupe(append(append([]string{}, c.Packages.Official...), c.Packages.ExtraOfficial...)); len(dropped) > 0 {
		out["official"] = dropped
	}
	if _, dropped := dedupe(append(append([]string{}, c.Packages.Community...), c.Packages.ExtraCommunity...)); len(dropped) > 0 {
		out["community"] = dropped
	}
	return out
}

// unique drops empty and repeated identifiers, keeping first occurrences
func unique(items []string) []string {
	out, _ := dedupe(items)
	return out
}

func dedupe(items []string) ([]string, []string) {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	var dropped []string
	for _, item := range items {
		if item == "" {
			continue
		}
		if seen[item] {
			dropped = append(dropped, item)
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out, dropped
}
