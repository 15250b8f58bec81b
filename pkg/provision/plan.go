package provision

import (
	"os"
	"path/filepath"

	"github.com/arthur-debert/archsetup/pkg/identity"
	"github.com/arthur-debert/archsetup/pkg/runner"
)

// builtPackagesPlaceholder stands in for the files makepkg reports
const builtPackagesPlaceholder = "<built packages>"

// PlannedCommand is one subprocess a run would start
type PlannedCommand struct {
	User    string `json:"user"`
	Dir     string `json:"dir,omitempty"`
	Command string `json:"command"`
}

// PlannedLink is one link a run would create
type PlannedLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// PlannedStep describes what a step would do
type PlannedStep struct {
	Name     StepName         `json:"name"`
	Title    string           `json:"title"`
	Note     string           `json:"note,omitempty"`
	Commands []PlannedCommand `json:"commands,omitempty"`
	Links    []PlannedLink    `json:"links,omitempty"`
}

// Plan is the ordered list of planned steps
type Plan struct {
	User  string        `json:"user"`
	Steps []PlannedStep `json:"steps"`
}

// Plan lists what Run would execute on behalf of user. Only read-only
// probes run: the helper lookup decides whether the bootstrap appears.
func (p *Provisioner) Plan(user *identity.User) *Plan {
	c := p.components(user)
	plan := &Plan{User: user.Name}

	plan.Steps = append(plan.Steps, PlannedStep{
		Name:  StepPrivileges,
		Title: StepPrivileges.Title(),
		Note:  "requires root; user-scoped steps run as " + user.Name,
	})

	plan.Steps = append(plan.Steps, PlannedStep{
		Name:     StepUpdate,
		Title:    StepUpdate.Title(),
		Commands: planned(c.pacman.UpdateCommand()),
	})

	official := PlannedStep{Name: StepOfficial, Title: StepOfficial.Title()}
	if pkgs := p.cfg.OfficialPackages(); len(pkgs) > 0 {
		official.Commands = planned(c.pacman.InstallCommand(pkgs))
	} else {
		official.Note = "no official packages configured"
	}
	plan.Steps = append(plan.Steps, official)

	helper := PlannedStep{Name: StepHelper, Title: StepHelper.Title()}
	switch {
	case p.cfg.Helper.Name == "":
		helper.Note = "no helper configured"
	case c.helper.Present():
		helper.Note = c.helper.Name() + " already installed"
	default:
		recipe := filepath.Join(os.TempDir(), "archsetup-"+c.helper.Name()+"-XXXXXX", c.helper.Name())
		helper.Note = c.helper.Name() + " is not installed and will be built from " + p.cfg.Helper.Repository
		helper.Commands = planned(
			c.pacman.InstallCommand(p.cfg.Helper.Prerequisites),
			c.helper.CloneCommand(recipe),
			c.helper.BuildCommand(recipe),
			c.pacman.LocalInstallCommand([]string{builtPackagesPlaceholder}),
		)
	}
	plan.Steps = append(plan.Steps, helper)

	community := PlannedStep{Name: StepCommunity, Title: StepCommunity.Title()}
	if pkgs := p.cfg.CommunityPackages(); len(pkgs) > 0 {
		community.Commands = planned(c.helper.InstallCommand(pkgs))
	} else {
		community.Note = "no community packages configured"
	}
	plan.Steps = append(plan.Steps, community)

	links := PlannedStep{Name: StepLinks, Title: StepLinks.Title()}
	for _, m := range p.cfg.Links {
		source, target := c.linker.Resolve(m)
		links.Links = append(links.Links, PlannedLink{Source: source, Target: target})
	}
	if len(links.Links) == 0 {
		links.Note = "no links configured"
	}
	plan.Steps = append(plan.Steps, links)

	return plan
}

func planned(cmds ...runner.Command) []PlannedCommand {
	out := make([]PlannedCommand, 0, len(cmds))
	for _, cmd := range cmds {
		out = append(out, PlannedCommand{User: cmd.User(), Dir: cmd.Dir, Command: cmd.String()})
	}
	return out
}
