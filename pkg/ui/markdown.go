package ui

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/archsetup/pkg/provision"
)

// PlanMarkdown renders a plan as a Markdown document
func PlanMarkdown(plan *provision.Plan) string {
	var b strings.Builder

	b.WriteString("# archsetup plan\n\n")
	fmt.Fprintf(&b, "User-scoped steps run as **%s**.\n", plan.User)

	for i, step := range plan.Steps {
		fmt.Fprintf(&b, "\n## %d. %s\n\n", i+1, step.Title)
		if step.Note != "" {
			fmt.Fprintf(&b, "%s\n\n", capitalize(step.Note))
		}

		if len(step.Commands) > 0 {
			b.WriteString("```sh\n")
			for _, cmd := range step.Commands {
				if context := commandContext(cmd); context != "" {
					fmt.Fprintf(&b, "# %s\n", context)
				}
				fmt.Fprintf(&b, "%s\n", cmd.Command)
			}
			b.WriteString("```\n\n")
		}

		for _, link := range step.Links {
			fmt.Fprintf(&b, "- `%s` -> `%s`\n", link.Target, link.Source)
		}
		if len(step.Links) > 0 {
			b.WriteString("\n")
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func commandContext(cmd provision.PlannedCommand) string {
	var parts []string
	if cmd.User != "root" {
		parts = append(parts, "as "+cmd.User)
	}
	if cmd.Dir != "" {
		parts = append(parts, "in "+cmd.Dir)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
