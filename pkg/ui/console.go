package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/provision"
	"github.com/arthur-debert/archsetup/pkg/symlink"
	"github.com/charmbracelet/glamour"
	"github.com/pterm/pterm"
)

// console renders human readable output. Rich output adds pterm prefixes
// for progress, lipgloss styles for summaries and glamour for plans.
type console struct {
	w      io.Writer
	errW   io.Writer
	rich   bool
	styles Styles
}

func newConsole(w, errW io.Writer, rich bool) *console {
	c := &console{w: w, errW: errW, rich: rich}
	if rich {
		c.styles = DefaultStyles()
	}
	return c
}

func (c *console) paint(style, s string) string {
	if !c.rich {
		return s
	}
	return c.styles.Get(style).Render(s)
}

func (c *console) StepStarted(name provision.StepName) {
	if c.rich {
		pterm.Info.WithWriter(c.w).Println(name.Title())
		return
	}
	fmt.Fprintf(c.w, "==> %s\n", name.Title())
}

func (c *console) StepFinished(result provision.StepResult) {
	msg := result.Message
	if result.Status == provision.StatusFailed {
		msg = result.Error
	}
	line := result.Name.Title()
	if msg != "" {
		line += ": " + msg
	}

	if !c.rich {
		fmt.Fprintf(c.w, "[%s] %s\n", result.Status, line)
		return
	}
	switch result.Status {
	case provision.StatusDone:
		pterm.Success.WithWriter(c.w).Println(line)
	case provision.StatusWarning:
		pterm.Warning.WithWriter(c.w).Println(line)
	case provision.StatusFailed:
		pterm.Error.WithWriter(c.w).Println(line)
	default:
		pterm.Description.WithWriter(c.w).Println(line)
	}
}

var statusMarks = map[provision.StepStatus]string{
	provision.StatusDone:    "✓",
	provision.StatusSkipped: "-",
	provision.StatusWarning: "!",
	provision.StatusFailed:  "✗",
}

var statusStyles = map[provision.StepStatus]string{
	provision.StatusDone:    "Done",
	provision.StatusSkipped: "Skipped",
	provision.StatusWarning: "Warning",
	provision.StatusFailed:  "Failed",
}

func (c *console) RenderResult(result *provision.Result) error {
	var b strings.Builder

	title := "Summary"
	if result.DryRun {
		title += " (dry run, nothing was changed)"
	}
	fmt.Fprintln(&b, c.paint("Header", title))

	for _, step := range result.Steps {
		mark := c.paint(statusStyles[step.Status], statusMarks[step.Status])
		msg := step.Message
		if step.Status == provision.StatusFailed {
			msg = step.Error
		}
		fmt.Fprintf(&b, "%s %s %s\n", mark, c.paint("Step", step.Name.Title()), msg)

		for _, link := range step.Links {
			fmt.Fprintf(&b, "    %s %s -> %s\n",
				c.paint("Muted", string(link.Outcome)), c.paint("Path", link.Target), link.Source)
		}
	}

	if len(result.Steps) < len(provision.Steps) {
		if _, failed := result.Failed(); failed {
			fmt.Fprintln(&b, c.paint("Muted", "Remaining steps were not run."))
		}
	}

	_, err := io.WriteString(c.w, b.String())
	return err
}

func (c *console) RenderPlan(plan *provision.Plan) error {
	doc := PlanMarkdown(plan)
	if c.rich {
		doc = renderMarkdown(doc)
	}
	_, err := io.WriteString(c.w, doc)
	return err
}

// renderMarkdown renders through glamour, falling back to the raw document
func renderMarkdown(doc string) string {
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return doc
	}
	out, err := renderer.Render(doc)
	if err != nil {
		return doc
	}
	return out
}

func (c *console) RenderStatus(report *provision.Report) error {
	var b strings.Builder

	fmt.Fprintln(&b, c.paint("Header", "Status for "+report.User))

	c.packageLine(&b, "Official packages", report.Official)

	switch {
	case report.Helper.Name == "":
		fmt.Fprintf(&b, "%s %s\n", c.paint("Step", "AUR helper"), c.paint("Skipped", "none configured"))
	case report.Helper.Present:
		fmt.Fprintf(&b, "%s %s %s\n", c.paint("Step", "AUR helper"),
			c.paint("Done", report.Helper.Name+" installed"), c.paint("Muted", report.Helper.Path))
	default:
		fmt.Fprintf(&b, "%s %s\n", c.paint("Step", "AUR helper"), c.paint("Warning", report.Helper.Name+" not installed"))
	}

	c.packageLine(&b, "Community packages", report.Community)

	fmt.Fprintln(&b, c.paint("Step", "Configuration links"))
	if len(report.Links) == 0 {
		fmt.Fprintf(&b, "    %s\n", c.paint("Skipped", "none configured"))
	}
	for _, link := range report.Links {
		fmt.Fprintf(&b, "    %s %s -> %s\n", c.paint(linkStyle(link.State), fmt.Sprintf("%-14s", link.State)),
			c.paint("Path", link.Target), link.Source)
	}

	if report.Complete() {
		fmt.Fprintln(&b, c.paint("Done", "Nothing left to do."))
	}

	_, err := io.WriteString(c.w, b.String())
	return err
}

func (c *console) packageLine(b *strings.Builder, label string, status provision.PackageStatus) {
	installed := status.Configured - len(status.Missing)
	summary := fmt.Sprintf("%d/%d installed", installed, status.Configured)
	style := "Done"
	if len(status.Missing) > 0 {
		style = "Warning"
	}
	fmt.Fprintf(b, "%s %s\n", c.paint("Step", label), c.paint(style, summary))
	if len(status.Missing) > 0 {
		fmt.Fprintf(b, "    missing: %s\n", strings.Join(status.Missing, ", "))
	}
}

func linkStyle(state symlink.State) string {
	switch state {
	case symlink.StateLinked:
		return "Done"
	case symlink.StateConflict:
		return "Failed"
	case symlink.StateAbsent:
		return "Skipped"
	default:
		return "Warning"
	}
}

func (c *console) RenderError(err error) error {
	msg := err.Error()
	if status := errors.ExitCode(err); status > 1 {
		msg = fmt.Sprintf("%s (exit status %d)", msg, status)
	}
	if c.rich {
		pterm.Error.WithWriter(c.errW).Println(msg)
		return nil
	}
	_, werr := fmt.Fprintf(c.errW, "Error: %s\n", msg)
	return werr
}
