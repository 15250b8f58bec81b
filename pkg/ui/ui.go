// Package ui renders provisioning progress, plans and status reports.
// It supports terminal (rich), text (plain), and JSON output formats.
package ui

import (
	"io"

	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/provision"
)

// Renderer is the common interface for all output renderers. It observes a
// run as it happens and renders whole documents afterwards.
type Renderer interface {
	provision.Observer

	// RenderResult renders the summary of a run
	RenderResult(result *provision.Result) error

	// RenderPlan renders what a run would do
	RenderPlan(plan *provision.Plan) error

	// RenderStatus renders a status report
	RenderStatus(report *provision.Report) error

	// RenderError renders an error with appropriate formatting
	RenderError(err error) error
}

// NewRenderer creates a renderer for format writing to w. Human readable
// errors go to errW; JSON errors stay on w next to the document they belong
// to. FormatAuto is resolved against w.
func NewRenderer(format Format, w, errW io.Writer) (Renderer, error) {
	if format == FormatAuto {
		format = DetectFormat(w)
	}
	switch format {
	case FormatTerminal:
		return newConsole(w, errW, true), nil
	case FormatText:
		return newConsole(w, errW, false), nil
	case FormatJSON:
		return newJSON(w), nil
	default:
		return nil, errors.Newf(errors.ErrInvalidInput, "unknown format: %v", format)
	}
}
