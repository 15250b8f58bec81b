package ui

import (
	"encoding/json"
	"io"

	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/provision"
)

// jsonRenderer prints one JSON document per rendered value and nothing
// while steps run
type jsonRenderer struct {
	encoder *json.Encoder
}

func newJSON(w io.Writer) *jsonRenderer {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return &jsonRenderer{encoder: encoder}
}

func (r *jsonRenderer) StepStarted(provision.StepName)    {}
func (r *jsonRenderer) StepFinished(provision.StepResult) {}

func (r *jsonRenderer) RenderResult(result *provision.Result) error {
	return r.encoder.Encode(result)
}

func (r *jsonRenderer) RenderPlan(plan *provision.Plan) error {
	return r.encoder.Encode(plan)
}

func (r *jsonRenderer) RenderStatus(report *provision.Report) error {
	return r.encoder.Encode(struct {
		*provision.Report
		Complete bool `json:"complete"`
	}{report, report.Complete()})
}

func (r *jsonRenderer) RenderError(err error) error {
	return r.encoder.Encode(struct {
		Error      string                 `json:"error"`
		Code       errors.ErrorCode       `json:"code"`
		ExitStatus int                    `json:"exit_status"`
		Details    map[string]interface{} `json:"details,omitempty"`
	}{
		Error:      err.Error(),
		Code:       errors.GetErrorCode(err),
		ExitStatus: errors.ExitCode(err),
		Details:    errors.GetErrorDetails(err),
	})
}
