package testutil

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/runner"
)

// Response scripts the outcome of a command
type Response struct {
	Output []byte
	Status int
}

// FakeRunner is a runner.Runner that records commands. Responses are
// matched by the longest command-line prefix; unmatched commands succeed
// with no output.
type FakeRunner struct {
	Commands  []runner.Command
	Responses map[string]Response
	Paths     map[string]string

	// RunFunc, when set, is called for every recorded command before the
	// scripted response is applied; a non-nil error is returned as-is.
	RunFunc func(cmd runner.Command) error

	delegate  runner.Runner
	delegated map[string]bool
}

// LinkTools are the commands the symlink step runs as the invoking user
var LinkTools = []string{"test", "mkdir", "ln"}

// NewFakeRunner creates a FakeRunner with nothing on PATH
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		Responses: make(map[string]Response),
		Paths:     make(map[string]string),
	}
}

// Respond scripts the response for commands starting with prefix
func (f *FakeRunner) Respond(prefix string, resp Response) *FakeRunner {
	f.Responses[prefix] = resp
	return f
}

// Delegate hands commands with the given names to inner after recording
// them, unless a scripted response matches first
func (f *FakeRunner) Delegate(inner runner.Runner, names ...string) *FakeRunner {
	f.delegate = inner
	if f.delegated == nil {
		f.delegated = make(map[string]bool)
	}
	for _, name := range names {
		f.delegated[name] = true
	}
	return f
}

// WithRealLinks runs the symlink step's commands for real, quietly, so
// links land on disk
func (f *FakeRunner) WithRealLinks() *FakeRunner {
	return f.Delegate(runner.New(runner.Options{Stdout: io.Discard, Stderr: io.Discard}), LinkTools...)
}

// Provide makes name resolvable through LookPath
func (f *FakeRunner) Provide(name string) *FakeRunner {
	f.Paths[name] = "/usr/bin/" + name
	return f
}

// Run records cmd and returns its scripted outcome
func (f *FakeRunner) Run(ctx context.Context, cmd runner.Command) error {
	_, err := f.exec(ctx, cmd)
	return err
}

// Output records cmd and returns its scripted output
func (f *FakeRunner) Output(ctx context.Context, cmd runner.Command) ([]byte, error) {
	return f.exec(ctx, cmd)
}

// LookPath resolves names registered with Provide
func (f *FakeRunner) LookPath(name string) (string, error) {
	if path, ok := f.Paths[name]; ok {
		return path, nil
	}
	return "", errors.Newf(errors.ErrCommandNotFound, "%s not found in PATH", name)
}

func (f *FakeRunner) exec(ctx context.Context, cmd runner.Command) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.Commands = append(f.Commands, cmd)

	if f.RunFunc != nil {
		if err := f.RunFunc(cmd); err != nil {
			return nil, err
		}
	}

	resp, ok := f.match(cmd.String())
	if !ok {
		if f.delegated[cmd.Name] {
			return f.delegate.Output(ctx, cmd)
		}
		return nil, nil
	}
	if resp.Status != 0 {
		return resp.Output, errors.Newf(errors.ErrCommandExecute, "%s exited with status %d", cmd.Name, resp.Status).
			WithExitStatus(resp.Status)
	}
	return resp.Output, nil
}

func (f *FakeRunner) match(line string) (Response, bool) {
	prefixes := make([]string, 0, len(f.Responses))
	for prefix := range f.Responses {
		prefixes = append(prefixes, prefix)
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })

	for _, prefix := range prefixes {
		if strings.HasPrefix(line, prefix) {
			return f.Responses[prefix], true
		}
	}
	return Response{}, false
}

// CommandLines returns the recorded commands as command lines
func (f *FakeRunner) CommandLines() []string {
	lines := make([]string, 0, len(f.Commands))
	for _, c := range f.Commands {
		lines = append(lines, c.String())
	}
	return lines
}

// Ran reports whether any recorded command line starts with prefix
func (f *FakeRunner) Ran(prefix string) bool {
	for _, line := range f.CommandLines() {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// Find returns the first recorded command whose line starts with prefix
func (f *FakeRunner) Find(prefix string) (runner.Command, bool) {
	for _, c := range f.Commands {
		if strings.HasPrefix(c.String(), prefix) {
			return c, true
		}
	}
	return runner.Command{}, false
}

var _ runner.Runner = (*FakeRunner)(nil)
