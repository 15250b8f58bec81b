package archsetup

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/arthur-debert/archsetup/pkg/config"
	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/identity"
	"github.com/arthur-debert/archsetup/pkg/runner"
	"github.com/arthur-debert/archsetup/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
[packages]
official = ["git", "zsh"]
community = ["spotify"]

[[links]]
source = "~/workspace/config/nvim"
target = "~/.config/nvim"
`

type harness struct {
	home       string
	user       *identity.User
	privileges *testutil.Privileges
	fake       *testutil.FakeRunner
	fs         *testutil.RecordingFS
	configPath string
	runnerOpts runner.Options
	stdout     bytes.Buffer
	stderr     bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")

	home := t.TempDir()
	user := testutil.Invoker(t, home)
	testutil.CreateDir(t, home, "workspace/config/nvim")

	return &harness{
		home:       home,
		user:       user,
		privileges: testutil.Root(user),
		fake:       testutil.NewFakeRunner().WithRealLinks(),
		fs:         testutil.NewRecordingFS(),
		configPath: testutil.CreateFile(t, t.TempDir(), "config.toml", testConfig),
	}
}

func (h *harness) execute(t *testing.T, args ...string) error {
	t.Helper()
	env := Environment{
		Identity: h.privileges,
		FS:       h.fs,
		NewRunner: func(opts runner.Options) runner.Runner {
			h.runnerOpts = opts
			return h.fake
		},
		Config:   config.LoadOptions{SkipFiles: true, SkipEnv: true},
		TempRoot: t.TempDir(),
	}

	cmd := newRootCmd(env)
	cmd.SetOut(&h.stdout)
	cmd.SetErr(&h.stderr)
	cmd.SetArgs(append([]string{"--config", h.configPath, "--format", "text"}, args...))
	return cmd.Execute()
}

func TestRoot_RequiresRoot(t *testing.T) {
	h := newHarness(t)
	h.privileges = testutil.Unprivileged(h.user)

	err := h.execute(t)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPermission))
	assert.Equal(t, 1, errors.ExitCode(err))
	assert.True(t, Reported(err))

	assert.Contains(t, h.stderr.String(), "must be run as root")
	assert.Empty(t, h.fake.Commands)
	assert.Zero(t, h.fs.Mutations)
}

func TestRoot_FullRun(t *testing.T) {
	h := newHarness(t)
	h.fake.Provide("yay")

	require.NoError(t, h.execute(t))

	source := filepath.Join(h.home, "workspace", "config", "nvim")
	target := filepath.Join(h.home, ".config", "nvim")
	assert.Equal(t, []string{
		"pacman -Syu --noconfirm",
		"pacman -S --needed --noconfirm git zsh",
		"yay -S --needed --noconfirm spotify",
		"test -e " + source,
		"mkdir -p -- " + filepath.Join(h.home, ".config"),
		"ln -s -- " + source + " " + target,
	}, h.fake.CommandLines())
	testutil.AssertSymlink(t, target, source)

	out := h.stdout.String()
	assert.Contains(t, out, "==> System upgrade")
	assert.Contains(t, out, "Summary")
	assert.Empty(t, h.stderr.String())
}

func TestRoot_PropagatesExitStatus(t *testing.T) {
	h := newHarness(t)
	h.fake.Respond("pacman -Syu", testutil.Response{Status: 3})

	err := h.execute(t)
	require.Error(t, err)
	assert.Equal(t, 3, errors.ExitCode(err))
	assert.True(t, Reported(err))
	assert.Len(t, h.fake.Commands, 1)
	assert.Contains(t, h.stderr.String(), "exit status 3")
}

func TestRoot_DryRun(t *testing.T) {
	h := newHarness(t)
	h.fake.Provide("yay")

	require.NoError(t, h.execute(t, "--dry-run"))
	assert.True(t, h.runnerOpts.DryRun)
	assert.Zero(t, h.fs.Mutations)
	assert.Contains(t, h.stdout.String(), "dry run")
}

func TestRoot_InvalidConfig(t *testing.T) {
	h := newHarness(t)
	h.configPath = testutil.CreateFile(t, t.TempDir(), "bad.toml", `
[packages]
official = ["spotify"]
community = ["spotify"]
`)

	err := h.execute(t)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfigValid))
	assert.Equal(t, 1, errors.ExitCode(err))
	assert.Empty(t, h.fake.Commands)
}

func TestRoot_InvalidFormat(t *testing.T) {
	h := newHarness(t)

	err := h.execute(t, "--format", "yaml")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
	assert.False(t, Reported(err))
	assert.Empty(t, h.fake.Commands)
}

func TestPlan_JSON(t *testing.T) {
	h := newHarness(t)
	h.privileges = testutil.Unprivileged(h.user)

	require.NoError(t, h.execute(t, "plan", "--format", "json"))

	var plan struct {
		User  string `json:"user"`
		Steps []struct {
			Name string `json:"name"`
		} `json:"steps"`
	}
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &plan))
	assert.Equal(t, h.user.Name, plan.User)
	assert.Len(t, plan.Steps, 6)
	assert.Empty(t, h.fake.Commands, "planning runs nothing")
}

func TestPlan_Markdown(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.execute(t, "plan"))

	out := h.stdout.String()
	assert.Contains(t, out, "# archsetup plan")
	assert.Contains(t, out, "git clone --depth 1 https://aur.archlinux.org/yay.git")
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	h.privileges = testutil.Unprivileged(h.user)
	h.fake.Respond("pacman -Qq", testutil.Response{Output: []byte("git\n")})
	h.fake.Respond("pacman -Qqm", testutil.Response{Status: 1})

	require.NoError(t, h.execute(t, "status"))

	out := h.stdout.String()
	assert.Contains(t, out, "Official packages 1/2 installed")
	assert.Contains(t, out, "missing: zsh")
	assert.Contains(t, out, "yay not installed")
	assert.Contains(t, out, "absent")
	assert.Zero(t, h.fs.Mutations)
}

func TestGenConfig(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.execute(t, "genconfig"))

	out := h.stdout.String()
	assert.Contains(t, out, "[packages]")
	assert.Contains(t, out, "spotify")
	assert.Contains(t, out, "[helper]")
}

func TestGenConfig_SetOverrides(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.execute(t, "genconfig", "--set", "packages.community=zoom,slack-desktop"))

	out := h.stdout.String()
	assert.Contains(t, out, "zoom")
	assert.Contains(t, out, "slack-desktop")
	assert.NotContains(t, out, "spotify")
}

func TestGenConfig_MalformedSet(t *testing.T) {
	h := newHarness(t)
	err := h.execute(t, "genconfig", "--set", "helper.name")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.execute(t, "version"))
	assert.Contains(t, h.stdout.String(), "archsetup version dev")
}

func TestCompletion(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.execute(t, "completion", "bash"))
	assert.Contains(t, h.stdout.String(), "archsetup")
}

func TestMan(t *testing.T) {
	h := newHarness(t)
	dir := filepath.Join(t.TempDir(), "man")

	require.NoError(t, h.execute(t, "man", "--dir", dir))
	assert.FileExists(t, filepath.Join(dir, "archsetup.1"))
	assert.FileExists(t, filepath.Join(dir, "archsetup-plan.1"))
}
