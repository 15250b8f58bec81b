package aur_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arthur-debert/archsetup/pkg/aur"
	"github.com/arthur-debert/archsetup/pkg/config"
	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/identity"
	"github.com/arthur-debert/archsetup/pkg/pacman"
	"github.com/arthur-debert/archsetup/pkg/runner"
	"github.com/arthur-debert/archsetup/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	fake     *testutil.FakeRunner
	fs       *testutil.RecordingFS
	user     *identity.User
	tempRoot string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		fake:     testutil.NewFakeRunner(),
		fs:       testutil.NewRecordingFS(),
		user:     testutil.Invoker(t, t.TempDir()),
		tempRoot: t.TempDir(),
	}
}

func (f *fixture) helper(dryRun bool) *aur.Helper {
	pm := pacman.New(f.fake, config.Pacman{
		Binary:           "pacman",
		InstallArgs:      []string{"-S", "--needed", "--noconfirm"},
		LocalInstallArgs: []string{"-U", "--needed", "--noconfirm"},
	})
	return aur.New(aur.Options{
		Runner: f.fake,
		FS:     f.fs,
		Pacman: pm,
		Config: config.Helper{
			Name:          "yay",
			Repository:    "https://aur.archlinux.org/yay.git",
			Prerequisites: []string{"base-devel", "git", "go"},
			InstallArgs:   []string{"-S", "--needed", "--noconfirm"},
			BuildArgs:     []string{"--noconfirm"},
		},
		User:     f.user,
		TempRoot: f.tempRoot,
		DryRun:   dryRun,
	})
}

// simulateBuild makes the fake makepkg produce a package file and list it
// along with a debug package that was not built, and makes the helper
// appear on PATH once pacman -U runs.
func (f *fixture) simulateBuild(t *testing.T) {
	t.Helper()
	f.fake.RunFunc = func(cmd runner.Command) error {
		line := cmd.String()
		switch {
		case strings.HasPrefix(line, "makepkg --noconfirm"):
			built := filepath.Join(cmd.Dir, "yay-12.4.2-1-x86_64.pkg.tar.zst")
			require.NoError(t, os.MkdirAll(cmd.Dir, 0755))
			require.NoError(t, os.WriteFile(built, []byte("pkg"), 0644))
			listing := built + "\n" + filepath.Join(cmd.Dir, "yay-debug-12.4.2-1-x86_64.pkg.tar.zst") + "\n"
			f.fake.Respond("makepkg --packagelist", testutil.Response{Output: []byte(listing)})
		case strings.HasPrefix(line, "pacman -U"):
			f.fake.Provide("yay")
		}
		return nil
	}
}

func (f *fixture) assertTempRootEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.tempRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "build directory should be removed")
}

func TestEnsure_HelperPresentIsNoop(t *testing.T) {
	f := newFixture(t)
	f.fake.Provide("yay")

	bootstrapped, err := f.helper(false).Ensure(context.Background())
	require.NoError(t, err)
	assert.False(t, bootstrapped)
	assert.Empty(t, f.fake.Commands, "no clone, build or install when the helper exists")
	assert.Zero(t, f.fs.Mutations)
}

func TestEnsure_BootstrapsMissingHelper(t *testing.T) {
	f := newFixture(t)
	f.simulateBuild(t)

	bootstrapped, err := f.helper(false).Ensure(context.Background())
	require.NoError(t, err)
	assert.True(t, bootstrapped)

	lines := f.fake.CommandLines()
	require.Len(t, lines, 5)
	assert.Equal(t, "pacman -S --needed --noconfirm base-devel git go", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "git clone --depth 1 https://aur.archlinux.org/yay.git "+f.tempRoot))
	assert.Equal(t, "makepkg --noconfirm", lines[2])
	assert.Equal(t, "makepkg --packagelist", lines[3])
	assert.True(t, strings.HasPrefix(lines[4], "pacman -U --needed --noconfirm "))
	assert.True(t, strings.HasSuffix(lines[4], "yay-12.4.2-1-x86_64.pkg.tar.zst"), "unbuilt debug package is skipped: %s", lines[4])

	// Recipe work runs as the invoking user, pacman as root.
	for _, cmd := range f.fake.Commands {
		if cmd.Name == "pacman" {
			assert.Nil(t, cmd.As, "%s should run as root", cmd)
		} else {
			require.NotNil(t, cmd.As, "%s should run as the invoking user", cmd)
			assert.Equal(t, "alice", cmd.As.Name)
			assert.True(t, strings.HasPrefix(cmd.Dir, f.tempRoot), "%s should run inside the build directory, not in %q", cmd, cmd.Dir)
		}
	}

	require.Len(t, f.fs.Owned, 1)
	assert.Equal(t, uint32(f.fs.Owned[0].UID), f.user.UID, "build directory handed to the invoking user")
	f.assertTempRootEmpty(t)
}

func TestBootstrap_BuildFailureCleansUp(t *testing.T) {
	f := newFixture(t)
	f.fake.Respond("makepkg --noconfirm", testutil.Response{Status: 4})

	err := f.helper(false).Bootstrap(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrHelperBootstrap))
	assert.Equal(t, 4, errors.ExitCode(err))
	assert.False(t, f.fake.Ran("pacman -U"))
	f.assertTempRootEmpty(t)
}

func TestBootstrap_CloneFailure(t *testing.T) {
	f := newFixture(t)
	f.fake.Respond("git clone", testutil.Response{Status: 128})

	err := f.helper(false).Bootstrap(context.Background())
	require.Error(t, err)
	assert.Equal(t, 128, errors.ExitCode(err))
	assert.False(t, f.fake.Ran("makepkg"))
	f.assertTempRootEmpty(t)
}

func TestBootstrap_PrerequisiteFailure(t *testing.T) {
	f := newFixture(t)
	f.fake.Respond("pacman -S", testutil.Response{Status: 1})

	err := f.helper(false).Bootstrap(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrHelperBootstrap))
	assert.Equal(t, 1, errors.ExitCode(err))
	assert.Zero(t, f.fs.Mutations, "no build directory before prerequisites are in place")
}

func TestBootstrap_NoPackagesProduced(t *testing.T) {
	f := newFixture(t)
	f.fake.Respond("makepkg --packagelist", testutil.Response{Output: []byte("/nonexistent/yay.pkg.tar.zst\n")})

	err := f.helper(false).Bootstrap(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrHelperBootstrap))
	f.assertTempRootEmpty(t)
}

func TestBootstrap_HelperStillMissing(t *testing.T) {
	f := newFixture(t)
	f.simulateBuild(t)
	runFunc := f.fake.RunFunc
	f.fake.RunFunc = func(cmd runner.Command) error {
		if cmd.Name == "pacman" {
			return nil
		}
		return runFunc(cmd)
	}

	err := f.helper(false).Bootstrap(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still not on PATH")
}

func TestBootstrap_DryRun(t *testing.T) {
	f := newFixture(t)

	err := f.helper(true).Bootstrap(context.Background())
	require.NoError(t, err)

	assert.Zero(t, f.fs.Mutations, "dry run creates no build directory")
	assert.True(t, f.fake.Ran("git clone"))
	assert.True(t, f.fake.Ran("makepkg --noconfirm"))
	assert.False(t, f.fake.Ran("makepkg --packagelist"))
	assert.False(t, f.fake.Ran("pacman -U"))
}

func TestBootstrap_RequiresUser(t *testing.T) {
	f := newFixture(t)
	f.user = nil

	err := f.helper(false).Bootstrap(context.Background())
	assert.True(t, errors.IsErrorCode(err, errors.ErrIdentity))
	assert.Empty(t, f.fake.Commands)
}

func TestInstall(t *testing.T) {
	f := newFixture(t)
	f.fake.Provide("yay")

	installed, err := f.helper(false).Install(context.Background(), []string{"spotify", "zoom"})
	require.NoError(t, err)
	assert.True(t, installed)

	require.Len(t, f.fake.Commands, 1)
	cmd := f.fake.Commands[0]
	assert.Equal(t, "yay -S --needed --noconfirm spotify zoom", cmd.String())
	require.NotNil(t, cmd.As)
	assert.Equal(t, "alice", cmd.As.Name, "never as root")
	assert.Equal(t, f.user.Home, cmd.Dir, "runs from the user's home, not root's working directory")
}

func TestInstall_EmptyListSkipsHelper(t *testing.T) {
	f := newFixture(t)

	installed, err := f.helper(false).Install(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, installed)
	assert.Empty(t, f.fake.Commands)
}

func TestInstall_Failure(t *testing.T) {
	f := newFixture(t)
	f.fake.Respond("yay -S", testutil.Response{Status: 1})

	_, err := f.helper(false).Install(context.Background(), []string{"spotify"})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPackageManager))
	assert.Equal(t, 1, errors.ExitCode(err))
}

func TestInstall_RequiresUser(t *testing.T) {
	f := newFixture(t)
	f.user = nil

	_, err := f.helper(false).Install(context.Background(), []string{"spotify"})
	assert.True(t, errors.IsErrorCode(err, errors.ErrIdentity))
}
