package pacman_test

import (
	"context"
	"testing"

	"github.com/arthur-debert/archsetup/pkg/config"
	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/pacman"
	"github.com/arthur-debert/archsetup/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pacmanConfig() config.Pacman {
	return config.Pacman{
		Binary:           "pacman",
		UpdateArgs:       []string{"-Syu", "--noconfirm"},
		InstallArgs:      []string{"-S", "--needed", "--noconfirm"},
		LocalInstallArgs: []string{"-U", "--needed", "--noconfirm"},
		QueryArgs:        []string{"-Qq"},
		ForeignQueryArgs: []string{"-Qqm"},
	}
}

func TestCommands(t *testing.T) {
	m := pacman.New(testutil.NewFakeRunner(), pacmanConfig())

	update := m.UpdateCommand()
	assert.Equal(t, "pacman -Syu --noconfirm", update.String())
	assert.True(t, update.Mutates)
	assert.Nil(t, update.As, "pacman always runs as the process user")

	assert.Equal(t, "pacman -S --needed --noconfirm git vim", m.InstallCommand([]string{"git", "vim"}).String())
	assert.Equal(t, "pacman -U --needed --noconfirm /tmp/yay.pkg.tar.zst", m.LocalInstallCommand([]string{"/tmp/yay.pkg.tar.zst"}).String())
}

func TestUpdate(t *testing.T) {
	fake := testutil.NewFakeRunner()
	m := pacman.New(fake, pacmanConfig())

	require.NoError(t, m.Update(context.Background()))
	assert.Equal(t, []string{"pacman -Syu --noconfirm"}, fake.CommandLines())
}

func TestUpdate_FailurePropagatesStatus(t *testing.T) {
	fake := testutil.NewFakeRunner().Respond("pacman -Syu", testutil.Response{Status: 1})
	m := pacman.New(fake, pacmanConfig())

	err := m.Update(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPackageManager))
	assert.Equal(t, 1, errors.ExitCode(err))
}

func TestInstall_SingleInvocation(t *testing.T) {
	fake := testutil.NewFakeRunner()
	m := pacman.New(fake, pacmanConfig())

	require.NoError(t, m.Install(context.Background(), []string{"git", "zsh", "tmux"}))
	assert.Equal(t, []string{"pacman -S --needed --noconfirm git zsh tmux"}, fake.CommandLines())
}

func TestInstall_EmptyListIsNoop(t *testing.T) {
	fake := testutil.NewFakeRunner()
	m := pacman.New(fake, pacmanConfig())

	require.NoError(t, m.Install(context.Background(), nil))
	assert.Empty(t, fake.Commands)
}

func TestInstall_Failure(t *testing.T) {
	fake := testutil.NewFakeRunner().Respond("pacman -S", testutil.Response{Status: 8})
	m := pacman.New(fake, pacmanConfig())

	err := m.Install(context.Background(), []string{"no-such-package"})
	require.Error(t, err)
	assert.Equal(t, 8, errors.ExitCode(err))
	assert.Equal(t, []string{"no-such-package"}, errors.GetErrorDetails(err)["packages"])
}

func TestInstallFiles(t *testing.T) {
	fake := testutil.NewFakeRunner()
	m := pacman.New(fake, pacmanConfig())

	err := m.InstallFiles(context.Background(), nil)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))

	require.NoError(t, m.InstallFiles(context.Background(), []string{"/tmp/a.pkg.tar.zst"}))
	assert.True(t, fake.Ran("pacman -U"))
}

func TestInstalledAndForeign(t *testing.T) {
	fake := testutil.NewFakeRunner().
		Respond("pacman -Qqm", testutil.Response{Output: []byte("yay\nspotify\n")}).
		Respond("pacman -Qq", testutil.Response{Output: []byte("git\nzsh\nyay\nspotify\n")})
	m := pacman.New(fake, pacmanConfig())

	installed, err := m.Installed(context.Background())
	require.NoError(t, err)
	assert.Len(t, installed, 4)
	assert.True(t, installed["git"])

	foreign, err := m.Foreign(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"yay": true, "spotify": true}, foreign)
}

func TestForeign_NoMatchesIsEmpty(t *testing.T) {
	fake := testutil.NewFakeRunner().Respond("pacman -Qqm", testutil.Response{Status: 1})
	m := pacman.New(fake, pacmanConfig())

	foreign, err := m.Foreign(context.Background())
	require.NoError(t, err)
	assert.Empty(t, foreign)
}

func TestInstalled_Failure(t *testing.T) {
	fake := testutil.NewFakeRunner().Respond("pacman -Qq", testutil.Response{Status: 2})
	m := pacman.New(fake, pacmanConfig())

	_, err := m.Installed(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPackageManager))
}

func TestParseListAndMissing(t *testing.T) {
	installed := pacman.ParseList([]byte("git\n\n  zsh \n"))
	assert.Equal(t, map[string]bool{"git": true, "zsh": true}, installed)

	assert.Equal(t, []string{"tmux", "fd"}, pacman.Missing([]string{"git", "tmux", "zsh", "fd"}, installed))
	assert.Nil(t, pacman.Missing([]string{"git"}, installed))
}
