package filesystem_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arthur-debert/archsetup/pkg/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFS_Links(t *testing.T) {
	fsys := filesystem.NewOS()
	dir := t.TempDir()

	source := filepath.Join(dir, "source")
	require.NoError(t, os.Mkdir(source, 0755))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(source, link))

	info, err := fsys.Lstat(link)
	require.NoError(t, err)
	assert.True(t, filesystem.IsSymlink(info))

	target, err := fsys.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, source, target)

	// Stat follows the link.
	info, err = fsys.Stat(link)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.False(t, filesystem.IsSymlink(info))

	_, err = fsys.Lstat(filepath.Join(dir, "missing"))
	assert.True(t, os.IsNotExist(err))
}

func TestOSFS_TempDirLifecycle(t *testing.T) {
	fsys := filesystem.NewOS()

	dir, err := fsys.MkdirTemp(t.TempDir(), "archsetup-helper-")
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(dir), "archsetup-helper-")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "PKGBUILD"), []byte("pkgname=yay"), 0644))
	require.NoError(t, fsys.RemoveAll(dir))

	_, err = fsys.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestOSFS_ChownToSelf(t *testing.T) {
	fsys := filesystem.NewOS()
	dir := t.TempDir()

	// Chowning to the current owner is permitted for unprivileged users.
	assert.NoError(t, fsys.Chown(dir, os.Getuid(), os.Getgid()))
}
