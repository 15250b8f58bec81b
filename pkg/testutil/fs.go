package testutil

import (
	"github.com/arthur-debert/archsetup/pkg/filesystem"
)

// Ownership is a recorded chown call
type Ownership struct {
	Path string
	UID  int
	GID  int
}

// RecordingFS performs real filesystem calls and records ownership changes.
// Mutations counts every call that changes the filesystem.
type RecordingFS struct {
	filesystem.FS
	Owned     []Ownership
	Mutations int
}

// NewRecordingFS wraps the OS filesystem
func NewRecordingFS() *RecordingFS {
	return &RecordingFS{FS: filesystem.NewOS()}
}

func (r *RecordingFS) MkdirTemp(dir, pattern string) (string, error) {
	r.Mutations++
	return r.FS.MkdirTemp(dir, pattern)
}

func (r *RecordingFS) RemoveAll(path string) error {
	r.Mutations++
	return r.FS.RemoveAll(path)
}

func (r *RecordingFS) Chown(name string, uid, gid int) error {
	r.Mutations++
	r.Owned = append(r.Owned, Ownership{Path: name, UID: uid, GID: gid})
	return r.FS.Chown(name, uid, gid)
}

// OwnedPaths returns the paths whose ownership was changed, in order
func (r *RecordingFS) OwnedPaths() []string {
	out := make([]string, 0, len(r.Owned))
	for _, o := range r.Owned {
		out = append(out, o.Path)
	}
	return out
}

var _ filesystem.FS = (*RecordingFS)(nil)
