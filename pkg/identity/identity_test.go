package identity_test

import (
	"bytes"
	"fmt"
	"os/user"
	"testing"

	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/identity"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	users    map[string]*user.User
	groupErr error
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{users: map[string]*user.User{
		"alice": {Uid: "1000", Gid: "1000", Username: "alice", HomeDir: "/home/alice"},
		"root":  {Uid: "0", Gid: "0", Username: "root", HomeDir: "/root"},
	}}
}

func (f *fakeLookup) Lookup(name string) (*user.User, error) {
	if u, ok := f.users[name]; ok {
		return u, nil
	}
	return nil, user.UnknownUserError(name)
}

func (f *fakeLookup) LookupId(uid string) (*user.User, error) {
	for _, u := range f.users {
		if u.Uid == uid {
			return u, nil
		}
	}
	return nil, fmt.Errorf("unknown uid %s", uid)
}

func (f *fakeLookup) GroupIds(u *user.User) ([]string, error) {
	if f.groupErr != nil {
		return nil, f.groupErr
	}
	return []string{u.Gid, "998", "not-a-number"}, nil
}

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func euid(v int) func() int { return func() int { return v } }

func TestRequireSuperuser(t *testing.T) {
	r := identity.NewResolverWith(newFakeLookup(), envFrom(nil), euid(0))
	assert.NoError(t, r.RequireSuperuser())

	r = identity.NewResolverWith(newFakeLookup(), envFrom(nil), euid(1000))
	err := r.RequireSuperuser()
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPermission))
	assert.Equal(t, 1, errors.ExitCode(err))
}

func TestInvoker(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		wantName string
		wantCode errors.ErrorCode
	}{
		{
			name:     "sudo user",
			env:      map[string]string{identity.EnvSudoUser: "alice"},
			wantName: "alice",
		},
		{
			name:     "doas user",
			env:      map[string]string{identity.EnvDoasUser: "alice"},
			wantName: "alice",
		},
		{
			name:     "pkexec uid",
			env:      map[string]string{identity.EnvPkexecUID: "1000"},
			wantName: "alice",
		},
		{
			name:     "sudo takes precedence",
			env:      map[string]string{identity.EnvSudoUser: "alice", identity.EnvPkexecUID: "0"},
			wantName: "alice",
		},
		{
			name:     "no escalation environment",
			env:      map[string]string{},
			wantCode: errors.ErrIdentity,
		},
		{
			name:     "unknown user",
			env:      map[string]string{identity.EnvSudoUser: "mallory"},
			wantCode: errors.ErrIdentity,
		},
		{
			name:     "root invoker rejected",
			env:      map[string]string{identity.EnvSudoUser: "root"},
			wantCode: errors.ErrIdentity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := identity.NewResolverWith(newFakeLookup(), envFrom(tt.env), euid(0))
			u, err := r.Invoker()
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, errors.IsErrorCode(err, tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, u.Name)
			assert.Equal(t, uint32(1000), u.UID)
			assert.Equal(t, uint32(1000), u.GID)
			assert.Equal(t, []uint32{1000, 998}, u.Groups)
			assert.Equal(t, "/home/alice", u.Home)
		})
	}
}

func TestCheckSuperuser(t *testing.T) {
	assert.NoError(t, identity.CheckSuperuser(0))

	err := identity.CheckSuperuser(1000)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPermission))
	assert.Equal(t, 1000, errors.GetErrorDetails(err)["euid"])
}

func TestCurrent(t *testing.T) {
	r := identity.NewResolverWith(newFakeLookup(), envFrom(nil), euid(1000))
	u, err := r.Current()
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Name)
}

func TestUserCredentialAndEnv(t *testing.T) {
	u := &identity.User{Name: "alice", UID: 1000, GID: 100, Groups: []uint32{100, 998}, Home: "/home/alice"}

	cred := u.Credential()
	assert.Equal(t, uint32(1000), cred.Uid)
	assert.Equal(t, uint32(100), cred.Gid)
	assert.Equal(t, []uint32{100, 998}, cred.Groups)

	assert.ElementsMatch(t, []string{"HOME=/home/alice", "USER=alice", "LOGNAME=alice"}, u.Env())
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = previous })
	return &buf
}

func TestInvoker_GroupLookupFailureKeepsPrimaryGroup(t *testing.T) {
	buf := captureLog(t)
	lookup := newFakeLookup()
	lookup.groupErr = fmt.Errorf("nss unavailable")
	r := identity.NewResolverWith(lookup, envFrom(map[string]string{identity.EnvSudoUser: "alice"}), euid(0))

	u, err := r.Invoker()
	require.NoError(t, err)
	assert.Equal(t, []uint32{1000}, u.Groups)
	assert.Equal(t, []uint32{1000}, u.Credential().Groups)
	assert.Contains(t, buf.String(), "nss unavailable")
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestInvoker_UnparsableGroupIsLogged(t *testing.T) {
	buf := captureLog(t)
	r := identity.NewResolverWith(newFakeLookup(), envFrom(map[string]string{identity.EnvSudoUser: "alice"}), euid(0))

	u, err := r.Invoker()
	require.NoError(t, err)
	assert.Equal(t, []uint32{1000, 998}, u.Groups)
	assert.Contains(t, buf.String(), "not-a-number")
}

func TestUser_Getenv(t *testing.T) {
	t.Setenv("HOME", "/root")
	t.Setenv("LANG", "C.UTF-8")
	u := &identity.User{Name: "alice", Home: "/home/alice"}

	assert.Equal(t, "/home/alice", u.Getenv("HOME"))
	assert.Equal(t, "alice", u.Getenv("USER"))
	assert.Equal(t, "alice", u.Getenv("LOGNAME"))
	assert.Equal(t, "C.UTF-8", u.Getenv("LANG"))
}
