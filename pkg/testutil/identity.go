package testutil

import (
	"os"
	"testing"

	"github.com/arthur-debert/archsetup/pkg/identity"
)

// Invoker returns a user with the test process's own uid and gid and the
// given home. Commands run as this user need no credential switch, and
// chown calls made on its behalf succeed unprivileged.
func Invoker(t *testing.T, home string) *identity.User {
	t.Helper()

	return &identity.User{
		Name:   "alice",
		UID:    uint32(os.Getuid()),
		GID:    uint32(os.Getgid()),
		Groups: []uint32{uint32(os.Getgid())},
		Home:   home,
	}
}

// Privileges is a fixed answer to the privilege check and invoker lookup
type Privileges struct {
	EUID       int
	User       *identity.User
	InvokerErr error
}

// Root is an elevated process acting on behalf of invoker
func Root(invoker *identity.User) *Privileges {
	return &Privileges{EUID: identity.SuperuserUID, User: invoker}
}

// Unprivileged is a process run directly by a regular user
func Unprivileged(invoker *identity.User) *Privileges {
	return &Privileges{EUID: 1000, User: invoker}
}

func (p *Privileges) RequireSuperuser() error {
	return identity.CheckSuperuser(p.EUID)
}

func (p *Privileges) Invoker() (*identity.User, error) {
	if p.InvokerErr != nil {
		return nil, p.InvokerErr
	}
	return p.User, nil
}

func (p *Privileges) Current() (*identity.User, error) {
	return p.User, nil
}
