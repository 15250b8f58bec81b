package identity

import (
	"os"
	"os/user"
	"strconv"
	"syscall"

	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/logging"
	"golang.org/x/sys/unix"
)

// Environment variables set by privilege escalation tools, in lookup order
const (
	EnvSudoUser  = "SUDO_USER"
	EnvDoasUser  = "DOAS_USER"
	EnvPkexecUID = "PKEXEC_UID"
)

// SuperuserUID is the uid of root
const SuperuserUID = 0

// User is a resolved, non-privileged account
type User struct {
	Name   string
	UID    uint32
	GID    uint32
	Groups []uint32
	Home   string
}

// Credential returns the credential a subprocess needs to run as the user
func (u *User) Credential() *syscall.Credential {
	return &syscall.Credential{
		Uid:    u.UID,
		Gid:    u.GID,
		Groups: u.Groups,
	}
}

// Getenv looks up key as it would read in the user's own session: the
// identity variables come from the account, everything else from the
// process environment
func (u *User) Getenv(key string) string {
	switch key {
	case "HOME":
		return u.Home
	case "USER", "LOGNAME":
		return u.Name
	}
	return os.Getenv(key)
}

// Env returns the environment variables identifying the user, to be laid
// over the process environment of a subprocess running as them
func (u *User) Env() []string {
	return []string{
		"HOME=" + u.Home,
		"USER=" + u.Name,
		"LOGNAME=" + u.Name,
	}
}

// Lookup abstracts the account database so resolution can be tested
type Lookup interface {
	Lookup(name string) (*user.User, error)
	LookupId(uid string) (*user.User, error)
	GroupIds(u *user.User) ([]string, error)
}

type osLookup struct{}

func (osLookup) Lookup(name string) (*user.User, error)  { return user.Lookup(name) }
func (osLookup) LookupId(uid string) (*user.User, error) { return user.LookupId(uid) }
func (osLookup) GroupIds(u *user.User) ([]string, error) { return u.GroupIds() }

// Resolver answers privilege and identity questions for the running process
type Resolver struct {
	lookup  Lookup
	getenv  func(string) string
	geteuid func() int
}

// NewResolver returns a Resolver backed by the OS account database
func NewResolver() *Resolver {
	return &Resolver{
		lookup:  osLookup{},
		getenv:  os.Getenv,
		geteuid: unix.Geteuid,
	}
}

// NewResolverWith returns a Resolver with injected lookups, for tests
func NewResolverWith(lookup Lookup, getenv func(string) string, geteuid func() int) *Resolver {
	return &Resolver{lookup: lookup, getenv: getenv, geteuid: geteuid}
}

// RequireSuperuser fails with a PERMISSION error unless the process runs as root
func (r *Resolver) RequireSuperuser() error {
	return CheckSuperuser(r.geteuid())
}

// CheckSuperuser fails with a PERMISSION error unless euid is root's
func CheckSuperuser(euid int) error {
	if euid != SuperuserUID {
		return errors.New(errors.ErrPermission,
			"archsetup must be run as root; try: sudo archsetup").
			WithDetail("euid", euid)
	}
	return nil
}

// Invoker resolves the original invoking user from the escalation
// environment
func (r *Resolver) Invoker() (*User, error) {
	var (
		u   *user.User
		err error
		via string
	)

	switch {
	case r.getenv(EnvSudoUser) != "":
		via = EnvSudoUser
		u, err = r.lookup.Lookup(r.getenv(EnvSudoUser))
	case r.getenv(EnvDoasUser) != "":
		via = EnvDoasUser
		u, err = r.lookup.Lookup(r.getenv(EnvDoasUser))
	case r.getenv(EnvPkexecUID) != "":
		via = EnvPkexecUID
		u, err = r.lookup.LookupId(r.getenv(EnvPkexecUID))
	default:
		return nil, errors.New(errors.ErrIdentity,
			"cannot determine the invoking user; run through sudo, doas or pkexec")
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrIdentity, "failed to look up invoking user from %s", via)
	}

	resolved, err := r.toUser(u)
	if err != nil {
		return nil, err
	}
	if resolved.UID == SuperuserUID {
		return nil, errors.Newf(errors.ErrIdentity,
			"invoking user %q is root; user-scoped steps must run as a regular user", resolved.Name).
			WithDetail("source", via)
	}
	return resolved, nil
}

// Current resolves the account the process itself runs as, for read-only
// commands that do not need elevation
func (r *Resolver) Current() (*User, error) {
	uid := strconv.Itoa(r.geteuid())
	u, err := r.lookup.LookupId(uid)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrIdentity, "failed to look up uid %s", uid)
	}
	return r.toUser(u)
}

func (r *Resolver) toUser(u *user.User) (*User, error) {
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrIdentity, "invalid uid %q for %s", u.Uid, u.Username)
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrIdentity, "invalid gid %q for %s", u.Gid, u.Username)
	}

	groups := r.groups(u, uint32(gid))

	return &User{
		Name:   u.Username,
		UID:    uint32(uid),
		GID:    uint32(gid),
		Groups: groups,
		Home:   u.HomeDir,
	}, nil
}

// groups lists the user's supplementary groups. The credential of a
// user-scoped subprocess replaces its whole group list, so a failed lookup
// falls back to the primary group rather than to none.
func (r *Resolver) groups(u *user.User, primary uint32) []uint32 {
	logger := logging.GetLogger("identity").With().Str("user", u.Username).Logger()

	ids, err := r.lookup.GroupIds(u)
	if err != nil {
		logger.Warn().Err(err).Msg("Could not list supplementary groups; subprocesses keep only the primary group")
		return []uint32{primary}
	}

	groups := make([]uint32, 0, len(ids))
	for _, id := range ids {
		g, err := strconv.ParseUint(id, 10, 32)
		if err != nil {
			logger.Warn().Str("group", id).Msg("Ignoring unparsable group id")
			continue
		}
		groups = append(groups, uint32(g))
	}
	if len(groups) == 0 {
		groups = append(groups, primary)
	}
	return groups
}
