// Package identity answers two questions a provisioning run needs before it
// touches anything: is the process running as the superuser, and who is the
// human that elevated it. User-scoped work (AUR builds, symlinks) runs as
// that human rather than as root.
package identity
