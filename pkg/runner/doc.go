// Package runner executes the external programs a provisioning run is made
// of: pacman, git, makepkg and the AUR helper.
//
// A Command may name the user it runs as. Such commands are started with
// that user's credentials and identity environment, so nothing they create
// is owned by root. Commands marked as mutating are only logged in dry-run
// mode; read-only queries always execute.
package runner
