// Package paths provides centralized path handling for archsetup.
// It resolves XDG base directories for the log file and user
// configuration, and expands home-relative paths against the home
// directory of the user the run acts on behalf of, which under sudo is
// not the home of the process.
package paths
