// Package provision runs the bootstrap as an ordered list of steps:
//
//  1. privilege check and invoking-user resolution
//  2. system upgrade
//  3. official packages, in one pacman transaction
//  4. AUR helper bootstrap, only when the helper is missing
//  5. community packages, through the helper as the invoking user
//  6. configuration symlinks, owned by the invoking user
//
// A failing step aborts the run and later steps never start. The same
// components back Plan, which lists what a run would execute, and Status,
// which compares the machine against the configuration without changing it.
package provision
