// Package filesystem provides the filesystem seam used by archsetup.
//
// The FS interface covers what root does in-process: probing paths,
// reading links, and managing the temporary build directory it hands to
// the invoking user. Anything created in the user's name is made by a
// subprocess running as them.
package filesystem
