// Package testutil provides utilities for testing archsetup components.
//
// Key components:
//   - FakeRunner: records commands instead of executing pacman, git or makepkg
//   - RecordingFS: real filesystem calls with ownership changes recorded
//   - Invoker: an identity.User matching the test process, so ownership
//     changes succeed without root
//   - file helpers over t.TempDir()
package testutil
