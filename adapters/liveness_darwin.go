//go:build darwin

package adapters

import "golang.org/x/sys/unix"

// ProcessAlive reports whether pid still exists, probed by sending signal 0
// (no actual signal delivered) and checking for ESRCH. Any other outcome
// (success, or a permission error) counts as alive.
func ProcessAlive(pid int32) bool {
	err := unix.Kill(int(pid), 0)
	return err != unix.ESRCH
}
