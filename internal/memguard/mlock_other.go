//go:build !linux && !darwin && !freebsd && !openbsd && !netbsd && !windows

package memguard

// mlock is unavailable on this platform.
func mlock(_ []byte) bool { return false }

// munlock is a no-op on this platform.
func munlock(_ []byte) {}
