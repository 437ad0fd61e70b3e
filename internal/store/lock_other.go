//go:build !(linux || darwin || freebsd || openbsd || netbsd || dragonfly)

package store

import "os"

// Without flock the state file is only protected by the atomic rename.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
