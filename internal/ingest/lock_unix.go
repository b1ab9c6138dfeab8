//go:build unix

package ingest

import (
	"errors"
	"os"
	"syscall"
)

// processAlive sends pid signal 0. EPERM means the process exists but
// belongs to another user.
func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
