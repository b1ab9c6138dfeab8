package ingest

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"clinrag/internal/log"
)

// ErrLocked is returned when another build of the same corpus is running.
var ErrLocked = errors.New("corpus rebuild already in progress")

// acquireLock creates <dbPath>.lock exclusively and records the pid in it.
// A lock left behind by a process that no longer exists is reclaimed once.
// The returned func removes the lock.
func acquireLock(dbPath string) (func(), error) {
	path := dbPath + ".lock"
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		pid, ok := lockOwner(path)
		if !ok || processAlive(pid) {
			owner := "unknown process"
			if ok {
				owner = "pid " + strconv.Itoa(pid)
			}
			return nil, fmt.Errorf("%w: held by %s; remove %s if no build is running", ErrLocked, owner, path)
		}
		log.Warnw("reclaiming stale build lock", "lock", path, "pid", pid)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale lock: %w", err)
		}
		f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: remove %s if no build is running", ErrLocked, path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create lock: %w", err)
	}
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
	f.Close()

	return func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warnf("remove lock %s: %v", path, err)
		}
	}, nil
}

// lockOwner reads the pid recorded in a lock file.
func lockOwner(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
