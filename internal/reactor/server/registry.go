package server

import (
	"sync"
	"sync/atomic"
)

// registryMu guards only the slice itself, never the flags it holds:
// flipping a flag must never take a lock in a signal-adjacent
// context, so StopAll snapshots the slice under the lock and then
// stores to every flag lock-free.
var (
	registryMu sync.Mutex
	registry   []*atomic.Bool
)

// registerRunning creates a new running flag, set to true, and adds
// it to the process-global registry that the installed SIGINT/SIGTERM
// handler sweeps.
func registerRunning() *atomic.Bool {
	running := &atomic.Bool{}
	running.Store(true)

	registryMu.Lock()
	registry = append(registry, running)
	registryMu.Unlock()

	return running
}

func unregisterRunning(running *atomic.Bool) {
	registryMu.Lock()
	defer registryMu.Unlock()

	for i, r := range registry {
		if r == running {
			registry = append(registry[:i], registry[i+1:]...)

			return
		}
	}
}

// StopAll flips every registered server's running flag to false. It
// is safe to call from a signal handler: the only lock taken guards
// the slice, not the flags.
func StopAll() {
	registryMu.Lock()
	snapshot := make([]*atomic.Bool, len(registry))
	copy(snapshot, registry)
	registryMu.Unlock()

	for _, r := range snapshot {
		r.Store(false)
	}
}
