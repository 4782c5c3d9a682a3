// Package daemonlock enforces one axiomd process per port: a node
// acquires an exclusive flock on a lock file derived from its port
// before binding its listener, so a second accidental launch on the
// same port fails fast instead of racing for the socket.
package daemonlock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrLocked is returned when another process already holds the lock.
var ErrLocked = errors.New("daemonlock: another axiomd process holds this port's lock")

// Info is the metadata recorded in the lock file, for operators
// inspecting a stale lock by hand.
type Info struct {
	PID       int       `json:"pid"`
	Port      int       `json:"port"`
	DBPath    string    `json:"db_path"`
	StartedAt time.Time `json:"started_at"`
}

// Lock represents a held lock. Close releases it.
type Lock struct {
	file *os.File
}

// Close releases the lock.
func (l *Lock) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Acquire takes the exclusive lock for port, writing Info as JSON into
// the lock file at dir/axiomd-<port>.lock. dir is created if absent.
func Acquire(dir string, port int, dbPath string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("daemonlock: create lock dir %s: %w", dir, err)
	}
	lockPath := filepath.Join(dir, fmt.Sprintf("axiomd-%d.lock", port))

	// #nosec G304 - lockPath is built from a caller-controlled dir and an int port
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("daemonlock: open lock file %s: %w", lockPath, err)
	}

	if err := flockExclusive(f); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLocked) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("daemonlock: lock %s: %w", lockPath, err)
	}

	info := Info{PID: os.Getpid(), Port: port, DBPath: dbPath, StartedAt: time.Now().UTC()}
	_ = f.Truncate(0)
	_, _ = f.Seek(0, 0)
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	_ = enc.Encode(info)
	_ = f.Sync()

	return &Lock{file: f}, nil
}
