// Package lock serializes pipeline runs per project with an on-disk
// pid lock.
package lock

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/semantica-dev/semantica/internal/errors"
)

// FileName is the lock file under the project data directory.
const FileName = ".indexing.lock"

// Record is the on-disk lock payload.
type Record struct {
	PID         int       `json:"pid"`
	Operation   string    `json:"operation"`
	Timestamp   time.Time `json:"timestamp"`
	ProjectRoot string    `json:"projectRoot"`
}

// Lock guards one project's pipeline runs. A lock is stale when its
// pid is no longer alive; stale locks are removed transparently.
type Lock struct {
	path        string
	projectRoot string
	logger      *slog.Logger
}

// New creates a lock stored in dataDir (the project's .semantica
// directory).
func New(dataDir, projectRoot string, logger *slog.Logger) *Lock {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lock{
		path:        filepath.Join(dataDir, FileName),
		projectRoot: projectRoot,
		logger:      logger,
	}
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Acquire takes the lock for operation. It returns false when a live
// process already holds it; stale locks are removed and re-acquired.
func (l *Lock) Acquire(operation string) (bool, error) {
	holder, err := l.Holder()
	if err != nil {
		return false, err
	}
	if holder != nil {
		if pidAlive(holder.PID) {
			l.logger.Debug("lock held by live process",
				slog.Int("pid", holder.PID),
				slog.String("operation", holder.Operation))
			return false, nil
		}
		l.logger.Warn("removing stale lock",
			slog.Int("pid", holder.PID),
			slog.Time("timestamp", holder.Timestamp))
		if err := l.Release(); err != nil {
			return false, err
		}
	}

	record := Record{
		PID:         os.Getpid(),
		Operation:   operation,
		Timestamp:   time.Now().UTC(),
		ProjectRoot: l.projectRoot,
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return false, errors.Wrap(errors.KindInternal, "encode lock record", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, errors.Wrap(errors.KindFile, "create data directory", err)
	}

	// O_EXCL closes the race between Holder() and the write: whoever
	// creates the file first wins.
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, errors.Wrap(errors.KindFile, "create lock file", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(data); err != nil {
		_ = os.Remove(l.path)
		return false, errors.Wrap(errors.KindFile, "write lock file", err)
	}
	return true, nil
}

// Release deletes the lock file. Releasing an absent lock is not an
// error.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.KindFile, "remove lock file", err)
	}
	return nil
}

// Holder returns the current lock record, or nil when unlocked. A
// corrupt lock file counts as unlocked; it will be overwritten.
func (l *Lock) Holder() (*Record, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.KindFile, "read lock file", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		l.logger.Warn("corrupt lock file, treating as unlocked", slog.String("path", l.path))
		_ = os.Remove(l.path)
		return nil, nil
	}
	return &record, nil
}

// IsLocked reports whether a live process holds the lock.
func (l *Lock) IsLocked() (bool, error) {
	holder, err := l.Holder()
	if err != nil {
		return false, err
	}
	return holder != nil && pidAlive(holder.PID), nil
}

// KillLockedProcess best-effort-terminates the holder and removes the
// lock. Used by forced incremental runs.
func (l *Lock) KillLockedProcess() error {
	holder, err := l.Holder()
	if err != nil {
		return err
	}
	if holder == nil {
		return nil
	}

	if pidAlive(holder.PID) && holder.PID != os.Getpid() {
		l.logger.Warn("terminating lock holder",
			slog.Int("pid", holder.PID),
			slog.String("operation", holder.Operation))
		if proc, err := os.FindProcess(holder.PID); err == nil {
			_ = proc.Signal(syscall.SIGTERM)
			// Give it a moment to exit before the lock is removed.
			for i := 0; i < 10 && pidAlive(holder.PID); i++ {
				time.Sleep(100 * time.Millisecond)
			}
		}
	}
	return l.Release()
}

// pidAlive probes a pid with the no-op signal 0.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
