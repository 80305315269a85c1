// Package watcher reacts to reindex triggers dropped into the project
// state directory by external hook scripts (git hooks, editors). A
// trigger is a small JSON sentinel file; the watcher claims it
// atomically and schedules an incremental run.
package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// TriggerFileName is the sentinel file external scripts create.
const TriggerFileName = "reindex-trigger.json"

// triggerMaxAge is how old a trigger may be and still fire. Older
// triggers are leftovers from a process that was not running and are
// discarded.
const triggerMaxAge = 5 * time.Minute

// DefaultPollInterval backs up the filesystem notifications.
const DefaultPollInterval = 10 * time.Second

// Trigger is the sentinel file payload.
type Trigger struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"trigger,omitempty"`
	Files     []string  `json:"changedFiles,omitempty"`
}

// Handler processes a claimed trigger, typically by scheduling an
// incremental reindex.
type Handler func(ctx context.Context, t Trigger)

// Watcher polls and listens for trigger files in one state directory.
type Watcher struct {
	dataDir  string
	interval time.Duration
	handler  Handler
	logger   *slog.Logger
}

// New creates a watcher over the project state directory.
func New(dataDir string, interval time.Duration, handler Handler, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{dataDir: dataDir, interval: interval, handler: handler, logger: logger}
}

// TriggerPath is where the sentinel file is expected.
func (w *Watcher) TriggerPath() string {
	return filepath.Join(w.dataDir, TriggerFileName)
}

// Run blocks until the context is cancelled, checking for triggers on
// filesystem events and on a polling ticker. The ticker covers
// platforms and mounts where notifications are unreliable.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dataDir, 0o755); err != nil {
		return err
	}

	var events chan fsnotify.Event
	fsw, err := fsnotify.NewWatcher()
	if err == nil {
		defer fsw.Close()
		if err := fsw.Add(w.dataDir); err == nil {
			events = make(chan fsnotify.Event)
			go func() {
				defer close(events)
				for {
					select {
					case ev, ok := <-fsw.Events:
						if !ok {
							return
						}
						select {
						case events <- ev:
						case <-ctx.Done():
							return
						}
					case <-ctx.Done():
						return
					}
				}
			}()
		}
	} else {
		w.logger.Warn("filesystem notifications unavailable, polling only",
			slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// A trigger may already be waiting from before startup.
	w.check(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Name == w.TriggerPath() && ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.check(ctx)
			}
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

// check claims the trigger file if present and dispatches it when
// fresh. Claiming is a rename, so concurrent checkers race for at
// most one winner.
func (w *Watcher) check(ctx context.Context) {
	path := w.TriggerPath()
	claimed := fmt.Sprintf("%s.%d", path, os.Getpid())

	if err := os.Rename(path, claimed); err != nil {
		return // no trigger, or someone else claimed it
	}
	defer os.Remove(claimed)

	raw, err := os.ReadFile(claimed)
	if err != nil {
		w.logger.Warn("unreadable trigger file", slog.String("error", err.Error()))
		return
	}

	var trigger Trigger
	if err := json.Unmarshal(raw, &trigger); err != nil {
		w.logger.Warn("malformed trigger file", slog.String("error", err.Error()))
		return
	}

	if time.Since(trigger.Timestamp) > triggerMaxAge {
		w.logger.Debug("discarding stale trigger",
			slog.Time("timestamp", trigger.Timestamp))
		return
	}

	w.logger.Info("reindex trigger claimed",
		slog.String("source", trigger.Source),
		slog.Int("files", len(trigger.Files)))
	if w.handler != nil {
		w.handler(ctx, trigger)
	}
}

// WriteTrigger drops a trigger file for the running watcher, used by
// hook installers and tests.
func WriteTrigger(dataDir string, t Trigger) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dataDir, "trigger-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dataDir, TriggerFileName))
}
