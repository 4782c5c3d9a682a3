package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// PeersFile is the shape of an optional peers.yaml bootstrap list: a
// supplement to the single BOOTSTRAP_PEER env var for fleets that seed
// from more than one node.
type PeersFile struct {
	Peers []string `yaml:"peers"`
}

// LoadPeersFile reads peers.yaml from path. A missing file is not an
// error: it returns an empty PeersFile, matching the teacher's
// local-config convention of never failing startup over an optional
// file.
func LoadPeersFile(path string) (*PeersFile, error) {
	data, err := os.ReadFile(path) // #nosec G304 - operator-controlled config path
	if err != nil {
		if os.IsNotExist(err) {
			return &PeersFile{}, nil
		}
		return nil, fmt.Errorf("read peers file %s: %w", path, err)
	}
	var pf PeersFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse peers file %s: %w", path, err)
	}
	return &pf, nil
}

// WatchPeersFile watches path for writes and invokes onChange with the
// freshly parsed peer list on every debounced write. It runs until ctx
// is canceled. Parse errors are logged and skipped; the previous peer
// list remains in effect.
func WatchPeersFile(ctx context.Context, log *slog.Logger, path string, onChange func([]string)) error {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil // nothing to watch, e.g. default cwd config not set up
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create peers watcher: %w", err)
	}

	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch peers dir %s: %w", dir, err)
	}

	go func() {
		defer func() { _ = watcher.Close() }()

		var debounce *time.Timer
		const debounceDelay = 500 * time.Millisecond

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != filepath.Base(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDelay, func() {
					pf, err := LoadPeersFile(path)
					if err != nil {
						log.Warn("peers file reload failed", "path", path, "error", err)
						return
					}
					onChange(pf.Peers)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("peers watcher error", "error", err)
			}
		}
	}()

	return nil
}
