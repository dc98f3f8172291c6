package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors path and calls onChange with each newly loaded Config until
// ctx is cancelled. A reload that fails is logged and onChange is not called,
// so the previous configuration stays in use.
//
// The parent directory is watched rather than the file: editors and
// ConfigMap mounts replace the file by renaming over it, which ends a watch
// held on the old inode.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path)

	target := resolve(path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// A symlinked file changes when its target is swapped, and the
			// event then names the link directory, not path.
			next := resolve(path)
			if filepath.Clean(event.Name) != path && next == target {
				continue
			}
			target = next

			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed, keeping previous configuration",
					"path", path, "err", err)
				continue
			}

			slog.Info("config: reloaded", "path", path, "queries", len(cfg.Queries))
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

// resolve returns the file path points at, or "" when it cannot be resolved.
func resolve(path string) string {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return ""
	}
	return resolved
}
