package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// settleDelay gives a writer time to finish after the first write event.
// Rewrites truncate before writing, so reading immediately can observe an
// empty or partial file.
const settleDelay = 25 * time.Millisecond

// Watch reloads the config whenever the file changes on disk and hands the
// validated result to onChange. Invalid intermediate writes are logged and
// skipped; the previous config stays in effect. Returns when ctx is done.
//
// The parent directory is watched rather than the file itself: editors that
// rename-and-replace would otherwise drop the watch.
func Watch(ctx context.Context, path string, onChange func(Config), log zerolog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(settleDelay):
			}
			cfg, err := Load(path)
			if err != nil {
				log.Warn().Err(err).Msg("config reload skipped")
				continue
			}
			log.Info().Str("path", path).Msg("config reloaded")
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("config watcher error")
		}
	}
}
