package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/prism/engine/core"
)

// Watch reloads path whenever it is written or recreated and hands every
// configuration that parses and validates to onChange. Broken edits are
// logged and skipped so the last good pipeline stays up. Watch blocks
// until ctx is done.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	// watch the directory: editors replace files instead of writing them
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	core.LogDebug("watching %s", abs)

	for {
		select {
		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(e.Name) != abs {
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			c, err := Load(abs)
			if err != nil {
				core.LogWarn("config reload skipped: %s", err)
				continue
			}
			core.LogInfo("config %s changed", path)
			onChange(c)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			core.LogError("%s", err)

		case <-ctx.Done():
			return nil
		}
	}
}
