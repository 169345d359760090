package site

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/slinkity/slinkity/plugin"
)

// Debounce is how long the watcher waits for more changes before
// rebuilding.
var Debounce = 100 * time.Millisecond

// Watch rebuilds the site whenever files under Input or extra change,
// triggering plugin.BeforeWatch with the changed files first. onBuild, if
// set, sees the outcome of each rebuild. Watch blocks until ctx is done.
func (s *Site) Watch(ctx context.Context, extra []string, onBuild func(changed []string, err error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, root := range append([]string{s.input}, extra...) {
		if err := s.watchDirs(watcher, root); err != nil {
			return err
		}
	}

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending = make(map[string]struct{})
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isWatchEvent(event.Op) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !ShouldSkipDir(info.Name()) {
					_ = s.watchDirs(watcher, event.Name)
				}
			}
			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(Debounce)
			} else {
				timer.Reset(Debounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.opts.Logger.Warn("watch error", "error", err)

		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			pending = make(map[string]struct{})

			err := s.Rebuild(ctx, changed)
			if err != nil {
				s.opts.Logger.Error("rebuild failed", "error", err)
			}
			if onBuild != nil {
				onBuild(changed, err)
			}
		}
	}
}

// Rebuild triggers plugin.BeforeWatch for changed and builds again.
func (s *Site) Rebuild(ctx context.Context, changed []string) error {
	if err := s.hooks.Trigger(ctx, plugin.Event{Hook: plugin.BeforeWatch, ChangedFiles: changed}); err != nil {
		return err
	}
	_, err := s.Build(ctx)
	return err
}

// watchDirs adds root and its subdirectories, leaving out a disk output
// directory so writes never retrigger a build.
func (s *Site) watchDirs(watcher *fsnotify.Watcher, root string) error {
	outDir := s.outputDir()
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if abs, _ := filepath.Abs(p); abs == outDir {
			return filepath.SkipDir
		}
		if p != root && (d.Name() == ".git" || d.Name() == "node_modules") {
			return filepath.SkipDir
		}
		return watcher.Add(p)
	})
}

func isWatchEvent(op fsnotify.Op) bool {
	return op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}
