package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events editors produce on save.
const DefaultDebounce = 200 * time.Millisecond

// TemplateWatcher calls Reload after the template file is written or replaced.
type TemplateWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	dir      string
	debounce time.Duration
	reload   func(path string)
	log      *slog.Logger
}

// NewTemplateWatcher watches the directory holding path, so atomic
// rename-over saves are seen as well as in-place writes.
func NewTemplateWatcher(path string, reload func(path string), log *slog.Logger) (*TemplateWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	dir := filepath.Dir(abs)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}
	log.Info("Watching template", "path", abs)

	return &TemplateWatcher{
		watcher:  watcher,
		path:     abs,
		dir:      dir,
		debounce: DefaultDebounce,
		reload:   reload,
		log:      log,
	}, nil
}

// SetDebounce overrides the quiet period before a reload fires.
func (tw *TemplateWatcher) SetDebounce(d time.Duration) {
	tw.debounce = d
}

// Run processes events until ctx is done and then closes the watcher.
func (tw *TemplateWatcher) Run(ctx context.Context) error {
	defer tw.watcher.Close()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-tw.watcher.Events:
			if !ok {
				return nil
			}
			if !tw.matches(event) {
				continue
			}
			tw.log.Debug("template changed", "path", event.Name, "op", event.Op.String())
			timer.Reset(tw.debounce)

		case err, ok := <-tw.watcher.Errors:
			if !ok {
				return nil
			}
			tw.log.Warn("Filesystem watcher error", "error", err)

		case <-timer.C:
			tw.reload(tw.path)
		}
	}
}

func (tw *TemplateWatcher) matches(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != tw.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}
