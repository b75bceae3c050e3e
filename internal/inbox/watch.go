package inbox

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MimeLyc/study-assistant/pkg/file"
	"github.com/MimeLyc/study-assistant/pkg/log"
)

// Watch scans the inbox whenever PDFs are created or written in it, after
// a quiet period of cfg.Debounce. It blocks until ctx is done.
func (i *Inbox) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Add(i.cfg.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", i.cfg.Dir, err)
	}

	i.setWatching(true)
	defer i.setWatching(false)
	log.Info("Watching inbox %s", i.cfg.Dir)

	trigger := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !file.IsPDF(e.Name) || e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(i.cfg.Debounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})
		case <-trigger:
			if _, err := i.Scan(ctx); err != nil && ctx.Err() == nil {
				log.Error("Inbox scan of %s failed: %v", i.cfg.Dir, err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("Inbox watcher error: %v", err)
		}
	}
}

func (i *Inbox) setWatching(v bool) {
	i.mu.Lock()
	i.watching = v
	i.mu.Unlock()
}
