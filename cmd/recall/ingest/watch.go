package ingestcmder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/papercomputeco/recall/pkg/cliui"
)

// watchFiles follows files for appended lines until ctx is done. Parent
// directories are watched so that files replaced by editors or log rotation
// keep being followed.
func (c *ingestCommander) watchFiles(ctx context.Context, files []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	tails := make(map[string]*tailer, len(files))
	dirs := map[string]bool{}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", f, err)
		}

		var size int64
		if info, err := os.Stat(abs); err == nil {
			size = info.Size()
		}
		tails[abs] = newTailer(abs, size, c.now)

		dir := filepath.Dir(abs)
		if !dirs[dir] {
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("watching %s: %w", dir, err)
			}
			dirs[dir] = true
		}
	}

	fmt.Fprintf(c.out, "\n  %s Watching %d file(s) for new messages %s\n\n",
		cliui.DimStyle.Render("●"),
		len(tails),
		cliui.DimStyle.Render("(ctrl+c to stop)"),
	)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	dirty := map[string]bool{}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if _, tracked := tails[event.Name]; !tracked {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if len(dirty) == 0 {
				timer.Reset(c.debounce)
			}
			dirty[event.Name] = true

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("watch error", "error", err)

		case <-timer.C:
			for path := range dirty {
				c.drain(ctx, tails[path])
			}
			clear(dirty)
		}
	}
}

// drain ingests whatever t has accumulated. Failures are logged so a bad line
// does not stop the watch.
func (c *ingestCommander) drain(ctx context.Context, t *tailer) {
	msgs, err := t.next()
	if err != nil {
		c.logger.Warn("skipping malformed messages", "file", t.path, "error", err)
	}
	if len(msgs) == 0 {
		return
	}

	if err := c.ingest(ctx, msgs); err != nil {
		c.logger.Error("ingesting appended messages failed", "file", t.path, "error", err)
		return
	}

	for _, m := range msgs {
		c.logger.Debug("ingested appended message", "id", m.ID, "session_id", m.SessionID)
	}
}

