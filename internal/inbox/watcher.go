package inbox

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay is how long a file must stay quiet before it is imported, so
// that editors and copies finish writing first.
const settleDelay = 300 * time.Millisecond

// Watch imports pending files, then keeps importing new ones as fsnotify
// reports them until ctx is cancelled. onImport, if non-nil, is called
// after every pass that imported at least one file.
func (in *Inbox) Watch(ctx context.Context, onImport func(n int)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(in.fs.Root()); err != nil {
		return err
	}
	in.logger.Info("inbox: watching", slog.String("root", in.fs.Root()))

	run := func() {
		n, err := in.Sync(ctx)
		if err != nil {
			in.logger.Warn("inbox: sync failed", slog.String("error", err.Error()))
			return
		}
		if n > 0 && onImport != nil {
			onImport(n)
		}
	}
	run()

	var settle *time.Timer
	var settleCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if settle != nil {
				settle.Stop()
			}
			in.logger.Info("inbox: watcher stopped")
			return nil

		case <-settleCh:
			settleCh = nil
			run()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !pending(filepath.Base(ev.Name)) {
				continue
			}
			in.logger.Debug("inbox: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			if settle == nil {
				settle = time.NewTimer(settleDelay)
			} else {
				settle.Reset(settleDelay)
			}
			settleCh = settle.C

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			in.logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
