package workspace

import (
	"context"
	"log/slog"

	"github.com/rjeczalik/notify"

	"github.com/diaryxhq/diaryx/internal/pathutil"
)

// Watcher observes filesystem events below a workspace's root that did not
// originate from the Workspace's own decorator stack (an external editor,
// a second process, a cloud-sync download landing outside a
// MarkSyncWrite bracket) and folds each changed file back into the CRDT
// layer by replaying it through Workspace.FS.
//
// Grounded on internal/client/sync3/file_watcher.go's notify.Watch/Stop
// pair, generalized from syftbox's bare event-forwarding (callers drained
// fw.Events() themselves) to a self-contained loop that performs the
// re-ingestion spec §4.2/§7 requires of any writer outside the decorated
// stack.
type Watcher struct {
	ws     *Workspace
	events chan notify.EventInfo
	stop   chan struct{}

	// echo tracks the content this watcher itself last wrote back through
	// Workspace.FS for a given path, so the notify event that write
	// produces can be recognized as an echo and dropped rather than
	// re-ingested a second time. Only touched from loop's goroutine.
	echo map[string]string
}

// NewWatcher returns a Watcher for ws, not yet started.
func NewWatcher(ws *Workspace) *Watcher {
	return &Watcher{ws: ws, events: make(chan notify.EventInfo, 64), stop: make(chan struct{}), echo: make(map[string]string)}
}

// Start begins watching ws.Root recursively for writes, reconciling each
// one against the CRDT stack in a background goroutine. Call Stop to
// release the watch.
func (w *Watcher) Start() error {
	recursive := w.ws.Root + "/..."
	if err := notify.Watch(recursive, w.events, notify.Write, notify.Create); err != nil {
		return err
	}
	go w.loop()
	slog.Info("workspace watcher started", "root", w.ws.Root)
	return nil
}

// Stop releases the watch and signals the background loop to exit. It
// returns without waiting for the loop to finish.
func (w *Watcher) Stop() {
	notify.Stop(w.events)
	close(w.stop)
}

func (w *Watcher) loop() {
	ctx := context.Background()
	for {
		select {
		case ev, ok := <-w.events:
			if !ok {
				return
			}
			w.handle(ctx, ev)
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev notify.EventInfo) {
	rel := pathutil.RelativeTo(w.ws.Root, ev.Path())
	if w.ws.Events.IsSyncWrite(rel) {
		// Already bracketed by a CRDT replay or a cloud-sync write;
		// re-ingesting it here would double-apply the same change.
		return
	}

	content, err := w.ws.FS.ReadText(ctx, rel)
	if err != nil {
		slog.Warn("workspace watcher: read changed file", "path", rel, "error", err)
		return
	}

	// The reingest write below lands back on disk with identical bytes
	// (the file is already there; the write exists only to run crdtfs's
	// ingest path) and notify reports it right back to this watcher. If
	// the content matches what we just echoed, this is that reflection —
	// drop it instead of ingesting the same change twice.
	if last, ok := w.echo[rel]; ok && last == content {
		delete(w.echo, rel)
		return
	}

	w.echo[rel] = content
	if err := w.ws.FS.WriteText(ctx, rel, content); err != nil {
		slog.Warn("workspace watcher: reingest changed file", "path", rel, "error", err)
	}
}
