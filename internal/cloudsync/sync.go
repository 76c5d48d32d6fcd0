package cloudsync

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/diaryxhq/diaryx/internal/queue"
	"github.com/diaryxhq/diaryx/internal/vfs"
)

// DefaultUploadTimeout is the recommended per-operation timeout for cloud
// uploads (spec §5): exceeding it fails only that action, not the run.
const DefaultUploadTimeout = 300 * time.Second

// Options configures a Sync run.
type Options struct {
	// OnConflict resolves a detected conflict. If nil, every conflict
	// resolves to Skip (both sides left untouched, resurfacing next
	// run) — the same default the original CLI uses when run
	// non-interactively.
	OnConflict func(ConflictInfo) (resolution ConflictResolution, mergedContent []byte)

	// OnProgress receives progress ticks. May be nil.
	OnProgress ProgressFunc

	// UploadTimeout bounds each individual Upload/Download call.
	// Defaults to DefaultUploadTimeout.
	UploadTimeout time.Duration

	// Ignore filters paths out of local scanning. If nil, NewIgnoreList()
	// defaults apply.
	Ignore *IgnoreList
}

// Result summarizes one completed (or failed) Sync run.
type Result struct {
	Uploaded   []string
	Downloaded []string
	Deleted    []string
	Conflicts  []ConflictResolutionResult
	Errors     []error
}

func (o Options) report(p Progress) {
	if o.OnProgress != nil {
		o.OnProgress(p)
	}
}

func (o Options) resolve(c ConflictInfo) (ConflictResolution, []byte) {
	if o.OnConflict == nil {
		return Skip, nil
	}
	return o.OnConflict(c)
}

func (o Options) timeout() time.Duration {
	if o.UploadTimeout > 0 {
		return o.UploadTimeout
	}
	return DefaultUploadTimeout
}

// Sync reconciles fs against provider using and updating store's manifest,
// implementing the five-step algorithm of spec §4.10: detect local
// changes, detect remote changes, detect conflicts, compute actions,
// execute actions — persisting the manifest once at the end (and, best
// effort, after a cancellation, so a dropped run resumes instead of
// redoing completed work).
func Sync(ctx context.Context, fs vfs.FileSystem, provider CloudProvider, store ManifestStore, opts Options) (*Result, error) {
	manifest, err := store.Load(provider.ID())
	if err != nil {
		return nil, fmt.Errorf("cloudsync: load manifest: %w", err)
	}

	ignore := opts.Ignore
	if ignore == nil {
		ignore = NewIgnoreList()
	}

	opts.report(Progress{Stage: StageDetectingLocal, Message: "scanning workspace"})
	locals, err := DetectLocalChanges(ctx, fs, ignore, manifest)
	if err != nil {
		opts.report(Progress{Stage: StageError, Message: err.Error()})
		return nil, err
	}

	opts.report(Progress{Stage: StageDetectingRemote, Message: "listing remote"})
	remote, err := listRemote(ctx, provider, manifest)
	if err != nil {
		opts.report(Progress{Stage: StageError, Message: err.Error()})
		return nil, err
	}

	actions := ComputeSyncActions(locals, remote)
	result := &Result{}

	var uploadQueue, downloadQueue []SyncAction
	var deletes, conflicts []SyncAction
	for _, a := range actions {
		switch a.Kind {
		case ActionUpload:
			uploadQueue = append(uploadQueue, a)
		case ActionDownload:
			downloadQueue = append(downloadQueue, a)
		case ActionDelete:
			deletes = append(deletes, a)
		case ActionConflict:
			conflicts = append(conflicts, a)
		}
	}
	// Smallest transfers first, so a run with one huge attachment and many
	// small notes shows visible progress immediately instead of stalling
	// on the first action.
	uploads := orderBySize(uploadQueue)
	downloads := orderBySize(downloadQueue)

	for i, a := range conflicts {
		opts.report(Progress{Stage: StageUploading, Current: i, Total: len(conflicts), Message: "resolving " + a.Path})
		if !a.Conflict.IsContentDifferent() {
			// Both sides already hold the same bytes: record the path as
			// synced instead of asking the caller to resolve it.
			modMs, _ := fs.ModifiedTimeMs(ctx, a.Path)
			manifest.MarkSynced(a.Path, a.Conflict.LocalHash, "", modMs, modMs)
			continue
		}
		resolution, merged := opts.resolve(a.Conflict)
		res, err := ResolveConflict(ctx, fs, provider, manifest, a.Conflict, resolution, merged)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("conflict %q: %w", a.Path, err))
			continue
		}
		result.Conflicts = append(result.Conflicts, res)
	}

	for i, a := range uploads {
		content, err := fs.ReadBinary(ctx, a.Path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("upload %q: %w", a.Path, err))
			continue
		}
		opts.report(Progress{
			Stage: StageUploading, Current: i, Total: len(uploads),
			Message: fmt.Sprintf("%s (%s)", a.Path, humanize.Bytes(uint64(len(content)))),
		})
		if err := executeUpload(ctx, fs, provider, manifest, a.Path, content, opts.timeout()); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("upload %q: %w", a.Path, err))
			continue
		}
		result.Uploaded = append(result.Uploaded, a.Path)
	}

	for i, a := range downloads {
		opts.report(Progress{
			Stage: StageDownloading, Current: i, Total: len(downloads),
			Message: fmt.Sprintf("%s (%s)", a.Path, humanize.Bytes(uint64(a.RemoteInfo.Size))),
		})
		if err := executeDownload(ctx, fs, provider, manifest, a.Path, opts.timeout()); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("download %q: %w", a.Path, err))
			continue
		}
		result.Downloaded = append(result.Downloaded, a.Path)
	}

	for i, a := range deletes {
		opts.report(Progress{Stage: StageDeleting, Current: i, Total: len(deletes), Message: a.Path})
		if err := executeDelete(ctx, fs, provider, manifest, a.Path, a.Direction); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("delete %q: %w", a.Path, err))
			continue
		}
		result.Deleted = append(result.Deleted, a.Path)
	}

	manifest.LastSyncMs = time.Now().UnixMilli()
	if err := store.Save(manifest); err != nil {
		return result, fmt.Errorf("cloudsync: save manifest: %w", err)
	}

	stage := StageComplete
	if len(result.Errors) > 0 {
		stage = StageError
	}
	opts.report(Progress{Stage: stage, Current: len(actions), Total: len(actions)})
	return result, nil
}

// orderBySize returns actions sorted ascending by Size using
// internal/queue's heap-backed priority queue (lower priority value
// dequeues first, so Size is used directly as the priority).
func orderBySize(actions []SyncAction) []SyncAction {
	if len(actions) == 0 {
		return nil
	}
	pq := queue.NewPriorityQueue[SyncAction]()
	for _, a := range actions {
		pq.Enqueue(a, int(a.Size))
	}
	return pq.DequeueAll()
}

func listRemote(ctx context.Context, provider CloudProvider, m *SyncManifest) ([]RemoteChange, error) {
	if inc, ok := provider.(IncrementalProvider); ok && m.Cursor != "" {
		changes, cursor, err := inc.IncrementalChanges(ctx, m.Cursor)
		if err != nil {
			return nil, err
		}
		m.Cursor = cursor
		return changes, nil
	}
	listing, err := provider.ListRemote(ctx)
	if err != nil {
		return nil, err
	}
	return DetectRemoteChanges(listing, m), nil
}

func executeUpload(ctx context.Context, fs vfs.FileSystem, provider CloudProvider, m *SyncManifest, path string, content []byte, timeout time.Duration) error {
	modMs, _ := fs.ModifiedTimeMs(ctx, path)

	uctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	info, err := provider.Upload(uctx, path, content, modMs)
	if err != nil {
		return err
	}
	m.MarkSynced(path, hashContent(content), info.Version, modMs, modMs)
	return nil
}

func executeDownload(ctx context.Context, fs vfs.FileSystem, provider CloudProvider, m *SyncManifest, path string, timeout time.Duration) error {
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	content, err := provider.Download(dctx, path)
	if err != nil {
		return err
	}
	if err := writeLocal(ctx, fs, path, content); err != nil {
		return err
	}
	modMs, _ := fs.ModifiedTimeMs(ctx, path)
	st, _ := m.GetFile(path)
	m.MarkSynced(path, hashContent(content), st.RemoteVersion, modMs, modMs)
	return nil
}

func executeDelete(ctx context.Context, fs vfs.FileSystem, provider CloudProvider, m *SyncManifest, path string, dir SyncDirection) error {
	switch dir {
	case DirectionUpload:
		if err := provider.DeleteRemote(ctx, path); err != nil {
			return err
		}
	case DirectionDownload:
		if marker, ok := fs.(vfs.SyncWriteMarker); ok {
			marker.MarkSyncWriteStart(path)
			defer marker.MarkSyncWriteEnd(path)
		}
		if err := fs.Delete(ctx, path); err != nil {
			return err
		}
	}
	m.RemoveFile(path)
	return nil
}
