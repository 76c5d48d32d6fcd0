package cloudsync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/diaryxhq/diaryx/internal/vfs"
)

// hashContent returns the content-addressed hash used to detect whether a
// file actually changed, independent of mtime (manifest.rs and change.rs
// both key "modified" detection off a content hash, not a timestamp,
// since mtimes survive copies/restores unreliably).
func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// DetectLocalChanges walks fs and compares every file's content hash
// against m, returning one LocalChange per file that is new, modified, or
// (recorded in m but now absent) deleted. Grounded on
// internal/client/sync3/sync_engine.go's local-scan phase, generalized
// from its os.Stat-based size/mtime comparison to a content hash so that a
// touch-without-edit never triggers a spurious upload.
func DetectLocalChanges(ctx context.Context, fs vfs.FileSystem, ignore *IgnoreList, m *SyncManifest) ([]LocalChange, error) {
	entries, err := fs.ListRecursive(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("cloudsync: list workspace: %w", err)
	}

	seen := make(map[string]bool, len(entries))
	var changes []LocalChange
	for _, path := range entries {
		if ignore != nil && ignore.ShouldIgnore(path) {
			continue
		}
		isDir, err := fs.IsDir(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("cloudsync: stat %q: %w", path, err)
		}
		if isDir {
			continue
		}
		seen[path] = true

		content, err := fs.ReadBinary(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("cloudsync: read %q: %w", path, err)
		}
		hash := hashContent(content)
		modMs, _ := fs.ModifiedTimeMs(ctx, path)

		prior, tracked := m.GetFile(path)
		switch {
		case !tracked:
			changes = append(changes, LocalChange{Path: path, Kind: Created, ContentHash: hash, ModifiedAtMs: modMs, Size: int64(len(content))})
		case prior.LocalHash != hash:
			changes = append(changes, LocalChange{
				Path: path, Kind: Modified, ContentHash: hash, ModifiedAtMs: modMs, PreviousHash: prior.LocalHash, Size: int64(len(content)),
			})
		}
	}

	for path, st := range m.Files {
		if !seen[path] && !st.LocallyDeleted {
			changes = append(changes, LocalChange{Path: path, Kind: Deleted})
		}
	}
	return changes, nil
}

// DetectRemoteChanges compares a provider's current listing against m,
// returning one RemoteChange per file new, modified (by version/etag, or
// by content hash if the provider exposes one), or deleted.
func DetectRemoteChanges(remote []RemoteFileInfo, m *SyncManifest) []RemoteChange {
	seen := make(map[string]bool, len(remote))
	var changes []RemoteChange
	for _, info := range remote {
		seen[info.Path] = true
		prior, tracked := m.GetFile(info.Path)
		switch {
		case !tracked:
			changes = append(changes, RemoteChange{Path: info.Path, Kind: Created, Info: info})
		case remoteDiffers(prior, info):
			changes = append(changes, RemoteChange{
				Path: info.Path, Kind: Modified, Info: info, PreviousVersion: prior.RemoteVersion,
			})
		}
	}
	for path, st := range m.Files {
		if !seen[path] && !st.LocallyDeleted {
			changes = append(changes, RemoteChange{Path: path, Kind: Deleted})
		}
	}
	return changes
}

func remoteDiffers(prior FileSyncState, info RemoteFileInfo) bool {
	if info.ContentHash != "" && prior.LocalHash != "" {
		return info.ContentHash != prior.LocalHash
	}
	return info.Version != prior.RemoteVersion
}

// DetectConflicts finds paths changed on both sides since the last sync —
// ported from change.rs's detect_conflicts: a conflict exists wherever a
// LocalChange and a RemoteChange name the same path and neither is a
// matching pair of deletes (both-deleted is not a conflict, it's
// agreement).
func DetectConflicts(locals []LocalChange, remotes []RemoteChange) []ConflictInfo {
	remoteByPath := make(map[string]RemoteChange, len(remotes))
	for _, r := range remotes {
		remoteByPath[r.Path] = r
	}

	var conflicts []ConflictInfo
	for _, l := range locals {
		r, ok := remoteByPath[l.Path]
		if !ok {
			continue
		}
		if l.Kind == Deleted && r.Kind == Deleted {
			continue
		}
		conflicts = append(conflicts, ConflictInfo{
			Path:             l.Path,
			LocalModifiedMs:  l.ModifiedAtMs,
			RemoteModifiedMs: r.Info.ModifiedAtMs,
			LocalHash:        l.ContentHash,
			RemoteHash:       r.Info.ContentHash,
		})
	}
	return conflicts
}

// ComputeSyncActions turns detected changes into the concrete work list —
// ported from change.rs's compute_sync_actions. Conflicts are computed
// first and their paths excluded from the straightforward upload/download
// passes, so a path never gets both a Conflict action and an Upload or
// Download action in the same result.
func ComputeSyncActions(locals []LocalChange, remotes []RemoteChange) []SyncAction {
	conflicts := DetectConflicts(locals, remotes)
	conflictPaths := make(map[string]bool, len(conflicts))
	for _, c := range conflicts {
		conflictPaths[c.Path] = true
	}

	var actions []SyncAction
	for _, c := range conflicts {
		actions = append(actions, SyncAction{Kind: ActionConflict, Path: c.Path, Conflict: c})
	}

	for _, l := range locals {
		if conflictPaths[l.Path] {
			continue
		}
		switch l.Kind {
		case Created, Modified:
			actions = append(actions, SyncAction{Kind: ActionUpload, Path: l.Path, Size: l.Size})
		case Deleted:
			actions = append(actions, SyncAction{Kind: ActionDelete, Path: l.Path, Direction: DirectionUpload})
		}
	}

	for _, r := range remotes {
		if conflictPaths[r.Path] {
			continue
		}
		switch r.Kind {
		case Created, Modified:
			actions = append(actions, SyncAction{Kind: ActionDownload, Path: r.Path, RemoteInfo: r.Info, Size: r.Info.Size})
		case Deleted:
			actions = append(actions, SyncAction{Kind: ActionDelete, Path: r.Path, Direction: DirectionDownload})
		}
	}

	return actions
}
