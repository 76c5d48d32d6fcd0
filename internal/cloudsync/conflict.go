package cloudsync

import (
	"context"
	"fmt"

	"github.com/diaryxhq/diaryx/internal/vfs"
)

// ConflictResolutionResult records what ResolveConflict actually did, for
// the caller to report back to a user (ported from conflict.rs's
// ConflictResolutionResult).
type ConflictResolutionResult struct {
	Path        string
	Resolution  ConflictResolution
	SiblingPath string // set when Resolution is KeepBoth
}

// ResolveConflict applies resolution to conflict, reading/writing through
// fs and the provider as needed, and returns the outcome. mergedContent is
// only consulted when resolution is Merge.
//
// Every filesystem mutation is bracketed with SyncWriteMarker the same way
// internal/crdtfs.FS brackets its own replay writes (spec §4.2/§7), so a
// watcher sitting above fs does not mistake this resolution's write for a
// fresh local edit and feed it back into the next DetectLocalChanges pass.
func ResolveConflict(
	ctx context.Context,
	fs vfs.FileSystem,
	provider CloudProvider,
	m *SyncManifest,
	conflict ConflictInfo,
	resolution ConflictResolution,
	mergedContent []byte,
) (ConflictResolutionResult, error) {
	result := ConflictResolutionResult{Path: conflict.Path, Resolution: resolution}

	switch resolution {
	case Skip:
		return result, nil

	case KeepLocal:
		content, err := fs.ReadBinary(ctx, conflict.Path)
		if err != nil {
			return result, fmt.Errorf("cloudsync: read local %q: %w", conflict.Path, err)
		}
		info, err := provider.Upload(ctx, conflict.Path, content, conflict.LocalModifiedMs)
		if err != nil {
			return result, fmt.Errorf("cloudsync: upload %q: %w", conflict.Path, err)
		}
		m.MarkSynced(conflict.Path, hashContent(content), info.Version, conflict.LocalModifiedMs, conflict.LocalModifiedMs)
		return result, nil

	case KeepRemote:
		if err := writeRemoteToLocal(ctx, fs, provider, m, conflict.Path); err != nil {
			return result, err
		}
		return result, nil

	case KeepBoth:
		sibling := conflict.ConflictFileName()
		content, err := fs.ReadBinary(ctx, conflict.Path)
		if err != nil {
			return result, fmt.Errorf("cloudsync: read local %q: %w", conflict.Path, err)
		}
		if err := writeLocal(ctx, fs, sibling, content); err != nil {
			return result, fmt.Errorf("cloudsync: write conflict sibling %q: %w", sibling, err)
		}
		info, err := provider.Upload(ctx, sibling, content, conflict.LocalModifiedMs)
		if err != nil {
			return result, fmt.Errorf("cloudsync: upload conflict sibling %q: %w", sibling, err)
		}
		m.MarkSynced(sibling, hashContent(content), info.Version, conflict.LocalModifiedMs, conflict.LocalModifiedMs)
		if err := writeRemoteToLocal(ctx, fs, provider, m, conflict.Path); err != nil {
			return result, err
		}
		result.SiblingPath = sibling
		return result, nil

	case Merge:
		if err := writeLocal(ctx, fs, conflict.Path, mergedContent); err != nil {
			return result, fmt.Errorf("cloudsync: write merged %q: %w", conflict.Path, err)
		}
		info, err := provider.Upload(ctx, conflict.Path, mergedContent, conflict.LocalModifiedMs)
		if err != nil {
			return result, fmt.Errorf("cloudsync: upload merged %q: %w", conflict.Path, err)
		}
		m.MarkSynced(conflict.Path, hashContent(mergedContent), info.Version, conflict.LocalModifiedMs, conflict.LocalModifiedMs)
		return result, nil

	default:
		return result, fmt.Errorf("cloudsync: unknown conflict resolution %d", resolution)
	}
}

func writeRemoteToLocal(ctx context.Context, fs vfs.FileSystem, provider CloudProvider, m *SyncManifest, path string) error {
	content, err := provider.Download(ctx, path)
	if err != nil {
		return fmt.Errorf("cloudsync: download %q: %w", path, err)
	}
	if err := writeLocal(ctx, fs, path, content); err != nil {
		return fmt.Errorf("cloudsync: write downloaded %q: %w", path, err)
	}
	now, _ := fs.ModifiedTimeMs(ctx, path)
	m.MarkSynced(path, hashContent(content), "", now, now)
	return nil
}

func writeLocal(ctx context.Context, fs vfs.FileSystem, path string, content []byte) error {
	if marker, ok := fs.(vfs.SyncWriteMarker); ok {
		marker.MarkSyncWriteStart(path)
		defer marker.MarkSyncWriteEnd(path)
	}
	return fs.WriteBinary(ctx, path, content)
}
