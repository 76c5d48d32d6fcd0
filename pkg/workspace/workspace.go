// Package workspace wires vfs, crdt, storage, hierarchy, and cloudsync
// into one top-level type a CLI, desktop app, or server constructs to
// open a diaryx workspace (spec §2's build order, assembled end to end).
//
// Grounded on internal/client/workspace/workspace.go's Workspace
// (directory layout fields, Lock/Unlock/Setup over gofrs/flock)
// generalized from a syftbox datasite root to the single-user
// <root>/.diaryx/ layout spec §6 describes.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/diaryxhq/diaryx/internal/cloudsync"
	"github.com/diaryxhq/diaryx/internal/crdt"
	"github.com/diaryxhq/diaryx/internal/crdtfs"
	"github.com/diaryxhq/diaryx/internal/hierarchy"
	"github.com/diaryxhq/diaryx/internal/storage"
	"github.com/diaryxhq/diaryx/internal/utils"
	"github.com/diaryxhq/diaryx/internal/vfs"
	"github.com/diaryxhq/diaryx/pkg/config"
)

const (
	stateDir     = ".diaryx"
	crdtDBFile   = "crdt.db"
	manifestFile = "manifest.db"
	lockFile     = "workspace.lock"

	workspaceDocName = "workspace"
	bodyDocPrefix    = "body:"

	bodyCacheCapacity = 512
)

var ErrLocked = errors.New("workspace: locked by another process")

// Workspace is one opened diaryx workspace: the decorator stack
// (NativeFS -> EventFS -> crdtfs.FS), the CRDT documents it feeds, the
// hierarchy facade over the same stack, and the durable stores backing
// both.
type Workspace struct {
	Root     string
	StateDir string
	DeviceID string

	// Config is this workspace's optional external-collaborator
	// configuration (spec §6); Default() when no config.json exists.
	Config *config.Config

	FS        *crdtfs.FS
	Events    *vfs.EventFS
	Hierarchy *hierarchy.Facade

	CRDT   *crdt.WorkspaceCrdt
	Bodies *crdt.BodyDocManager

	crdtStorage crdt.Storage
	Manifest    cloudsync.ManifestStore

	flock *flock.Flock
}

// Open loads (creating if absent) the workspace rooted at rootDir, using
// deviceID as this process's CRDT replica id. The caller must Close the
// returned Workspace to release its lock and flush CRDT state.
func Open(ctx context.Context, rootDir, deviceID string) (*Workspace, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("workspace: resolve path %q: %w", rootDir, err)
	}
	stateAbs := filepath.Join(root, stateDir)
	if err := utils.EnsureDir(stateAbs); err != nil {
		return nil, fmt.Errorf("workspace: ensure state dir: %w", err)
	}

	lk := flock.New(filepath.Join(stateAbs, lockFile))
	locked, err := lk.TryLock()
	if err != nil {
		return nil, fmt.Errorf("workspace: lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}

	db, err := storage.NewSqliteDB(storage.WithPath(filepath.Join(stateAbs, crdtDBFile)))
	if err != nil {
		_ = lk.Unlock()
		return nil, fmt.Errorf("workspace: open crdt db: %w", err)
	}
	crdtStorage := storage.NewSqliteStorage(db)

	manifest, err := cloudsync.OpenSQLiteManifestStore(filepath.Join(stateAbs, manifestFile))
	if err != nil {
		_ = lk.Unlock()
		return nil, fmt.Errorf("workspace: open manifest store: %w", err)
	}

	cfg, err := config.Load(filepath.Join(stateAbs, config.FileName))
	if err != nil {
		_ = lk.Unlock()
		return nil, fmt.Errorf("workspace: load config: %w", err)
	}

	workspaceCrdt := crdt.NewWorkspaceCrdt(deviceID)
	if state, err := crdtStorage.LoadDoc(ctx, workspaceDocName); err != nil {
		_ = lk.Unlock()
		return nil, fmt.Errorf("workspace: load crdt state: %w", err)
	} else if state != nil {
		if _, err := workspaceCrdt.ApplyUpdate(state); err != nil {
			_ = lk.Unlock()
			return nil, fmt.Errorf("workspace: apply saved crdt state: %w", err)
		}
	}

	bodies, err := crdt.NewBodyDocManager(bodyCacheCapacity, deviceID)
	if err != nil {
		_ = lk.Unlock()
		return nil, fmt.Errorf("workspace: init body doc manager: %w", err)
	}
	docNames, err := crdtStorage.ListDocs(ctx)
	if err != nil {
		_ = lk.Unlock()
		return nil, fmt.Errorf("workspace: list crdt docs: %w", err)
	}
	for _, name := range docNames {
		id, ok := parseBodyDocName(name)
		if !ok {
			continue
		}
		state, err := crdtStorage.LoadDoc(ctx, name)
		if err != nil {
			_ = lk.Unlock()
			return nil, fmt.Errorf("workspace: load body %q: %w", name, err)
		}
		if state == nil {
			continue
		}
		if _, err := bodies.ApplyUpdate(id, state, crdt.OriginRemote); err != nil {
			slog.Warn("workspace: skipping unreadable body doc", "doc", name, "error", err)
		}
	}

	native := vfs.NewNativeFS(root)
	events := vfs.NewEventFS(native)
	fs := crdtfs.New(events, workspaceCrdt, bodies)

	return &Workspace{
		Root:        root,
		StateDir:    stateAbs,
		DeviceID:    deviceID,
		Config:      cfg,
		FS:          fs,
		Events:      events,
		Hierarchy:   hierarchy.New(fs),
		CRDT:        workspaceCrdt,
		Bodies:      bodies,
		crdtStorage: crdtStorage,
		Manifest:    manifest,
		flock:       lk,
	}, nil
}

func parseBodyDocName(name string) (crdt.DocID, bool) {
	if len(name) <= len(bodyDocPrefix) || name[:len(bodyDocPrefix)] != bodyDocPrefix {
		return crdt.DocID{}, false
	}
	var id crdt.DocID
	if err := id.UnmarshalText([]byte(name[len(bodyDocPrefix):])); err != nil {
		return crdt.DocID{}, false
	}
	return id, true
}

func bodyDocName(id crdt.DocID) string {
	text, _ := id.MarshalText()
	return bodyDocPrefix + string(text)
}

// Flush persists the current CRDT state (workspace metadata plus every
// body document) to the backing storage. Safe to call periodically and
// on Close.
func (w *Workspace) Flush(ctx context.Context) error {
	state, err := w.CRDT.EncodeStateAsUpdate()
	if err != nil {
		return fmt.Errorf("workspace: encode crdt state: %w", err)
	}
	if err := w.crdtStorage.SaveDoc(ctx, workspaceDocName, state); err != nil {
		return fmt.Errorf("workspace: save crdt state: %w", err)
	}

	bodyStates, err := w.Bodies.SaveAll()
	if err != nil {
		return fmt.Errorf("workspace: encode body state: %w", err)
	}
	for id, data := range bodyStates {
		if err := w.crdtStorage.SaveDoc(ctx, bodyDocName(id), data); err != nil {
			return fmt.Errorf("workspace: save body %v: %w", id, err)
		}
	}
	return nil
}

// Sync reconciles this workspace against provider, persisting the result
// into w.Manifest.
func (w *Workspace) Sync(ctx context.Context, provider cloudsync.CloudProvider, opts cloudsync.Options) (*cloudsync.Result, error) {
	return cloudsync.Sync(ctx, w.FS, provider, w.Manifest, opts)
}

// Close flushes CRDT state, closes the sync manifest store, and releases
// the workspace lock. The CRDT database handle opened by Open is not
// closed.
func (w *Workspace) Close(ctx context.Context) error {
	var errs []error
	if err := w.Flush(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := w.Manifest.Close(); err != nil {
		errs = append(errs, err)
	}
	if !w.flock.Locked() {
		return errors.Join(errs...)
	}
	if err := w.flock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("workspace: unlock: %w", err))
	}
	return errors.Join(errs...)
}
