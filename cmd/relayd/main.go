// Command relayd is the sync relay server of spec §4.9: a single
// websocket route that lets workspace replicas exchange
// internal/wireproto frames through an internal/syncroom.Manager, with
// the canonical per-workspace CRDT persisted to a shared SQLite
// database between sessions.
//
// Grounded on cmd/server/main.go (signal-driven shutdown context,
// tint/JSON handler choice gated on an environment variable, optional
// .env load) and internal/server/server.go (http.Server timeout
// configuration, errgroup-based start/stop) — without cobra/viper
// (CLI dispatch is out of scope per spec §1, so a flat flag.FlagSet is
// enough for one binary) and without gin (the relay's only surface is
// this one websocket route).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	"github.com/diaryxhq/diaryx/internal/crdt"
	"github.com/diaryxhq/diaryx/internal/storage"
	"github.com/diaryxhq/diaryx/internal/syncroom"
	"github.com/diaryxhq/diaryx/internal/utils"
)

const (
	defaultAddr     = "localhost:8787"
	defaultDataDir  = ".data"
	relayDBFile     = "relay.db"
	relayReplicaID  = "relay"
	shutdownTimeout = 10 * time.Second

	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
)

func main() {
	slog.SetDefault(slog.New(newLogHandler()))

	addr := flag.String("addr", defaultAddr, "address to bind the websocket route")
	dataDir := flag.String("data-dir", defaultDataDir, "directory holding the relay's CRDT database")
	flag.Parse()

	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("relayd: load .env", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *addr, *dataDir); err != nil {
		slog.Error("relayd", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr, dataDir string) error {
	root, err := utils.ResolvePath(dataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	if err := utils.EnsureDir(root); err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}

	db, err := storage.NewSqliteDB(
		storage.WithPath(filepath.Join(root, relayDBFile)),
		storage.WithMaxOpenConns(runtime.NumCPU()),
	)
	if err != nil {
		return fmt.Errorf("open relay database: %w", err)
	}
	defer db.Close()
	store := storage.NewSqliteStorage(db)

	manager := syncroom.NewManager(nil, loaderFor(store), flusherFor(store))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/{workspaceID}", func(w http.ResponseWriter, r *http.Request) {
		workspaceID := r.PathValue("workspaceID")
		if workspaceID == "" {
			http.Error(w, "missing workspace id", http.StatusBadRequest)
			return
		}
		if err := manager.ServeWS(w, r, workspaceID); err != nil {
			slog.Warn("relayd: websocket session ended", "workspace", workspaceID, "error", err)
		}
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "rooms=%d\n", manager.RoomCount())
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		slog.Info("relayd: listening", "addr", addr, "data_dir", root)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("relayd: shutting down")
		return srv.Shutdown(shCtx)
	})

	return eg.Wait()
}

// loaderFor builds a syncroom.Loader that reads a workspace's canonical
// CRDT state from store, starting a fresh empty document when none is
// recorded yet.
func loaderFor(store *storage.SqliteStorage) syncroom.Loader {
	return func(ctx context.Context, workspaceID string) (*crdt.WorkspaceCrdt, error) {
		wc := crdt.NewWorkspaceCrdt(relayReplicaID)
		state, err := store.LoadDoc(ctx, workspaceID)
		if err != nil {
			return nil, fmt.Errorf("load workspace %q: %w", workspaceID, err)
		}
		if state == nil {
			return wc, nil
		}
		if _, err := wc.ApplyUpdate(state); err != nil {
			return nil, fmt.Errorf("apply saved state for workspace %q: %w", workspaceID, err)
		}
		return wc, nil
	}
}

// flusherFor builds a syncroom.Flusher that snapshots a workspace's
// final CRDT state back to store once its Room has no subscribers left
// (spec §4.9's "flush state to storage" on empty refcount).
func flusherFor(store *storage.SqliteStorage) syncroom.Flusher {
	return func(ctx context.Context, workspaceID string, state *crdt.WorkspaceCrdt) {
		data, err := state.EncodeStateAsUpdate()
		if err != nil {
			slog.Error("relayd: encode workspace state", "workspace", workspaceID, "error", err)
			return
		}
		if err := store.SaveDoc(ctx, workspaceID, data); err != nil {
			slog.Error("relayd: save workspace state", "workspace", workspaceID, "error", err)
		}
	}
}

// newLogHandler picks tint's colorized handler for local development and
// plain JSON under DIARYX_ENV=prod/stage, the same switch cmd/server's
// main.go makes on SYFTBOX_ENV.
func newLogHandler() slog.Handler {
	switch os.Getenv("DIARYX_ENV") {
	case "prod", "stage":
		return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	default:
		return tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelDebug,
			AddSource:  true,
			TimeFormat: time.DateTime,
		})
	}
}
