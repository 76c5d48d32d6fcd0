package workspace

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/diaryxhq/diaryx/internal/crdt"
)

func TestOpen_InitializesStateDirAndCanWrite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	ws, err := Open(ctx, dir, "device-a")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ws.Close(ctx)

	content := "---\ntitle: Notebook\n---\nhello\n"
	if err := ws.FS.CreateNew(ctx, "index.md", content); err != nil {
		t.Fatalf("CreateNew: %v", err)
	}

	id, meta, ok := ws.CRDT.Get("index.md")
	if !ok {
		t.Fatal("expected index.md to be tracked in the workspace crdt")
	}
	if meta.Title == nil || *meta.Title != "Notebook" {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	body, ok := ws.Bodies.Get(id)
	if !ok || body.Text() != "hello\n" {
		t.Errorf("unexpected body: %v, ok=%v", body, ok)
	}
}

func TestOpen_SecondOpenIsLocked(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	ws, err := Open(ctx, dir, "device-a")
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	defer ws.Close(ctx)

	if _, err := Open(ctx, dir, "device-b"); err != ErrLocked {
		t.Fatalf("second Open = %v, want ErrLocked", err)
	}
}

func TestFlushAndReopen_RestoresCrdtState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	ws, err := Open(ctx, dir, "device-a")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	content := "---\ntitle: Plans\n---\nwrite code\n"
	if err := ws.FS.CreateNew(ctx, "plans.md", content); err != nil {
		t.Fatalf("CreateNew: %v", err)
	}
	if err := ws.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(ctx, dir, "device-a")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close(ctx)

	id, meta, ok := reopened.CRDT.Get("plans.md")
	if !ok {
		t.Fatal("expected plans.md to survive a Close/Open round trip")
	}
	if meta.Title == nil || *meta.Title != "Plans" {
		t.Errorf("unexpected metadata after reopen: %+v", meta)
	}
	body, ok := reopened.Bodies.Get(id)
	if !ok || body.Text() != "write code\n" {
		t.Errorf("unexpected body after reopen: %v, ok=%v", body, ok)
	}
}

func TestBodyDocName_RoundTrips(t *testing.T) {
	id := crdt.NewDocID()
	name := bodyDocName(id)
	got, ok := parseBodyDocName(name)
	if !ok {
		t.Fatalf("parseBodyDocName(%q) failed", name)
	}
	if got != id {
		t.Errorf("round trip = %v, want %v", got, id)
	}
}

func TestParseBodyDocName_RejectsNonBodyNames(t *testing.T) {
	if _, ok := parseBodyDocName(workspaceDocName); ok {
		t.Error("workspace doc name should not parse as a body doc")
	}
	if _, ok := parseBodyDocName("body:not-a-uuid"); ok {
		t.Error("malformed uuid suffix should not parse")
	}
}

func TestOpen_CreatesStateDirUnderRoot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	ws, err := Open(ctx, dir, "device-a")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ws.Close(ctx)

	if ws.StateDir != filepath.Join(ws.Root, stateDir) {
		t.Errorf("StateDir = %q, want under root", ws.StateDir)
	}
}
