package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/backlinks/internal/collector"
	"github.com/starford/backlinks/internal/index"
	"github.com/starford/backlinks/internal/noteservice"
	"github.com/starford/backlinks/internal/testutil"
)

func testServer(t *testing.T, notes map[string]string) (*Server, string) {
	t.Helper()

	vaultDir, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	testutil.WriteNotes(t, vaultDir, notes)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	if err := index.Sync(db, store, logger); err != nil {
		t.Fatal(err)
	}

	notices := &collector.Notices{}
	svc := noteservice.NewService(store, db, logger, collector.Options{}, noteservice.WithNotifier(notices))
	return New(svc, notices), vaultDir
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// called directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "collect_backlinks":
		result, err = srv.collectBacklinks(ctx, req)
	case "preview_backlinks":
		result, err = srv.previewBacklinks(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCollectBacklinks(t *testing.T) {
	srv, vaultDir := testServer(t, map[string]string{
		"Topic.md": "",
		"a.md":     "- [[Topic]]\n\t- nested",
	})

	r := callTool(t, srv, "collect_backlinks", map[string]any{"note": "Topic"})
	if r.IsError {
		t.Fatalf("collect failed: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.HasPrefix(text, "Collecting backlinks for \"Topic\"...\nBacklinks collected! Found 1 files. Saved to Topic_backlinks.md\n\n") {
		t.Errorf("result = %q", text)
	}

	data, err := os.ReadFile(filepath.Join(vaultDir, "Topic_backlinks.md"))
	if err != nil {
		t.Fatalf("document not written: %v", err)
	}
	if string(data) != "[[a]]\n\n- [[Topic]]\n\t- nested\n\n" {
		t.Errorf("document = %q", data)
	}

	// Notices from one call must not leak into the next.
	r = callTool(t, srv, "collect_backlinks", map[string]any{"note": "Topic"})
	if strings.Count(resultText(r), "Collecting backlinks") != 1 {
		t.Errorf("notices leaked across calls: %q", resultText(r))
	}
}

func TestCollectBacklinks_BlankNote(t *testing.T) {
	srv, _ := testServer(t, nil)

	r := callTool(t, srv, "collect_backlinks", map[string]any{"note": " "})
	if !r.IsError {
		t.Fatal("expected error for blank note")
	}
	if !strings.HasPrefix(resultText(r), "No active note found") {
		t.Errorf("result = %q", resultText(r))
	}
}

func TestCollectBacklinks_MissingArgument(t *testing.T) {
	srv, _ := testServer(t, nil)

	r := callTool(t, srv, "collect_backlinks", map[string]any{})
	if !r.IsError {
		t.Error("expected error when note is missing")
	}
}

func TestPreviewBacklinks(t *testing.T) {
	srv, vaultDir := testServer(t, map[string]string{
		"Topic.md":  "",
		"Lonely.md": "",
		"a.md":      "[[Topic]]",
	})

	r := callTool(t, srv, "preview_backlinks", map[string]any{"note": "Topic.md"})
	if got := resultText(r); got != "[[a]]\n\n[[Topic]]\n\n" {
		t.Errorf("preview = %q", got)
	}
	if _, err := os.Stat(filepath.Join(vaultDir, "Topic_backlinks.md")); err == nil {
		t.Error("preview must not write")
	}

	r = callTool(t, srv, "preview_backlinks", map[string]any{"note": "Lonely"})
	if got := resultText(r); got != `No backlinks found for "Lonely"` {
		t.Errorf("empty preview = %q", got)
	}
}

func TestListNotes(t *testing.T) {
	srv, _ := testServer(t, map[string]string{
		"a.md":     "a",
		"dir/b.md": "b",
		"dir/c.md": "c",
	})

	r := callTool(t, srv, "list_notes", map[string]any{})
	if got := resultText(r); got != "a.md\ndir/b.md\ndir/c.md" {
		t.Errorf("list = %q", got)
	}

	r = callTool(t, srv, "list_notes", map[string]any{"folder": "dir/"})
	if got := resultText(r); got != "dir/b.md\ndir/c.md" {
		t.Errorf("folder list = %q", got)
	}
}

func TestReadNote(t *testing.T) {
	srv, _ := testServer(t, map[string]string{"test.md": "# Test\nHello"})

	r := callTool(t, srv, "read_note", map[string]any{"path": "test.md"})
	if text := resultText(r); text != "# Test\nHello" {
		t.Errorf("read result = %q", text)
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t, nil)
	r := callTool(t, srv, "read_note", map[string]any{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestReadNoteInvalidPath(t *testing.T) {
	srv, _ := testServer(t, nil)
	r := callTool(t, srv, "read_note", map[string]any{"path": "../outside.md"})
	if !r.IsError {
		t.Fatal("expected error for path outside the vault")
	}
	text := resultText(r)
	if strings.HasPrefix(text, "not found") || !strings.Contains(text, "invalid path") {
		t.Errorf("error text = %q, want the invalid path error", text)
	}
}

func TestOutputFormatResource(t *testing.T) {
	srv, _ := testServer(t, nil)

	contents, err := srv.readOutputFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("read resource: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != OutputFormatURI || !strings.Contains(tc.Text, "_backlinks.md") {
		t.Errorf("resource = %+v", contents[0])
	}
}
