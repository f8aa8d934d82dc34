// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes backlink collection to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/backlinks/internal/apperr"
	"github.com/starford/backlinks/internal/collector"
	"github.com/starford/backlinks/internal/noteservice"
)

// Server wraps the MCP server with the backlinks tools.
type Server struct {
	mcp     *server.MCPServer
	svc     *noteservice.Service
	notices *collector.Notices

	mu sync.Mutex // one collection at a time so notices are not interleaved
}

// New creates a new MCP server with all tools registered. notices must be
// the notifier svc was built with; its messages are returned to the caller
// alongside each collection result.
func New(svc *noteservice.Service, notices *collector.Notices) *Server {
	s := &Server{svc: svc, notices: notices}

	s.mcp = server.NewMCPServer(
		"Backlinks",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("collect_backlinks",
		mcp.WithDescription("Collect every note that links to the given note, extract the "+
			"indented context around each [[wikilink]] and write <note>_backlinks.md. "+
			"See the backlinks://output-format resource for the document layout."),
		mcp.WithString("note", mcp.Required(), mcp.Description("Target note: vault path (folder/note.md) or bare name")),
	), s.collectBacklinks)

	s.mcp.AddTool(mcp.NewTool("preview_backlinks",
		mcp.WithDescription("Render the backlinks document for a note without writing it."),
		mcp.WithString("note", mcp.Required(), mcp.Description("Target note: vault path (folder/note.md) or bare name")),
	), s.previewBacklinks)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes or notes in a specific folder."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a Markdown note, including generated backlinks documents."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddResource(
		mcp.NewResource(OutputFormatURI, "Backlinks Document Format",
			mcp.WithResourceDescription("Layout of the documents written by collect_backlinks."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readOutputFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) collectBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	note, err := req.RequireString("note")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices.Drain()

	res, err := s.svc.CollectBacklinks(ctx, note)
	msgs := s.notices.Drain()
	if err != nil {
		return mcp.NewToolResultError(withNotices(msgs, err.Error())), nil
	}

	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(withNotices(msgs, string(out))), nil
}

func (s *Server) previewBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	note, err := req.RequireString("note")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.Preview(ctx, note)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(p.Entries) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No backlinks found for \"%s\"", p.Target)), nil
	}
	return mcp.NewToolResultText(p.Document), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := ""
	if f, err := req.RequireString("folder"); err == nil {
		folder = strings.Trim(f, "/")
	}

	metas, err := s.svc.ListNotes(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var paths []string
	for _, m := range metas {
		if folder != "" && !strings.HasPrefix(m.Path, folder+"/") {
			continue
		}
		paths = append(paths, m.Path)
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := s.svc.ReadNote(ctx, path)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) readOutputFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      OutputFormatURI,
			MIMEType: "text/markdown",
			Text:     OutputFormatContract,
		},
	}, nil
}

func withNotices(msgs []string, body string) string {
	if len(msgs) == 0 {
		return body
	}
	return strings.Join(msgs, "\n") + "\n\n" + body
}
