// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Ansuz tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/store"
)

// Server wraps the MCP server with Ansuz tools.
type Server struct {
	mcp  *server.MCPServer
	st   store.NoteStore
	enh  api.Enhancer
	chat api.Responder
}

// New creates a new MCP server with all Ansuz tools registered.
func New(st store.NoteStore, enh api.Enhancer, responder api.Responder) *Server {
	s := &Server{st: st, enh: enh, chat: responder}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("capture_note",
		mcp.WithDescription("Capture a raw note for background enhancement. "+
			"Returns the placeholder record immediately; title, tags, and "+
			"classification fill in asynchronously."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Raw note text")),
	), s.captureNote)

	s.mcp.AddTool(mcp.NewTool("ask_notes",
		mcp.WithDescription("Ask a natural-language question over the note corpus. "+
			"Returns an answer plus the ids of the notes it cites."),
		mcp.WithString("question", mcp.Required(), mcp.Description("Question to answer")),
	), s.askNotes)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes, optionally filtered by kind, status, or area."),
		mcp.WithString("kind", mcp.Description("Optional kind filter (idea|task|meeting|journal|reference)")),
		mcp.WithString("status", mcp.Description("Optional status filter (inbox|next|later|done)")),
		mcp.WithString("area", mcp.Description("Optional area filter (work|personal|health|finance|learning|admin|other)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read one note record, including raw and corrected text."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

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

func (s *Server) captureNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.enh.Submit(text)
	if err != nil {
		if errors.Is(err, apperr.ErrEmptyInput) {
			return mcp.NewToolResultError("text is empty"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(rec, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) askNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes, err := s.st.All()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp := s.chat.Respond(ctx, question, notes)
	out, _ := json.MarshalIndent(resp, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := req.GetString("kind", "")
	status := req.GetString("status", "")
	area := req.GetString("area", "")

	notes, total, err := s.st.List(0, 0, kind, status, area)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d note(s)\n", total)
	for _, n := range notes {
		fmt.Fprintf(&b, "%s  %s %s  [%s/%s/%s]\n", n.ID, n.Emoji, n.Title, n.Kind, n.Status, n.Area)
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.st.Get(id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(rec, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
