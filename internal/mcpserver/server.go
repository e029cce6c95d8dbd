// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes hashnote tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/hashnote/internal/apperr"
	"github.com/starford/hashnote/internal/attachments"
	"github.com/starford/hashnote/internal/content"
	"github.com/starford/hashnote/internal/noteservice"
)

const (
	formatURI    = "hashnote://note-format"
	defaultLimit = 20
)

// Server wraps the MCP server with hashnote tools. All tools act on behalf
// of a single user.
type Server struct {
	mcp    *server.MCPServer
	notes  *noteservice.Service
	assets *attachments.Store
	userID string
}

// New creates a new MCP server with all hashnote tools registered. The
// upload_asset tool is only registered when assets is non-nil.
func New(notes *noteservice.Service, assets *attachments.Store, userID string) *Server {
	s := &Server{notes: notes, assets: assets, userID: userID}

	s.mcp = server.NewMCPServer(
		"Hashnote",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Case-insensitive search through note content and tags, newest first."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search term")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes newest first, optionally only those carrying a tag."),
		mcp.WithString("tag", mcp.Description("Optional tag, with or without the leading #")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
		mcp.WithNumber("offset", mcp.Description("Number of notes to skip")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note: its raw content, tags, todos and checksum."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note. Content MUST follow the hashnote note format: "+
			"read it first via the get_note_format tool or the "+formatURI+" resource."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note text with inline #tags and #todo blocks")),
		mcp.WithArray("image_urls", mcp.Description("Image URLs appended to the note"), mcp.WithStringItems()),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Replace the content of a note. Pass the checksum from read_note "+
			"to fail instead of overwriting a concurrent edit."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New note text")),
		mcp.WithString("checksum", mcp.Description("Checksum of the content being replaced")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List every tag with the number of notes carrying it, most used first."),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("list_todos",
		mcp.WithDescription("List todos across all notes."),
		mcp.WithString("status", mcp.Description("open, done or all (default all)"), mcp.Enum("open", "done", "all")),
	), s.listTodos)

	s.mcp.AddTool(mcp.NewTool("toggle_todo",
		mcp.WithDescription("Mark a todo as done, or reopen it when it is already done."),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("Id of the note holding the todo")),
		mcp.WithString("todo_id", mcp.Required(), mcp.Description("Todo id as returned by list_todos or read_note")),
	), s.toggleTodo)

	s.mcp.AddTool(mcp.NewTool("get_note_format",
		mcp.WithDescription("Returns the hashnote note format. "+
			"Call this before creating or updating notes to ensure correct structure."),
	), s.getNoteFormat)

	if assets != nil {
		s.mcp.AddTool(mcp.NewTool("upload_asset",
			mcp.WithDescription("Store an image from an http(s) URL or a base64 data URI. "+
				"Returns the stored URL and a markdown field ready to paste into a note."),
			mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:image/...;base64,... URI")),
			mcp.WithString("filename", mcp.Description("Optional file name; derived from the URL when empty")),
		), s.uploadAsset)
	}

	// Resource: note format.
	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Note Format",
			mcp.WithResourceDescription("How hashnote reads tags, todos and images out of note text."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
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

// noteSummary is the compact listing form of a note.
type noteSummary struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Date  string   `json:"date"`
	Tags  []string `json:"tags"`
	Todos int      `json:"todos,omitempty"`
}

type listResult struct {
	Total int           `json:"total"`
	Notes []noteSummary `json:"notes"`
}

func summarize(notes []content.DisplayNote, total int) listResult {
	out := listResult{Total: total, Notes: make([]noteSummary, len(notes))}
	for i, n := range notes {
		out.Notes[i] = noteSummary{ID: n.ID, Title: n.Title, Date: n.Date, Tags: n.Tags, Todos: len(n.Todos)}
	}
	return out
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes, total, err := s.notes.ListNotes(ctx, s.userID, noteservice.ListQuery{
		Search: query,
		Limit:  req.GetInt("limit", defaultLimit),
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(summarize(notes, total))
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := noteservice.ListQuery{
		Limit:  req.GetInt("limit", defaultLimit),
		Offset: req.GetInt("offset", 0),
	}
	if raw := req.GetString("tag", ""); raw != "" {
		if q.Tag = content.NormalizeTag(raw); q.Tag == "" {
			return mcp.NewToolResultError(fmt.Sprintf("invalid tag: %q", raw)), nil
		}
	}
	notes, total, err := s.notes.ListNotes(ctx, s.userID, q)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(summarize(notes, total))
}

// readNoteResult omits the sanitized display text: a model editing a note
// needs the raw content.
type readNoteResult struct {
	ID       string             `json:"id"`
	Title    string             `json:"title"`
	Content  string             `json:"content"`
	Tags     []string           `json:"tags"`
	Todos    []content.TodoItem `json:"todos"`
	ImageURL string             `json:"image_url,omitempty"`
	Date     string             `json:"date"`
	Checksum string             `json:"checksum"`
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.notes.GetNote(ctx, s.userID, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(readNoteResult{
		ID:       n.ID,
		Title:    n.Title,
		Content:  n.OriginalContent,
		Tags:     n.Tags,
		Todos:    n.Todos,
		ImageURL: n.ImageURL,
		Date:     n.Date,
		Checksum: n.Checksum,
	})
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.notes.CreateNote(ctx, s.userID, content.Draft{
		Text:      text,
		ImageURLs: req.GetStringSlice("image_urls", nil),
	})
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", n.ID)), nil
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.notes.UpdateNote(ctx, s.userID, id, content.Draft{Text: text}, req.GetString("checksum", ""))
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s (checksum %s)", n.ID, n.Checksum)), nil
}

func (s *Server) listTags(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags, err := s.notes.Tags(ctx, s.userID)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(tags)
}

func (s *Server) listTodos(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	todos, err := s.notes.ListTodos(ctx, s.userID, req.GetString("status", noteservice.TodoAll))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(todos)
}

func (s *Server) toggleTodo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	noteID, err := req.RequireString("note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	todoID, err := req.RequireString("todo_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.notes.ToggleTodo(ctx, s.userID, noteID, todoID)
	if err != nil {
		return toolError(err), nil
	}
	for _, t := range n.Todos {
		if t.ID == todoID {
			state := "open"
			if t.Completed {
				state = "done"
			}
			return mcp.NewToolResultText(fmt.Sprintf("%s: %s", state, t.Content)), nil
		}
	}
	// Toggling changes the text, so the id may now carry a different suffix.
	return mcp.NewToolResultText("toggled"), nil
}

func (s *Server) uploadAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, hint, err := attachments.Load(ctx, rawURL)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name := req.GetString("filename", "")
	if name == "" {
		name = hint
	}
	asset, err := s.assets.Save(ctx, name, data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(asset)
}

func (s *Server) getNoteFormat(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormat), nil
}

func (s *Server) readNoteFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormat,
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encode result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

// toolError reports err to the model. Expected failures keep their message;
// anything else is a tool error with a generic description.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found")
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError("checksum mismatch: the note changed, read it again")
	case errors.Is(err, apperr.ErrInvalid):
		return mcp.NewToolResultError(err.Error())
	default:
		return mcp.NewToolResultErrorFromErr("internal error", err)
	}
}
