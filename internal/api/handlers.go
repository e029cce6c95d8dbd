package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/hashnote/internal/checksum"
	"github.com/starford/hashnote/internal/content"
	"github.com/starford/hashnote/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

func parseListParams(r *http.Request) (listParams, error) {
	q := r.URL.Query()
	p := listParams{Tag: q.Get("tag"), Query: q.Get("q")}
	var err error
	if v := q.Get("limit"); v != "" {
		if p.Limit, err = strconv.Atoi(v); err != nil {
			return p, err
		}
	}
	if v := q.Get("offset"); v != "" {
		if p.Offset, err = strconv.Atoi(v); err != nil {
			return p, err
		}
	}
	if p.Tag != "" {
		tag := content.NormalizeTag(p.Tag)
		if tag == "" {
			return p, errInvalidTag
		}
		p.Tag = tag
	}
	return p, p.Validate()
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes, newest first, with optional tag filter and search
//	@Tags			notes
//	@Produce		json
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			q		query		string	false	"Case-insensitive search in content and tags"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	p, err := parseListParams(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	h.list(w, r, p)
}

// Search handles GET /api/search.
//
//	@Summary		Search notes by content and tags
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search term"
//	@Success		200		{object}	NoteListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	p, err := parseListParams(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if strings.TrimSpace(p.Query) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	h.list(w, r, p)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, p listParams) {
	notes, total, err := h.svc.ListNotes(r.Context(), UserFrom(r.Context()), noteservice.ListQuery{
		Tag:    p.Tag,
		Search: p.Query,
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: total})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	content.DisplayNote
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.svc.GetNote(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeNote(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a note from text and image URLs
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		NoteRequest	true	"Note to create"
//	@Success		201		{object}	content.DisplayNote
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.svc.CreateNote(r.Context(), UserFrom(r.Context()), req.draft())
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	writeNote(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{id}.
//
//	@Summary		Replace the content of a note with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string		true	"Note id"
//	@Param			If-Match	header		string		false	"Checksum of the content being replaced"
//	@Param			body		body		NoteRequest	true	"New content"
//	@Success		200			{object}	content.DisplayNote
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ifMatch := checksum.ParseIfMatch(r.Header.Get("If-Match"))
	note, err := h.svc.UpdateNote(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "id"), req.draft(), ifMatch)
	if err != nil {
		writeError(w, "update note", err)
		return
	}
	writeNote(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteNote(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleTodo handles POST /api/notes/{id}/todos/{todoID}/toggle.
//
//	@Summary		Toggle the completion state of a todo block
//	@Tags			todos
//	@Produce		json
//	@Param			id		path		string	true	"Note id"
//	@Param			todoID	path		string	true	"Todo id"
//	@Success		200		{object}	content.DisplayNote
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/todos/{todoID}/toggle [post]
func (h *Handler) ToggleTodo(w http.ResponseWriter, r *http.Request) {
	note, err := h.svc.ToggleTodo(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "todoID"))
	if err != nil {
		writeError(w, "toggle todo", err)
		return
	}
	writeNote(w, http.StatusOK, note)
}

// ListTodos handles GET /api/todos.
//
//	@Summary		List todos across notes
//	@Tags			todos
//	@Produce		json
//	@Param			status	query		string	false	"Filter"	Enums(open, done, all)
//	@Success		200		{object}	TodoListResponse
//	@Security		BearerAuth
//	@Router			/todos [get]
func (h *Handler) ListTodos(w http.ResponseWriter, r *http.Request) {
	todos, err := h.svc.ListTodos(r.Context(), UserFrom(r.Context()), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, "list todos", err)
		return
	}
	writeJSON(w, http.StatusOK, TodoListResponse{Todos: todos})
}

// ListTags handles GET /api/tags.
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.Tags(r.Context(), UserFrom(r.Context()))
	if err != nil {
		writeError(w, "list tags", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

// GetTagPage handles GET /api/tags/{tag}.
func (h *Handler) GetTagPage(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.TagPage(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "tag"))
	if err != nil {
		writeError(w, "tag page", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// PutTagPage handles PUT /api/tags/{tag}.
func (h *Handler) PutTagPage(w http.ResponseWriter, r *http.Request) {
	var req TagGoalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, userID := r.Context(), UserFrom(r.Context())
	saved, err := h.svc.SetTagGoal(ctx, userID, chi.URLParam(r, "tag"), req.Goal, req.TargetDays)
	if err != nil {
		writeError(w, "set tag goal", err)
		return
	}
	page, err := h.svc.TagPage(ctx, userID, saved.Tag)
	if err != nil {
		writeError(w, "tag page", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// CheckIn handles POST /api/tags/{tag}/checkins. The body is optional.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req CheckInRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.svc.CheckIn(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "tag"), req.Text)
	if err != nil {
		writeError(w, "check in", err)
		return
	}
	writeNote(w, http.StatusCreated, note)
}

func writeNote(w http.ResponseWriter, status int, note *content.DisplayNote) {
	w.Header().Set("ETag", checksum.ETag(note.Checksum))
	writeJSON(w, status, note)
}
