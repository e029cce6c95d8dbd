package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/hashnote/internal/attachments"
	"github.com/starford/hashnote/internal/noteservice"
	"github.com/starford/hashnote/internal/sse"
)

// Deps are the collaborators of the API router. Assets and Events are
// optional; their routes are only mounted when set.
type Deps struct {
	Notes  *noteservice.Service
	Auth   *Auth
	Assets *attachments.Store
	Events *sse.Broker
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(d Deps) chi.Router {
	h := NewHandler(d.Notes)

	auth := d.Auth
	if auth == nil {
		auth = NewAuth(AuthOptions{Mode: ModeDisabled})
	}

	r := chi.NewRouter()
	r.Use(AuthMiddleware(auth))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/{id}", h.GetNote)
	r.Put("/notes/{id}", h.UpdateNote)
	r.Delete("/notes/{id}", h.DeleteNote)
	r.Post("/notes/{id}/todos/{todoID}/toggle", h.ToggleTodo)

	// Todos and tag pages.
	r.Get("/todos", h.ListTodos)
	r.Get("/tags", h.ListTags)
	r.Get("/tags/{tag}", h.GetTagPage)
	r.Put("/tags/{tag}", h.PutTagPage)
	r.Post("/tags/{tag}/checkins", h.CheckIn)

	r.Get("/search", h.Search)

	if d.Assets != nil {
		r.Post("/attachments", NewAttachmentHandler(d.Assets).Upload)
	}

	if d.Events != nil {
		r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
			d.Events.Stream(w, r, UserFrom(r.Context()))
		})
	}

	return r
}
