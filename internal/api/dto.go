package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/hashnote/internal/content"
	"github.com/starford/hashnote/internal/noteservice"
)

const (
	maxContentRunes = 100_000
	maxImages       = 20
	maxListLimit    = 500
)

// NoteRequest is the request body for creating or updating a note.
type NoteRequest struct {
	Content   string   `json:"content" example:"Buy milk #todo"`
	ImageURLs []string `json:"image_urls,omitempty"`
	// Tags is accepted for compatibility and ignored: tags always come from content.
	Tags []string `json:"tags,omitempty"`
}

// Validate requires text or at least one image.
func (r NoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content,
			validation.Required.When(len(r.ImageURLs) == 0).Error("content or image_urls is required"),
			validation.RuneLength(0, maxContentRunes)),
		validation.Field(&r.ImageURLs,
			validation.Length(0, maxImages),
			validation.Each(validation.Required, validation.Length(1, 2048))),
	)
}

func (r NoteRequest) draft() content.Draft {
	return content.Draft{Text: r.Content, ImageURLs: r.ImageURLs, Tags: r.Tags}
}

// TagGoalRequest sets the goal of a tag page.
type TagGoalRequest struct {
	Goal       string `json:"goal" example:"Run 5k three times a week"`
	TargetDays int    `json:"target_days" example:"30"`
}

// Validate bounds the goal text and the target.
func (r TagGoalRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Goal, validation.RuneLength(0, 500)),
		validation.Field(&r.TargetDays, validation.Min(0), validation.Max(3650)),
	)
}

// CheckInRequest is the optional body of a tag check-in.
type CheckInRequest struct {
	Text string `json:"text" example:"easy pace, 5.2km"`
}

// Validate bounds the check-in text.
func (r CheckInRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Text, validation.RuneLength(0, maxContentRunes)),
	)
}

// listParams are the query parameters of note listings.
type listParams struct {
	Tag    string
	Query  string
	Limit  int
	Offset int
}

func (p listParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Limit, validation.Min(0), validation.Max(maxListLimit)),
		validation.Field(&p.Offset, validation.Min(0)),
	)
}

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []content.DisplayNote `json:"notes"`
	Total int                   `json:"total" example:"42"`
}

// TodoListResponse wraps todo listings.
type TodoListResponse struct {
	Todos []noteservice.TodoEntry `json:"todos"`
}
