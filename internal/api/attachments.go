package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/starford/hashnote/internal/apperr"
	"github.com/starford/hashnote/internal/attachments"
)

// AttachmentHandler accepts image uploads.
type AttachmentHandler struct {
	store *attachments.Store
}

// NewAttachmentHandler creates a handler saving into store.
func NewAttachmentHandler(store *attachments.Store) *AttachmentHandler {
	return &AttachmentHandler{store: store}
}

// Upload handles POST /api/attachments (multipart/form-data, field "file").
//
//	@Summary		Upload an image
//	@Tags			attachments
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Image file"
//	@Success		201		{object}	attachments.Asset
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/attachments [post]
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, attachments.MaxSize+1<<20)

	if err := r.ParseMultipartForm(attachments.MaxSize); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, attachments.MaxSize+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	asset, err := h.store.Save(r.Context(), header.Filename, data)
	if err != nil {
		if errors.Is(err, attachments.ErrUnsupported) || errors.Is(err, apperr.ErrInvalid) {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		slog.Error("attachment upload failed", slog.String("filename", header.Filename), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to store file"))
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}
