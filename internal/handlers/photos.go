package handlers

import (
	"encoding/json"
	"mime"
	"net/http"
	"time"

	"photoshelf/internal/logging"

	"github.com/gorilla/mux"
)

// FieldRequest carries the new value of a photo field.
type FieldRequest struct {
	Value string `json:"value"`
}

// AlbumRequest moves a photo. 0 is the unsorted album.
type AlbumRequest struct {
	AlbumID int64 `json:"albumId"`
}

// GetPhoto returns one photo with its URLs and effective license
func (h *Handlers) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	view, err := h.library.Get(r.Context(), id)
	if err != nil {
		writeLibraryError(w, "handlers.GetPhoto", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, view)
}

// SetPhotoField updates title, description, tags or license.
func (h *Handlers) SetPhotoField(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, field := vars["id"], vars["field"]

	var req FieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	var err error
	switch field {
	case "title":
		err = h.library.SetTitle(ctx, id, req.Value)
	case "description":
		err = h.library.SetDescription(ctx, id, req.Value)
	case "tags":
		err = h.library.SetTags(ctx, id, req.Value)
	case "license":
		err = h.library.SetLicense(ctx, id, req.Value)
	default:
		writeJSONError(w, "Unknown field", http.StatusNotFound)
		return
	}
	if err != nil {
		writeLibraryError(w, "handlers.SetPhotoField", err)
		return
	}

	writeJSONStatus(w, "ok")
}

// SetPhotoAlbum moves a photo to another album
func (h *Handlers) SetPhotoAlbum(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req AlbumRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AlbumID < 0 {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.library.SetAlbum(r.Context(), id, req.AlbumID); err != nil {
		writeLibraryError(w, "handlers.SetPhotoAlbum", err)
		return
	}

	writeJSONStatus(w, "ok")
}

// ToggleStar flips the star flag
func (h *Handlers) ToggleStar(w http.ResponseWriter, r *http.Request) {
	star, err := h.library.ToggleStar(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeLibraryError(w, "handlers.ToggleStar", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]bool{"star": star})
}

// TogglePublic flips the public flag
func (h *Handlers) TogglePublic(w http.ResponseWriter, r *http.Request) {
	public, err := h.library.TogglePublic(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeLibraryError(w, "handlers.TogglePublic", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]bool{"public": public})
}

// DuplicatePhoto copies a photo record; the copy shares its files
func (h *Handlers) DuplicatePhoto(w http.ResponseWriter, r *http.Request) {
	p, err := h.library.Duplicate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeLibraryError(w, "handlers.DuplicatePhoto", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, p)
}

// DeletePhoto removes a photo and, if nothing else uses them, its files
func (h *Handlers) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	if err := h.library.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeLibraryError(w, "handlers.DeletePhoto", err)
		return
	}

	writeJSONStatus(w, "ok")
}

// GetArchive sends the FULL, MEDIUM or SMALL file as an attachment
func (h *Handlers) GetArchive(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = "FULL"
	}

	dl, err := h.library.Archive(r.Context(), id, kind)
	if err != nil {
		writeLibraryError(w, "handlers.GetArchive", err)
		return
	}
	defer func() {
		if err := dl.File.Close(); err != nil {
			logging.Warn("GetArchive: close %s: %v", dl.Filename, err)
		}
	}()

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.Filename}))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, dl.Filename, time.Time{}, dl.File)
}
