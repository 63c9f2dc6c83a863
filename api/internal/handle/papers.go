package handle

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"paperai/api/internal/store"
)

type errorBody struct {
	Message string `json:"message"`
}

// ListPapers handles GET /v1/papers?limit=N.
func (h *Handle) ListPapers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := h.papers.Recent(r.Context(), limit)
	if err != nil {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorBody{Message: "list papers: " + err.Error()})
		return
	}
	if recs == nil {
		recs = []store.Record{}
	}
	render.JSON(w, r, recs)
}

// GetPaper handles GET /v1/papers/{id}.
func (h *Handle) GetPaper(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorBody{Message: "bad id"})
		return
	}
	rec, err := h.papers.Get(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorBody{Message: "not found"})
	case err != nil:
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorBody{Message: "get paper: " + err.Error()})
	default:
		render.JSON(w, r, rec)
	}
}
