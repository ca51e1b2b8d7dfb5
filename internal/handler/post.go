package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/sakif/volunteerhub/internal/model"
	"github.com/sakif/volunteerhub/internal/repository"
	"github.com/sakif/volunteerhub/internal/service"
)

// PostHandler serves the post listing and CRUD endpoints.
type PostHandler struct {
	svc  *service.PostService
	resp responder
}

func NewPostHandler(svc *service.PostService, logger *zap.Logger, production bool) *PostHandler {
	return &PostHandler{svc: svc, resp: newResponder(logger, production)}
}

// HandleListAll returns every post in store order.
//
// HTTP: GET /all-posts?search=&category=
// Both query parameters are optional; without them the list is unfiltered.
func (h *PostHandler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	posts, err := h.svc.ListAll(r.Context(), repository.PostFilter{
		Search:   q.Get("search"),
		Category: q.Get("category"),
	})
	if err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleListActive returns posts whose deadline has not passed.
//
// HTTP: GET /active-posts
func (h *PostHandler) HandleListActive(w http.ResponseWriter, r *http.Request) {
	posts, err := h.svc.ListActive(r.Context())
	if err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleFeatured returns a random sample of at most six active posts.
//
// HTTP: GET /active-posts/featured
func (h *PostHandler) HandleFeatured(w http.ResponseWriter, r *http.Request) {
	posts, err := h.svc.Featured(r.Context())
	if err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleGet returns one post, or 404.
//
// HTTP: GET /post/{id}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	post, err := h.svc.GetByID(r.Context(), pathParam(r, "id"))
	if err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleListByOrganizer returns the caller's own posts.
//
// HTTP: GET /posts/{email}
func (h *PostHandler) HandleListByOrganizer(w http.ResponseWriter, r *http.Request) {
	posts, err := h.svc.ListByOrganizer(r.Context(), actor(r), pathParam(r, "email", "ref"))
	if err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleCreate stores a new post and returns it with 201.
//
// HTTP: POST /posts/new
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.NewPost
	if err := decodeJSON(w, r, &in); err != nil {
		h.resp.writeError(w, r, err)
		return
	}

	post, err := h.svc.Create(r.Context(), actor(r), in)
	if err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// HandleUpdate applies a partial update and returns the post after the write.
// interestedVolunteers in the body is ignored: PostPatch has no such field.
//
// HTTP: PUT /post/{id}
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch model.PostPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.resp.writeError(w, r, err)
		return
	}

	post, err := h.svc.Update(r.Context(), actor(r), pathParam(r, "id"), patch)
	if err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleDelete removes a post.
//
// HTTP: DELETE /posts/{id}
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), actor(r), pathParam(r, "id", "ref")); err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Post deleted successfully"})
}
