// Package http mounts the review api
package http

import (
	stdhttp "net/http"
	"net/url"

	phttp "github.com/LetsGoKDH/taps/internal/platform/net/http"
	"github.com/LetsGoKDH/taps/internal/services/review/domain"
	"github.com/LetsGoKDH/taps/internal/services/review/service"

	"github.com/go-chi/chi/v5"
)

// Register mounts the review endpoints on r
func Register(r phttp.Router, s *service.Service) {
	h := &handlers{svc: s}
	phttp.GetJSON(r, "/issues", h.issues)
	phttp.PostJSON(r, "/issues/{id}/resolution", h.resolve)
	phttp.GetJSON(r, "/resolutions/{id}", h.latest)
}

type handlers struct{ svc *service.Service }

// GET /v1/issues?utt_id=
func (h *handlers) issues(r *stdhttp.Request) (any, error) {
	return h.svc.Issues(r.Context(), r.URL.Query().Get("utt_id"))
}

// POST /v1/issues/{id}/resolution
func (h *handlers) resolve(r *stdhttp.Request, in domain.ResolveRequest) (any, error) {
	return h.svc.Resolve(r.Context(), issueID(r), in)
}

// GET /v1/resolutions/{id}
func (h *handlers) latest(r *stdhttp.Request) (any, error) {
	return h.svc.Latest(r.Context(), issueID(r))
}

// issueID reads {id}; ids carry a '#', which clients send as %23
func issueID(r *stdhttp.Request) string {
	id := chi.URLParam(r, "id")
	if u, err := url.PathUnescape(id); err == nil {
		return u
	}
	return id
}
