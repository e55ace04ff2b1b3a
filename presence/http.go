package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/argos/kit"
	"github.com/hazyhaar/argos/shield"
)

// Routes returns the HTTP API:
//
//	GET    /health
//	POST   /api/check            {"identity": "..."}
//	GET    /api/methods?site=
//	DELETE /api/methods/{id}
func (s *Service) Routes(limits shield.Limits) http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.APIStack(s.logger, limits) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		kit.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/check", kit.HTTPHandler(s.checkEndpoint(), func(r *http.Request) (any, error) {
			var req checkRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				return nil, fmt.Errorf("decode body: %w", err)
			}
			return &req, nil
		}))

		r.Get("/methods", kit.HTTPHandler(s.listMethodsEndpoint(), func(r *http.Request) (any, error) {
			return &listMethodsRequest{Site: r.URL.Query().Get("site")}, nil
		}))

		r.Delete("/methods/{id}", kit.HTTPHandler(s.deleteEndpoint(), func(r *http.Request) (any, error) {
			id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
			if err != nil || id <= 0 {
				return nil, errors.New("id must be a positive integer")
			}
			return id, nil
		}))
	})
	return r
}

func (s *Service) deleteEndpoint() kit.Endpoint {
	return s.endpoint("delete_method", true, func(ctx context.Context, req any) (any, error) {
		id := req.(int64)
		n, err := s.DeleteMethods(ctx, []int64{id})
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, &kit.HTTPError{Status: http.StatusNotFound, Err: fmt.Errorf("method %d not found", id)}
		}
		return map[string]int{"deleted": n}, nil
	})
}
