// Package health provides HTTP liveness and readiness handlers plus the
// readiness checkers for clinscribe's dependencies.
//
//   - /healthz — liveness; always 200 for a process that can serve HTTP.
//   - /readyz  — readiness; 200 only when every registered [Checker] passes.
//
// Responses are JSON with a top-level "status" and a per-check "checks" map.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/nocturnehealth/clinscribe/internal/vocab"
	"github.com/nocturnehealth/clinscribe/pkg/provider/embeddings"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named readiness check. Check returns nil when the dependency
// is healthy.
type Checker struct {
	// Name appears as the key in the JSON response (e.g. "vocabulary").
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// VocabularyChecker verifies the vocabulary store loaded with usable content.
func VocabularyChecker(v *vocab.Vocabulary) Checker {
	return Checker{
		Name: "vocabulary",
		Check: func(context.Context) error {
			if v == nil {
				return errors.New("vocabulary not loaded")
			}
			if len(v.Symptoms) == 0 || len(v.NegationCues) == 0 {
				return errors.New("vocabulary is missing core term lists")
			}
			return nil
		},
	}
}

// EmbeddingsChecker probes the embeddings backend with a one-word request.
// Deduplication degrades without embeddings, so this gates readiness rather
// than liveness.
func EmbeddingsChecker(p embeddings.Provider) Checker {
	return Checker{
		Name: "embeddings",
		Check: func(ctx context.Context) error {
			if p == nil {
				return errors.New("no embeddings provider configured")
			}
			_, err := p.Embed(ctx, "ping")
			return err
		},
	}
}

type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction; the handler is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] evaluating the given checkers, in order, on each
// /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz returns 200 only when every checker passes. Each check runs under a
// [checkTimeout] deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	allOK := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register adds the health routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
