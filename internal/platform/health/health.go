// Package health serves the liveness report behind GET /health.
package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"juntas/pkg/platform/httputil"
)

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

// Handler runs every registered check on each request. Any failure turns the
// response into 503 with the failing dependency marked "down".
type Handler struct {
	checks  map[string]Check
	timeout time.Duration
}

func New(timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Handler{checks: map[string]Check{}, timeout: timeout}
}

// Add registers a named check. A nil check is ignored.
func (h *Handler) Add(name string, check Check) {
	if check == nil {
		return
	}
	h.checks[name] = check
}

type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := report{Status: "ok", Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			resp.Checks[name] = "down"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "up"
	}
	httputil.WriteJSON(w, status, resp)
}
