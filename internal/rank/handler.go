// AngelaMos | 2026
// handler.go

package rank

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/coursegate/internal/core"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/ranks", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.GetRank)
		r.Get("/change", h.GetChange)
	})
}

type rankResponse struct {
	Standing   Standing    `json:"standing"`
	Thresholds []Threshold `json:"thresholds"`
}

// GetRank returns the league table, and the standing for ?xp= when given.
func (h *Handler) GetRank(w http.ResponseWriter, r *http.Request) {
	xp, ok := parseXP(r, "xp")
	if !ok {
		core.BadRequest(w, "xp must be an integer")
		return
	}

	core.OK(w, rankResponse{
		Standing:   StandingFor(xp),
		Thresholds: Thresholds(),
	})
}

func (h *Handler) GetChange(w http.ResponseWriter, r *http.Request) {
	prev, ok := parseXP(r, "previous_xp")
	if !ok {
		core.BadRequest(w, "previous_xp must be an integer")
		return
	}

	next, ok := parseXP(r, "new_xp")
	if !ok {
		core.BadRequest(w, "new_xp must be an integer")
		return
	}

	core.OK(w, CheckRankChange(prev, next))
}

func parseXP(r *http.Request, key string) (int64, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
