// AngelaMos | 2026
// handler.go

package reveal

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the spend routes. limiter runs after authentication
// so it can key on the user, and may be nil.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	limiter func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		if limiter != nil {
			r.Use(limiter)
		}

		r.Post("/questions/{questionID}/hints/{index}/reveal", h.RevealHint)
		r.Post("/questions/{questionID}/solution/reveal", h.RevealSolution)
	})
}

type HintResponse struct {
	QuestionID string `json:"question_id"`
	Index      int    `json:"index"`
	Body       string `json:"body"`
	Cost       int64  `json:"cost"`
	Balance    int64  `json:"balance"`
}

type SolutionResponse struct {
	QuestionID string `json:"question_id"`
	Solution   string `json:"solution"`
	Cost       int64  `json:"cost"`
	Balance    int64  `json:"balance"`
}

func (h *Handler) RevealHint(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.CurrentPrincipal(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		core.BadRequest(w, "hint index must be a non-negative integer")
		return
	}

	res, err := h.service.RevealHint(r.Context(), p, chi.URLParam(r, "questionID"), index)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, HintResponse{
		QuestionID: res.Hint.QuestionID,
		Index:      res.Hint.Index,
		Body:       res.Hint.Body,
		Cost:       res.Cost,
		Balance:    res.Balance,
	})
}

func (h *Handler) RevealSolution(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.CurrentPrincipal(w, r)
	if !ok {
		return
	}

	res, err := h.service.RevealSolution(r.Context(), p, chi.URLParam(r, "questionID"))
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, SolutionResponse{
		QuestionID: res.QuestionID,
		Solution:   res.Solution,
		Cost:       res.Cost,
		Balance:    res.Balance,
	})
}
