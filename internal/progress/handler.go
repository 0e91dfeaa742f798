// AngelaMos | 2026
// handler.go

package progress

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/middleware"
	"github.com/carterperez-dev/coursegate/internal/rank"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/progress/me", h.GetMe)
		r.Post("/questions/{questionID}/attempts", h.RecordAttempt)
	})
}

type AttemptRequest struct {
	Status string `json:"status" validate:"required,oneof=PASS FAIL pass fail"`
}

type SnapshotResponse struct {
	XP             int64        `json:"xp"`
	Level          int          `json:"level"`
	XPProgress     int64        `json:"xp_progress"`
	XPToNextLevel  int64        `json:"xp_to_next_level"`
	CurrentStreak  int          `json:"current_streak"`
	BestStreak     int          `json:"best_streak"`
	StreakStatus   StreakStatus `json:"streak_status"`
	TotalSolved    int          `json:"total_solved"`
	Rank           rank.Rank    `json:"rank"`
	LastActiveDate *string      `json:"last_active_date,omitempty"`
}

type AttemptResponse struct {
	AttemptID  string           `json:"attempt_id"`
	Status     AttemptStatus    `json:"status"`
	FirstPass  bool             `json:"first_pass"`
	XPAwarded  int64            `json:"xp_awarded"`
	Balance    int64            `json:"balance"`
	RankChange rank.Change      `json:"rank_change"`
	Progress   SnapshotResponse `json:"progress"`
}

func ToSnapshotResponse(s *Snapshot) SnapshotResponse {
	resp := SnapshotResponse{
		XP:            s.XP,
		Level:         s.Level,
		XPProgress:    s.XPProgress,
		XPToNextLevel: s.XPToNextLevel,
		CurrentStreak: s.CurrentStreak,
		BestStreak:    s.BestStreak,
		StreakStatus:  s.StreakStatus,
		TotalSolved:   s.TotalSolved,
		Rank:          s.Rank,
	}
	if s.LastActiveDate != nil {
		day := s.LastActiveDate.Format(time.DateOnly)
		resp.LastActiveDate = &day
	}
	return resp
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.CurrentPrincipal(w, r)
	if !ok {
		return
	}

	snap, err := h.service.GetUserProgress(r.Context(), p.UserID)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, ToSnapshotResponse(snap))
}

func (h *Handler) RecordAttempt(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.CurrentPrincipal(w, r)
	if !ok {
		return
	}

	var req AttemptRequest
	if !core.DecodeValid(w, r, h.validator, &req) {
		return
	}

	res, err := h.service.RecordAttempt(
		r.Context(),
		p,
		chi.URLParam(r, "questionID"),
		AttemptStatus(strings.ToUpper(req.Status)),
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.Created(w, AttemptResponse{
		AttemptID:  res.Attempt.ID,
		Status:     res.Attempt.Status,
		FirstPass:  res.FirstPass,
		XPAwarded:  res.XPAwarded,
		Balance:    res.Balance,
		RankChange: res.RankChange,
		Progress:   ToSnapshotResponse(res.Progress),
	})
}
