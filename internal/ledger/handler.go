// AngelaMos | 2026
// handler.go

package ledger

import (
	"log/slog"
	"net/http"

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
	r.Route("/ledger", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.History)
		r.Get("/balance", h.Balance)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Post("/admin/users/{userID}/bonus", h.GrantBonus)
		r.Get("/admin/stats/economy", h.EconomyStats)
	})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.CurrentPrincipal(w, r)
	if !ok {
		return
	}

	page := core.ParsePage(r)

	entries, total, err := h.service.History(r.Context(), p.UserID, page)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.Paginated(w, ToEntryResponseList(entries), page.Page, page.PageSize, total)
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.CurrentPrincipal(w, r)
	if !ok {
		return
	}

	xp, err := h.service.Balance(r.Context(), p.UserID)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, BalanceResponse{
		UserID: p.UserID,
		XP:     xp,
		Rank:   rank.Calculate(xp),
	})
}

func (h *Handler) GrantBonus(w http.ResponseWriter, r *http.Request) {
	admin, ok := middleware.CurrentPrincipal(w, r)
	if !ok {
		return
	}

	var req BonusRequest
	if !core.DecodeValid(w, r, h.validator, &req) {
		return
	}

	entryType := EntryBonus
	if req.Type != "" {
		entryType = EntryType(req.Type)
	}

	userID := chi.URLParam(r, "userID")

	result, err := h.service.Earn(r.Context(), EarnInput{
		UserID:      userID,
		Amount:      req.Amount,
		Type:        entryType,
		Description: req.Description,
		Metadata:    map[string]any{"granted_by": admin.UserID},
	})
	if err != nil {
		core.JSONError(w, err)
		return
	}

	slog.Info("bonus granted",
		"user_id", userID,
		"amount", req.Amount,
		"granted_by", admin.UserID,
	)

	core.Created(w, EarnResponse{
		Entry:           ToEntryResponse(result.Entry),
		Balance:         result.Balance,
		PreviousBalance: result.PreviousBalance,
	})
}

func (h *Handler) EconomyStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.EconomyStats(r.Context())
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, ToEconomyStatsResponse(stats))
}
