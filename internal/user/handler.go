// AngelaMos | 2026
// handler.go

package user

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/middleware"
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

		r.Get("/users/me", h.GetMe)
	})
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.CurrentPrincipal(w, r)
	if !ok {
		return
	}

	user, err := h.service.GetMe(r.Context(), p)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}

// RegisterAdminRoutes registers admin-only user management endpoints.
func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/admin/users", h.ListUsers)
		r.Get("/admin/users/{userID}", h.GetUser)
		r.Put("/admin/users/{userID}/role", h.UpdateUserRole)
	})
}

// ListUsers pages through accounts with their effective plan, balance and
// rank. Filters: search (email or name), role, plan.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := ListUsersParams{
		PageParams: core.ParsePage(r),
		Search:     q.Get("search"),
		Role:       q.Get("role"),
		Plan:       q.Get("plan"),
	}

	accounts, total, err := h.service.ListUsers(r.Context(), params)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.Paginated(w,
		ToAccountResponses(accounts, time.Now()),
		params.Page, params.PageSize, total)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.CurrentPrincipal(w, r)
	if !ok {
		return
	}

	var req UpdateUserRoleRequest
	if !core.DecodeValid(w, r, h.validator, &req) {
		return
	}

	user, err := h.service.UpdateUserRole(
		r.Context(),
		actor,
		chi.URLParam(r, "userID"),
		req.Role,
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}
