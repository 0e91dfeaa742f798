// AngelaMos | 2026
// handler.go

package entitlement

import (
	"errors"
	"net/http"

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

		r.Get("/entitlement", h.Resolve)
		r.Post("/access-codes/redeem", h.Redeem)
		r.Post("/access-requests", h.SubmitRequest)
		r.Get("/access-requests/me", h.MyRequests)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/admin/entitlements/{userID}", h.Inspect)
		r.Put("/admin/entitlements/{userID}", h.Grant)
		r.Post("/admin/entitlements/{userID}/revoke", h.Revoke)

		r.Get("/admin/access-codes", h.ListCodes)
		r.Post("/admin/access-codes", h.CreateCode)
		r.Delete("/admin/access-codes/{codeID}", h.DeactivateCode)

		r.Get("/admin/access-requests", h.ListRequests)
		r.Post("/admin/access-requests/{requestID}/approve", h.ApproveRequest)
		r.Post("/admin/access-requests/{requestID}/reject", h.RejectRequest)
	})
}

func writeError(w http.ResponseWriter, err error) {
	var redeemErr *RedeemError
	if errors.As(err, &redeemErr) {
		core.JSONError(w, redeemErr.AppError())
		return
	}
	core.JSONError(w, err)
}

func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.CurrentPrincipal(w, r)
	if !ok {
		return
	}

	res, err := h.service.Resolve(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToResolutionResponse(res))
}

func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.CurrentPrincipal(w, r)
	if !ok {
		return
	}

	var req RedeemCodeRequest
	if !core.DecodeValid(w, r, h.validator, &req) {
		return
	}

	res, err := h.service.RedeemAccessCode(r.Context(), p, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, RedeemResponse{
		Success:     res.Success,
		Plan:        res.Plan,
		BonusXP:     res.BonusXP,
		Entitlement: ToEntitlementResponse(res.Entitlement),
	})
}

func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.CurrentPrincipal(w, r)
	if !ok {
		return
	}

	var req SubmitRequestRequest
	if !core.DecodeValid(w, r, h.validator, &req) {
		return
	}

	created, err := h.service.SubmitAccessRequest(r.Context(), p, Plan(req.Plan), req.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, ToAccessRequestResponse(created))
}

func (h *Handler) MyRequests(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.CurrentPrincipal(w, r)
	if !ok {
		return
	}

	reqs, err := h.service.MyAccessRequests(r.Context(), p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToAccessRequestResponseList(reqs))
}

func (h *Handler) Inspect(w http.ResponseWriter, r *http.Request) {
	ent, res, err := h.service.Inspect(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, InspectResponse{
		Entitlement: ToEntitlementResponse(ent),
		Resolution:  ToResolutionResponse(res),
	})
}

func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	admin, ok := middleware.CurrentPrincipal(w, r)
	if !ok {
		return
	}

	var req GrantRequest
	if !core.DecodeValid(w, r, h.validator, &req) {
		return
	}

	ent, err := h.service.Grant(r.Context(), GrantInput{
		UserID:          chi.URLParam(r, "userID"),
		Plan:            Plan(req.Plan),
		GrantedBy:       admin.UserID,
		Reason:          req.Reason,
		ExpiresAt:       req.ExpiresAt,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToEntitlementResponse(ent))
}

func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	admin, ok := middleware.CurrentPrincipal(w, r)
	if !ok {
		return
	}

	var req RevokeRequest
	if !core.DecodeValid(w, r, h.validator, &req) {
		return
	}

	ent, err := h.service.Revoke(r.Context(), RevokeInput{
		UserID:          chi.URLParam(r, "userID"),
		Reason:          req.Reason,
		RevokedBy:       admin.UserID,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToEntitlementResponse(ent))
}

func (h *Handler) ListCodes(w http.ResponseWriter, r *http.Request) {
	page := core.ParsePage(r)

	codes, total, err := h.service.ListAccessCodes(r.Context(), page)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]AccessCodeResponse, len(codes))
	for i := range codes {
		out[i] = ToAccessCodeResponse(&codes[i], "")
	}
	core.Paginated(w, out, page.Page, page.PageSize, total)
}

func (h *Handler) CreateCode(w http.ResponseWriter, r *http.Request) {
	admin, ok := middleware.CurrentPrincipal(w, r)
	if !ok {
		return
	}

	var req CreateCodeRequest
	if !core.DecodeValid(w, r, h.validator, &req) {
		return
	}

	created, err := h.service.CreateAccessCode(r.Context(), CreateCodeInput{
		Plan:           Plan(req.Plan),
		MaxRedemptions: req.MaxRedemptions,
		DurationDays:   req.DurationDays,
		BonusXP:        req.BonusXP,
		ExpiresAt:      req.ExpiresAt,
		CreatedBy:      admin.UserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, ToAccessCodeResponse(created.AccessCode, created.Code))
}

func (h *Handler) DeactivateCode(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeactivateAccessCode(r.Context(), chi.URLParam(r, "codeID")); err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	status := RequestPending
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := ParseRequestStatus(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		status = parsed
	}

	page := core.ParsePage(r)

	reqs, total, err := h.service.ListAccessRequests(r.Context(), status, page)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Paginated(w, ToAccessRequestResponseList(reqs), page.Page, page.PageSize, total)
}

func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	admin, ok := middleware.CurrentPrincipal(w, r)
	if !ok {
		return
	}

	var req ReviewRequestRequest
	if !core.DecodeValid(w, r, h.validator, &req) {
		return
	}

	res, err := h.service.ApproveAccessRequest(r.Context(), ReviewInput{
		RequestID: chi.URLParam(r, "requestID"),
		Reviewer:  admin.UserID,
		Note:      req.Note,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ApproveResponse{
		Request:     ToAccessRequestResponse(res.Request),
		Entitlement: ToEntitlementResponse(res.Entitlement),
	})
}

func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	admin, ok := middleware.CurrentPrincipal(w, r)
	if !ok {
		return
	}

	var req ReviewRequestRequest
	if !core.DecodeValid(w, r, h.validator, &req) {
		return
	}

	rejected, err := h.service.RejectAccessRequest(r.Context(), ReviewInput{
		RequestID: chi.URLParam(r, "requestID"),
		Reviewer:  admin.UserID,
		Note:      req.Note,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToAccessRequestResponse(rejected))
}
