// AngelaMos | 2026
// handler.go

package access

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/coursegate/internal/content"
	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/entitlement"
	"github.com/carterperez-dev/coursegate/internal/middleware"
)

type Handler struct {
	gate    *Gate
	outline content.Outline
}

func NewHandler(gate *Gate, outline content.Outline) *Handler {
	return &Handler{gate: gate, outline: outline}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/access", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/weeks", h.ListWeeks)
		r.Get("/weeks/{week}", h.Week)
		r.Get("/topics/{topicID}", h.Topic)
		r.Get("/questions/{questionID}", h.Question)
	})

	r.Group(func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/weeks/{week}/topics", h.WeekTopics)
		r.Get("/topics/{topicID}/questions", h.TopicQuestions)
	})
}

type DecisionResponse struct {
	Allowed      bool             `json:"allowed"`
	Reason       string           `json:"reason,omitempty"`
	Resource     string           `json:"resource"`
	ResourceID   string           `json:"resource_id"`
	WeekNumber   int              `json:"week_number"`
	Plan         entitlement.Plan `json:"plan"`
	RequiredPlan entitlement.Plan `json:"required_plan"`
}

type WeekAccessResponse struct {
	Number   int              `json:"number"`
	Title    string           `json:"title"`
	Decision DecisionResponse `json:"access"`
}

func toDecisionResponse(d *Decision) DecisionResponse {
	return DecisionResponse{
		Allowed:      d.Allowed,
		Reason:       d.Reason,
		Resource:     d.Resource,
		ResourceID:   d.ResourceID,
		WeekNumber:   d.WeekNumber,
		Plan:         d.Plan,
		RequiredPlan: d.RequiredPlan,
	}
}

func (h *Handler) ListWeeks(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.CurrentPrincipal(w, r)
	if !ok {
		return
	}

	weeks, err := h.gate.ListWeeks(r.Context(), p)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	out := make([]WeekAccessResponse, len(weeks))
	for i, wa := range weeks {
		out[i] = WeekAccessResponse{
			Number:   wa.Week.Number,
			Title:    wa.Week.Title,
			Decision: toDecisionResponse(wa.Decision),
		}
	}
	core.OK(w, out)
}

func (h *Handler) Week(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.CurrentPrincipal(w, r)
	if !ok {
		return
	}

	week, err := strconv.Atoi(chi.URLParam(r, "week"))
	if err != nil {
		core.BadRequest(w, "week must be a number")
		return
	}

	h.respond(w)(h.gate.CanAccessWeek(r.Context(), p, week))
}

func (h *Handler) Topic(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.CurrentPrincipal(w, r)
	if !ok {
		return
	}

	h.respond(w)(h.gate.CanAccessTopic(r.Context(), p, chi.URLParam(r, "topicID")))
}

func (h *Handler) Question(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.CurrentPrincipal(w, r)
	if !ok {
		return
	}

	h.respond(w)(h.gate.CanAccessQuestion(r.Context(), p, chi.URLParam(r, "questionID")))
}

// respond reports a denial as data with 200. Only Require* callers turn a
// denial into a 403.
func (h *Handler) respond(w http.ResponseWriter) func(*Decision, error) {
	return func(d *Decision, err error) {
		if err != nil {
			core.JSONError(w, err)
			return
		}
		core.OK(w, toDecisionResponse(d))
	}
}

type WeekTopicsResponse struct {
	Week   int             `json:"week"`
	Topics []content.Topic `json:"topics"`
}

type TopicQuestionsResponse struct {
	TopicID    string                    `json:"topic_id"`
	WeekNumber int                       `json:"week_number"`
	Questions  []content.QuestionSummary `json:"questions"`
}

// WeekTopics lists a week's topics. A locked week is a 403 LOCKED.
func (h *Handler) WeekTopics(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.CurrentPrincipal(w, r)
	if !ok {
		return
	}

	week, err := strconv.Atoi(chi.URLParam(r, "week"))
	if err != nil {
		core.BadRequest(w, "week must be a number")
		return
	}

	if _, err := h.gate.RequireWeek(r.Context(), p, week); err != nil {
		core.JSONError(w, err)
		return
	}

	topics, err := h.outline.ListTopics(r.Context(), week)
	if err != nil {
		core.JSONError(w, err)
		return
	}
	core.OK(w, WeekTopicsResponse{Week: week, Topics: topics})
}

func (h *Handler) TopicQuestions(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.CurrentPrincipal(w, r)
	if !ok {
		return
	}

	topicID := chi.URLParam(r, "topicID")
	d, err := h.gate.RequireTopic(r.Context(), p, topicID)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	questions, err := h.outline.ListQuestions(r.Context(), topicID)
	if err != nil {
		core.JSONError(w, err)
		return
	}
	core.OK(w, TopicQuestionsResponse{
		TopicID:    topicID,
		WeekNumber: d.WeekNumber,
		Questions:  questions,
	})
}
