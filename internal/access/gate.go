// AngelaMos | 2026
// gate.go

// Package access decides whether a principal may open a week, topic or
// question. Entitlement is resolved on every call and never cached here.
package access

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/coursegate/internal/content"
	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/entitlement"
	"github.com/carterperez-dev/coursegate/internal/metrics"
	"github.com/carterperez-dev/coursegate/internal/principal"
)

const (
	ResourceWeek     = "week"
	ResourceTopic    = "topic"
	ResourceQuestion = "question"
)

type Resolver interface {
	Resolve(ctx context.Context, p principal.Principal) (*entitlement.Resolution, error)
}

type Decision struct {
	Allowed      bool
	Reason       string
	Resource     string
	ResourceID   string
	WeekNumber   int
	Plan         entitlement.Plan
	RequiredPlan entitlement.Plan
}

// Locked converts a denial into the error the transport maps to 403.
func (d *Decision) Locked() *core.LockedError {
	return &core.LockedError{
		Resource:     d.Resource,
		ResourceID:   d.ResourceID,
		WeekNumber:   d.WeekNumber,
		Reason:       d.Reason,
		RequiredPlan: string(d.RequiredPlan),
	}
}

type Gate struct {
	resolver Resolver
	catalog  content.Catalog
	tiers    entitlement.Tiers
}

func NewGate(resolver Resolver, catalog content.Catalog, tiers entitlement.Tiers) *Gate {
	return &Gate{resolver: resolver, catalog: catalog, tiers: tiers}
}

func (g *Gate) CanAccessWeek(
	ctx context.Context,
	p principal.Principal,
	week int,
) (*Decision, error) {
	if week < 1 {
		return nil, fmt.Errorf("week %d: %w", week, core.ErrNotFound)
	}
	if _, err := g.catalog.GetWeek(ctx, week); err != nil {
		return nil, err
	}
	return g.decide(ctx, p, ResourceWeek, strconv.Itoa(week), week)
}

func (g *Gate) CanAccessTopic(
	ctx context.Context,
	p principal.Principal,
	topicID string,
) (*Decision, error) {
	topic, err := g.catalog.GetTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}
	return g.decide(ctx, p, ResourceTopic, topicID, topic.WeekNumber)
}

func (g *Gate) CanAccessQuestion(
	ctx context.Context,
	p principal.Principal,
	questionID string,
) (*Decision, error) {
	q, err := g.catalog.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	return g.decide(ctx, p, ResourceQuestion, questionID, q.WeekNumber)
}

func (g *Gate) RequireWeek(ctx context.Context, p principal.Principal, week int) (*Decision, error) {
	return requireAllowed(g.CanAccessWeek(ctx, p, week))
}

func (g *Gate) RequireTopic(ctx context.Context, p principal.Principal, topicID string) (*Decision, error) {
	return requireAllowed(g.CanAccessTopic(ctx, p, topicID))
}

// RequireQuestion also returns the question, which every caller needs next.
func (g *Gate) RequireQuestion(
	ctx context.Context,
	p principal.Principal,
	questionID string,
) (*content.Question, *Decision, error) {
	q, err := g.catalog.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, nil, err
	}
	d, err := requireAllowed(g.decide(ctx, p, ResourceQuestion, questionID, q.WeekNumber))
	if err != nil {
		return nil, nil, err
	}
	return q, d, nil
}

func requireAllowed(d *Decision, err error) (*Decision, error) {
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, d.Locked()
	}
	return d, nil
}

type WeekAccess struct {
	Week     content.Week
	Decision *Decision
}

// ListWeeks resolves once and decides every week in the catalog.
func (g *Gate) ListWeeks(ctx context.Context, p principal.Principal) ([]WeekAccess, error) {
	weeks, err := g.catalog.ListWeeks(ctx)
	if err != nil {
		return nil, err
	}

	res, err := g.resolver.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}

	out := make([]WeekAccess, len(weeks))
	for i, w := range weeks {
		out[i] = WeekAccess{
			Week:     w,
			Decision: g.decideFor(res, ResourceWeek, strconv.Itoa(w.Number), w.Number),
		}
	}
	return out, nil
}

func (g *Gate) decide(
	ctx context.Context,
	p principal.Principal,
	resource, resourceID string,
	week int,
) (*Decision, error) {
	ctx, span := core.StartSpan(ctx, "access.decide",
		attribute.String("access.resource", resource),
		attribute.Int("access.week", week),
	)
	defer span.End()

	res, err := g.resolver.Resolve(ctx, p)
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	d := g.decideFor(res, resource, resourceID, week)
	metrics.IncAccessDecision(resource, d.Allowed)
	span.SetAttributes(attribute.Bool("access.allowed", d.Allowed))

	return d, nil
}

func (g *Gate) decideFor(
	res *entitlement.Resolution,
	resource, resourceID string,
	week int,
) *Decision {
	d := &Decision{
		Allowed:      res.IsAdmin || res.Tier.AllowsWeek(week),
		Resource:     resource,
		ResourceID:   resourceID,
		WeekNumber:   week,
		Plan:         res.EffectivePlan,
		RequiredPlan: g.tiers.RequiredPlan(week),
	}
	if !d.Allowed {
		d.Reason = fmt.Sprintf("upgrade to unlock week %d", week)
	}
	return d
}
