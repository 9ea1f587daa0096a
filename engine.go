package bastion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/xraph/bastion/clock"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/plugin"
	"github.com/xraph/bastion/store"
)

// Engine is the authorization decision engine. It owns the role graph
// memo, consults the decision cache and fires plugin hooks. It is safe for
// concurrent use.
type Engine struct {
	store     store.Store
	evaluator Evaluator
	cache     Cache
	clock     clock.Clock
	plugins   *plugin.Registry
	logger    *slog.Logger
	config    Config

	graph *roleGraph
}

// NewEngine creates a new engine with the given options. A store is
// required; the cache is optional.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		evaluator: DefaultEvaluator(),
		clock:     clock.Real(),
		logger:    slog.Default(),
		config:    DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, errors.New("bastion: store is required")
	}
	e.config = e.config.normalized()
	e.graph = newRoleGraph(e.config.MaxRoleDepth, e.config.RoleWalkTimeout)
	return e, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry (may be nil).
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.config }

// GraphVersion returns the current role graph version.
func (e *Engine) GraphVersion() uint64 { return e.graph.Version() }

// Start performs any startup initialization.
func (e *Engine) Start(_ context.Context) error { return nil }

// Stop performs graceful shutdown.
func (e *Engine) Stop(ctx context.Context) error {
	if e.plugins != nil {
		e.plugins.EmitShutdown(ctx)
	}
	return nil
}

// Decide resolves whether req.UserID may exercise req.Permission on
// req.Resource. A denial is a normal Decision; an error is only returned
// for malformed requests, infrastructure failures (ErrResolution) and
// deadline overruns (ErrTimeout), and never accompanies an allow.
func (e *Engine) Decide(ctx context.Context, req *DecisionRequest) (*Decision, error) {
	start := time.Now()
	if err := req.validate(); err != nil {
		return nil, err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.DecideTimeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, e.failClosed(ctx, req, "start", err)
	}

	now := e.clock.Now()
	rc := req.Context
	if rc == nil {
		rc = &RequestContext{}
	}

	// 1. Cache lookup.
	var (
		key CacheKey
		gen Generation
	)
	useCache := e.cache != nil && e.config.CacheTTL > 0
	if useCache {
		key = CacheKey{UserID: req.UserID, Fingerprint: fingerprint(req, rc, now)}
		cached, current, ok := e.cache.Get(ctx, key)
		if ok {
			cached.Cached = true
			cached.EvalTimeNs = time.Since(start).Nanoseconds()
			if e.plugins != nil {
				e.plugins.EmitAfterDecide(ctx, req, cached)
			}
			return cached, nil
		}
		gen = current
	}

	if e.plugins != nil {
		e.plugins.EmitBeforeDecide(ctx, req)
	}

	// 2-5. Resolve.
	out, err := e.resolve(ctx, req, rc, now)
	if err != nil {
		return nil, err
	}
	d := out.decision
	d.EvaluatedAt = now
	d.EvalTimeNs = time.Since(start).Nanoseconds()

	// 6. Write-through. Decisions that consumed quota are never cached: a
	// hit would skip the consumption.
	if useCache && !out.consumed {
		if ttl := out.ttl(e.config, now); ttl > 0 {
			e.cache.Set(ctx, key, gen, d.Clone(), ttl)
		}
	}

	e.logger.Debug("bastion: decision",
		slog.String("user_id", req.UserID),
		slog.String("permission", req.Permission),
		slog.String("resource", req.Resource.Type+":"+req.Resource.ID),
		slog.Bool("allowed", d.Allowed),
		slog.String("reasons", strings.Join(d.DenialReasons, ",")),
	)
	if e.plugins != nil {
		e.plugins.EmitAfterDecide(ctx, req, d)
	}
	return d, nil
}

// Enforce returns an error wrapping ErrAccessDenied when req is denied.
func (e *Engine) Enforce(ctx context.Context, req *DecisionRequest) error {
	d, err := e.Decide(ctx, req)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return fmt.Errorf("%w: %s", ErrAccessDenied, strings.Join(d.DenialReasons, ", "))
	}
	return nil
}

// Allowed is a shorthand for a decision with an empty request context.
func (e *Engine) Allowed(ctx context.Context, userID, perm, resourceType, resourceID string) (bool, error) {
	d, err := e.Decide(ctx, &DecisionRequest{
		UserID:     userID,
		Permission: perm,
		Resource:   ResourceRef{Type: resourceType, ID: resourceID},
	})
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

// resolution is the outcome of resolve plus what the cache needs to know
// about it.
type resolution struct {
	decision *Decision

	// consumed is set when a quota-bearing grant was used.
	consumed bool

	// quotaBearing is set when any examined grant carries a quota.
	quotaBearing bool

	// expiresAt is the earliest instant at which the inputs examined may
	// change the outcome on their own (grant window edges, MFA age).
	expiresAt time.Time
}

func (r *resolution) expireBy(t time.Time, now time.Time) {
	if t.IsZero() || !t.After(now) {
		return
	}
	if r.expiresAt.IsZero() || t.Before(r.expiresAt) {
		r.expiresAt = t
	}
}

func (r *resolution) ttl(cfg Config, now time.Time) time.Duration {
	ttl := cfg.CacheTTL
	if r.quotaBearing && cfg.QuotaCacheTTL < ttl {
		ttl = cfg.QuotaCacheTTL
	}
	if !r.expiresAt.IsZero() {
		if until := r.expiresAt.Sub(now); until < ttl {
			ttl = until
		}
	}
	return ttl
}

func (e *Engine) resolve(ctx context.Context, req *DecisionRequest, rc *RequestContext, now time.Time) (*resolution, error) {
	out := &resolution{}

	// Permission lookup. Unknown and deactivated permissions are never
	// granted.
	perm, err := e.store.GetPermissionByName(ctx, req.Permission)
	if errors.Is(err, ErrNotFound) {
		out.decision = deny(ReasonNoGrant)
		return out, nil
	}
	if err != nil {
		return nil, e.failClosed(ctx, req, "load permission", err)
	}
	if !perm.IsActive {
		out.decision = deny(ReasonNoGrant)
		return out, nil
	}
	resourceType := req.Resource.Type
	if resourceType == "" {
		resourceType = perm.ResourceType
	}
	if resourceType != perm.ResourceType {
		out.decision = deny(ReasonNoGrant)
		return out, nil
	}

	// Static check.
	static, err := e.userPermissions(ctx, req.UserID)
	if err != nil {
		return nil, e.failClosed(ctx, req, "expand roles", err)
	}
	_, covered := static[perm.ID.String()]

	// Temporal gate. Only consulted when roles do not cover the
	// permission.
	var candidates []*grant.Grant
	if !covered {
		candidates, err = e.temporalCandidates(ctx, req, perm, now, out)
		if err != nil {
			return nil, err
		}
		if out.decision != nil {
			return out, nil
		}
	}

	// Conditional gate. Policies narrow access on top of roles and grants.
	matchedPolicies, reasons, err := e.evaluatePolicies(ctx, req, perm, resourceType, rc, now, out)
	if err != nil {
		return nil, err
	}
	if len(reasons) > 0 {
		out.decision = deny(reasons...)
		return out, nil
	}

	// Commit: consume a grant when the temporal path authorizes.
	var matchedGrants []string
	if !covered {
		g, err := e.consumeFirst(ctx, req, candidates, now)
		if err != nil {
			return nil, err
		}
		if g == nil {
			out.decision = deny(ReasonQuotaExceeded)
			return out, nil
		}
		matchedGrants = []string{g.ID.String()}
		out.consumed = g.Limited()
	}

	out.decision = &Decision{
		Allowed:          true,
		MatchedGrantIDs:  matchedGrants,
		MatchedPolicyIDs: matchedPolicies,
	}
	return out, nil
}

// temporalCandidates returns the active, non-exhausted grants that could
// authorize req. When none qualifies it sets out.decision to the denial.
func (e *Engine) temporalCandidates(ctx context.Context, req *DecisionRequest, perm *permission.Permission, now time.Time, out *resolution) ([]*grant.Grant, error) {
	grants, err := e.store.ListGrantsForUser(ctx, req.UserID, perm.ID)
	if err != nil {
		return nil, e.failClosed(ctx, req, "list grants", err)
	}

	var (
		candidates []*grant.Grant
		matching   int
		exhausted  bool
	)
	for _, g := range grants {
		if !g.IsActive || !g.Covers(req.Resource.ID) {
			continue
		}
		matching++
		if g.Limited() {
			out.quotaBearing = true
		}
		if g.ValidUntil != nil {
			out.expireBy(g.ValidUntil.Add(time.Nanosecond), now)
		}
		out.expireBy(g.ValidFrom, now)

		if !g.InWindow(now) {
			continue
		}
		if g.Exhausted() {
			exhausted = true
			continue
		}
		candidates = append(candidates, g)
	}

	switch {
	case matching == 0:
		out.decision = deny(ReasonNoGrant)
	case len(candidates) == 0 && exhausted:
		out.decision = deny(ReasonQuotaExceeded)
	case len(candidates) == 0:
		out.decision = deny(ReasonNoActiveGrant)
	}
	return candidates, nil
}

// evaluatePolicies evaluates every active policy that applies to the
// permission and resource type. All must pass.
func (e *Engine) evaluatePolicies(ctx context.Context, req *DecisionRequest, perm *permission.Permission, resourceType string, rc *RequestContext, now time.Time, out *resolution) (matched, reasons []string, err error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, e.failClosed(ctx, req, "evaluate policies", err)
	}
	policies, err := e.store.ListActivePolicies(ctx)
	if err != nil {
		return nil, nil, e.failClosed(ctx, req, "list policies", err)
	}

	for _, p := range policies {
		if !p.AppliesTo(perm.ID, resourceType) {
			continue
		}
		ok, evalErr := e.evaluator.Evaluate(p, rc, now)
		switch {
		case evalErr != nil:
			e.logger.Warn("bastion: policy failed closed",
				slog.String("policy", p.Name),
				slog.String("policy_id", p.ID.String()),
				slog.String("error", evalErr.Error()),
			)
			reasons = append(reasons, ConfigurationErrorReason(p.Name))
		case !ok:
			reasons = append(reasons, ConditionFailedReason(p.Name))
		default:
			matched = append(matched, p.ID.String())
			out.expireBy(conditionExpiry(p, rc), now)
		}
	}
	return matched, reasons, nil
}

// consumeFirst uses the first candidate that still has quota. Unlimited
// grants win without touching the store; limited ones are tried soonest
// expiring first. It returns nil when every candidate lost the race.
func (e *Engine) consumeFirst(ctx context.Context, req *DecisionRequest, candidates []*grant.Grant, now time.Time) (*grant.Grant, error) {
	slices.SortStableFunc(candidates, func(a, b *grant.Grant) int {
		switch {
		case !a.Limited() && b.Limited():
			return -1
		case a.Limited() && !b.Limited():
			return 1
		case a.ValidUntil != nil && b.ValidUntil == nil:
			return -1
		case a.ValidUntil == nil && b.ValidUntil != nil:
			return 1
		case a.ValidUntil != nil && b.ValidUntil != nil && !a.ValidUntil.Equal(*b.ValidUntil):
			return a.ValidUntil.Compare(*b.ValidUntil)
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})

	for _, g := range candidates {
		if !g.Limited() {
			return g, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, e.failClosed(ctx, req, "consume grant", err)
		}
		updated, err := e.store.ConsumeGrant(ctx, g.ID, now)
		if errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrGrantInactive) || errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, e.failClosed(ctx, req, "consume grant", err)
		}
		e.invalidateUser(ctx, updated.UserID)
		if e.plugins != nil {
			e.plugins.EmitGrantConsumed(ctx, updated)
		}
		return updated, nil
	}
	return nil, nil
}

// failClosed classifies an error raised while resolving: context expiry
// becomes ErrTimeout, anything else ErrResolution.
func (e *Engine) failClosed(ctx context.Context, req *DecisionRequest, stage string, err error) error {
	var out error
	if ctxErr := ctx.Err(); ctxErr != nil || errors.Is(err, context.DeadlineExceeded) {
		out = fmt.Errorf("%w: %s: %w", ErrTimeout, stage, err)
	} else {
		out = fmt.Errorf("%w: %s: %w", ErrResolution, stage, err)
	}
	e.logger.Warn("bastion: decision failed closed",
		slog.String("user_id", req.UserID),
		slog.String("permission", req.Permission),
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
	return out
}

func (e *Engine) invalidateUser(ctx context.Context, userID string) {
	if e.cache != nil {
		e.cache.InvalidateUser(ctx, userID)
	}
}

func (e *Engine) invalidateAll(ctx context.Context) {
	if e.cache != nil {
		e.cache.InvalidateAll(ctx)
	}
}
