package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/valinor-ai/hrgate/internal/auth"
	"github.com/valinor-ai/hrgate/internal/rbac"
	"golang.org/x/sync/errgroup"
)

// Client is the network context of the request being authorized.
type Client struct {
	IP        string
	UserAgent string
	Country   string
}

// Request names the route and the target of one authorization.
// ResourceID is zero for collection and create routes.
type Request struct {
	Route      string
	Principal  Principal
	ResourceID int64
	Client     Client
}

// Option configures the Composer.
type Option func(*Composer)

// WithAuditSink sets the sink that receives every terminal decision.
func WithAuditSink(sink AuditSink) Option {
	return func(c *Composer) {
		if sink != nil {
			c.sink = sink
		}
	}
}

func WithObserver(o Observer) Option {
	return func(c *Composer) {
		c.observer = o
	}
}

// WithCapabilities sets the resolver used by PrincipalFor.
func WithCapabilities(r CapabilityResolver) Option {
	return func(c *Composer) {
		c.caps = r
	}
}

// WithClock overrides the wall clock used for rule hours and timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Composer) {
		c.now = now
	}
}

// WithLocation sets the zone in which rule time windows are evaluated.
func WithLocation(loc *time.Location) Option {
	return func(c *Composer) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithTimeout bounds each evaluation, including every store call.
func WithTimeout(d time.Duration) Option {
	return func(c *Composer) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRulesFailOpen controls the outcome when no rule policy matches an action.
func WithRulesFailOpen(failOpen bool) Option {
	return func(c *Composer) {
		c.rulesFailOpen = failOpen
	}
}

func WithRoutes(routes map[string]Route) Option {
	return func(c *Composer) {
		c.routes = routes
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Composer) {
		if l != nil {
			c.logger = l
		}
	}
}

// Composer runs the gates wired for a route in a fixed order and returns one
// Decision. It keeps no state between calls.
type Composer struct {
	routes        map[string]Route
	resources     ResourceStore
	grants        GrantStore
	rules         RuleStore
	caps          CapabilityResolver
	sink          AuditSink
	observer      Observer
	logger        *slog.Logger
	now           func() time.Time
	loc           *time.Location
	timeout       time.Duration
	rulesFailOpen bool
}

func NewComposer(resources ResourceStore, grants GrantStore, rules RuleStore, opts ...Option) *Composer {
	c := &Composer{
		routes:        DefaultRoutes(),
		resources:     resources,
		grants:        grants,
		rules:         rules,
		sink:          nopSink{},
		logger:        slog.Default(),
		now:           time.Now,
		loc:           time.UTC,
		timeout:       5 * time.Second,
		rulesFailOpen: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Route returns the table entry for name.
func (c *Composer) Route(name string) (Route, bool) {
	r, ok := c.routes[name]
	return r, ok
}

// PrincipalFor builds the principal for a verified identity using the
// configured capability resolver.
func (c *Composer) PrincipalFor(identity *auth.Identity) (Principal, error) {
	return PrincipalFromIdentity(identity, c.caps)
}

// Authorize evaluates req and emits the terminal decision to the audit sink
// exactly once. Store failures, malformed rules and timeouts produce a
// VerdictError decision rather than a deny.
func (c *Composer) Authorize(ctx context.Context, req Request) Decision {
	start := time.Now()
	d := c.newDecision(req)

	route, ok := c.routes[req.Route]
	if !ok {
		c.fault(&d, GateNone, fmt.Errorf("unknown route %q", req.Route))
	} else {
		d.ResourceType = route.Resource
		evalCtx, cancel := context.WithTimeout(ctx, c.timeout)
		c.evaluate(evalCtx, route, req, &d)
		cancel()
	}

	c.emit(context.WithoutCancel(ctx), d, time.Since(start))
	return d
}

// AuthorizeLabelChange runs the immutable-label pre-check for req. It emits
// and returns a decision only when the check terminates the request; ok is
// true when evaluation should continue to Authorize.
func (c *Composer) AuthorizeLabelChange(ctx context.Context, req Request, requested bool) (Decision, bool) {
	res := CheckLabelChange(req.Principal, requested)
	if res.Allowed {
		return Decision{}, true
	}

	start := time.Now()
	d := c.newDecision(req)
	if route, ok := c.routes[req.Route]; ok {
		d.ResourceType = route.Resource
	}
	c.denied(&d, GateLabel, res.Reason)
	c.emit(context.WithoutCancel(ctx), d, time.Since(start))
	return d, false
}

func (c *Composer) newDecision(req Request) Decision {
	d := Decision{
		Action:      req.Route,
		PrincipalID: req.Principal.ID,
		Timestamp:   c.now().UTC(),
		ClientIP:    req.Client.IP,
		UserAgent:   req.Client.UserAgent,
	}
	if req.ResourceID != 0 {
		id := req.ResourceID
		d.ResourceID = &id
	}
	return d
}

func (c *Composer) evaluate(ctx context.Context, route Route, req Request, d *Decision) {
	p := req.Principal

	if !rbac.HasAnyRole(p.Roles, route.Roles) {
		c.denied(d, GateRBAC, "insufficient role")
		return
	}

	var attrs Attributes
	if route.needsAttributes() && req.ResourceID != 0 {
		loaded, dept, err := c.load(ctx, route, p, req.ResourceID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				d.Verdict = VerdictNotFound
				d.Gate = GateLoader
				d.Reason = string(route.Resource) + " not found"
				return
			}
			c.fault(d, GateLoader, err)
			return
		}
		attrs = loaded
		if route.needsDepartment() {
			p = p.WithDepartment(dept)
		}
	}

	switch {
	case route.MAC != "":
		if res := CheckMAC(p, attrs, route.MAC); !res.Allowed {
			c.denied(d, GateMAC, res.Reason)
			return
		}
	case route.DAC != "":
		if attrs == nil {
			c.fault(d, GateDAC, errors.New("dac route without a resource id"))
			return
		}
		res, err := await(ctx, func(ctx context.Context) (Result, error) {
			return CheckDAC(ctx, p, attrs, c.grants, route.DAC)
		})
		if err != nil {
			c.fault(d, GateDAC, err)
			return
		}
		if !res.Allowed {
			c.denied(d, GateDAC, res.Reason)
			return
		}
	}

	if route.ABAC {
		if res := CheckSensitivity(p, attrs); !res.Allowed {
			c.denied(d, GateABAC, res.Reason)
			return
		}
	}

	if route.Rules != "" {
		rc := RequestContext{
			Hour:        c.now().In(c.loc).Hour(),
			PrimaryRole: p.PrimaryRole(),
			UserAgent:   req.Client.UserAgent,
			IP:          req.Client.IP,
			Country:     req.Client.Country,
		}
		if rc.Country == "" {
			rc.Country = "Unknown"
		}
		if leave, ok := attrs.(LeaveRequest); ok {
			rc.Leave = &DateRange{Start: leave.StartDate, End: leave.EndDate}
		}

		res, err := await(ctx, func(ctx context.Context) (Result, error) {
			return CheckRules(ctx, c.rules, route.Rules, rc, c.rulesFailOpen)
		})
		if err != nil {
			c.fault(d, GateRuBAC, err)
			return
		}
		if !res.Allowed {
			c.denied(d, GateRuBAC, res.Reason)
			return
		}
	}

	d.Verdict = VerdictAllow
}

// load fetches the resource snapshot and, when a gate needs it, the
// principal's current profile department. Both run concurrently.
func (c *Composer) load(ctx context.Context, route Route, p Principal, id int64) (Attributes, *int64, error) {
	type loaded struct {
		attrs Attributes
		dept  *int64
	}

	res, err := await(ctx, func(ctx context.Context) (loaded, error) {
		var out loaded
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			a, err := c.resources.Load(gctx, route.Resource, id)
			if err != nil {
				return err
			}
			out.attrs = a
			return nil
		})
		if route.needsDepartment() {
			g.Go(func() error {
				dept, err := c.resources.ProfileDepartment(gctx, p.ID)
				if err != nil {
					return fmt.Errorf("loading principal department: %w", err)
				}
				out.dept = dept
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return loaded{}, err
		}
		return out, nil
	})
	if err != nil {
		return nil, nil, err
	}
	if res.attrs == nil {
		return nil, nil, fmt.Errorf("store returned no attributes for %s %d", route.Resource, id)
	}
	if res.dept == nil {
		res.dept = p.DepartmentID
	}
	return res.attrs, res.dept, nil
}

func (c *Composer) denied(d *Decision, gate Gate, reason string) {
	d.Verdict = VerdictDeny
	d.Gate = gate
	d.Reason = reason
	c.logger.Info("access denied",
		"route", d.Action,
		"gate", string(gate),
		"reason", reason,
		"principal_id", d.PrincipalID,
	)
}

func (c *Composer) fault(d *Decision, gate Gate, err error) {
	d.Verdict = VerdictError
	d.Gate = gate
	d.Reason = faultReason
	d.Err = err
	c.logger.Error("authorization fault",
		"route", d.Action,
		"gate", string(gate),
		"principal_id", d.PrincipalID,
		"error", err,
	)
}

func (c *Composer) emit(ctx context.Context, d Decision, elapsed time.Duration) {
	c.safely("audit sink", func() { c.sink.Record(ctx, d) })
	if c.observer != nil {
		c.safely("observer", func() {
			c.observer.ObserveDecision(d.Action, string(d.Verdict), string(d.Gate), elapsed)
		})
	}
}

func (c *Composer) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error(what+" panicked", "panic", r)
		}
	}()
	fn()
}

// await runs fn and returns its result, or ctx's error if ctx ends first.
// A store that ignores cancellation is abandoned rather than waited on.
func await[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("evaluation interrupted: %w", ctx.Err())
	}
}
