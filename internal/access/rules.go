package access

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

var (
	ErrMalformedRule     = errors.New("malformed rule condition")
	ErrMissingLeaveRange = errors.New("leave date range unavailable")
)

// Conditions is the predicate set of a rule policy. Absent predicates are
// nil; a present but empty list matches nothing.
type Conditions struct {
	StartHour        *int     `json:"startHour,omitempty" yaml:"startHour,omitempty"`
	EndHour          *int     `json:"endHour,omitempty" yaml:"endHour,omitempty"`
	AllowedRoles     []string `json:"allowedRoles" yaml:"allowedRoles"`
	AllowedDevices   []string `json:"allowedDevices" yaml:"allowedDevices"`
	AllowedIPs       []string `json:"allowedIPs" yaml:"allowedIPs"`
	AllowedCountries []string `json:"allowedCountries" yaml:"allowedCountries"`
	MaxDays          *int     `json:"maxDays,omitempty" yaml:"maxDays,omitempty"`
	OverrideRoles    []string `json:"overrideRoles" yaml:"overrideRoles"`
}

// Validate reports conditions that cannot be evaluated.
func (c Conditions) Validate() error {
	if (c.StartHour == nil) != (c.EndHour == nil) {
		return fmt.Errorf("%w: startHour and endHour must be set together", ErrMalformedRule)
	}
	if c.StartHour != nil {
		s, e := *c.StartHour, *c.EndHour
		if s < 0 || e > 24 || s >= e {
			return fmt.Errorf("%w: invalid hour window %d-%d", ErrMalformedRule, s, e)
		}
	}
	if c.MaxDays != nil && *c.MaxDays <= 0 {
		return fmt.Errorf("%w: maxDays must be positive", ErrMalformedRule)
	}
	return nil
}

// RulePolicy is a named, data-driven predicate set. Policies sharing a name
// are combined by conjunction.
type RulePolicy struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Conditions  Conditions `json:"conditions"`
}

// RuleStore returns every policy with the given name, in evaluation order.
type RuleStore interface {
	FindPoliciesByName(ctx context.Context, name string) ([]RulePolicy, error)
}

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Days counts calendar days including both ends. Times are reduced to their
// civil date first so clock offsets do not change the count.
func (r DateRange) Days() int {
	start := civilDate(r.Start)
	end := civilDate(r.End)
	return int(end.Sub(start).Hours()/24) + 1
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RequestContext is the request-scoped input to rule predicates.
type RequestContext struct {
	Hour        int
	PrimaryRole string
	UserAgent   string
	IP          string
	Country     string
	Leave       *DateRange
}

// CheckRules evaluates every policy named action against rc. With no
// matching policy the result depends on failOpen.
func CheckRules(ctx context.Context, rules RuleStore, action string, rc RequestContext, failOpen bool) (Result, error) {
	policies, err := rules.FindPoliciesByName(ctx, action)
	if err != nil {
		return Result{}, fmt.Errorf("rubac: finding policies: %w", err)
	}
	if len(policies) == 0 {
		if failOpen {
			return allow(), nil
		}
		return deny("no rule policy configured for " + action), nil
	}

	for _, p := range policies {
		res, err := evaluatePolicy(p, action, rc)
		if err != nil {
			return Result{}, fmt.Errorf("rubac: policy %q: %w", p.Name, err)
		}
		if !res.Allowed {
			return res, nil
		}
	}
	return allow(), nil
}

func evaluatePolicy(p RulePolicy, action string, rc RequestContext) (Result, error) {
	c := p.Conditions
	if err := c.Validate(); err != nil {
		return Result{}, err
	}

	if c.StartHour != nil {
		if rc.Hour < *c.StartHour || rc.Hour >= *c.EndHour {
			return deny(fmt.Sprintf("outside allowed hours (%d-%d)", *c.StartHour, *c.EndHour)), nil
		}
	}
	if c.AllowedRoles != nil && !slices.Contains(c.AllowedRoles, rc.PrimaryRole) {
		return deny("role not allowed"), nil
	}
	if c.AllowedDevices != nil && !containsAny(rc.UserAgent, c.AllowedDevices) {
		return deny("device not allowed"), nil
	}
	if c.AllowedIPs != nil && !slices.Contains(c.AllowedIPs, rc.IP) {
		return deny("IP not allowed"), nil
	}
	if c.AllowedCountries != nil && !slices.Contains(c.AllowedCountries, rc.Country) {
		return deny("country not allowed"), nil
	}

	if action == RouteApproveLeave && c.MaxDays != nil {
		if rc.Leave == nil {
			return Result{}, ErrMissingLeaveRange
		}
		if rc.Leave.Days() > *c.MaxDays && !slices.Contains(c.OverrideRoles, rc.PrimaryRole) {
			return deny(fmt.Sprintf("leave exceeds %d days", *c.MaxDays)), nil
		}
	}

	return allow(), nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
