package access

import (
	"context"
	"fmt"
	"time"
)

// Grant is one discretionary permission row. Several rows may exist for the
// same pair; the store returns the most recent.
type Grant struct {
	ID         int64     `json:"id"`
	ResourceID int64     `json:"resource_id"`
	UserID     int64     `json:"user_id"`
	CanView    bool      `json:"can_view"`
	CanEdit    bool      `json:"can_edit"`
	GrantedBy  int64     `json:"granted_by"`
	GrantedAt  time.Time `json:"granted_at"`
}

// GrantStore looks up grants. A nil grant with nil error means none exists.
type GrantStore interface {
	FindGrant(ctx context.Context, resourceID, userID int64) (*Grant, error)
}

// CheckDAC applies owner bypass and the grant table. Only documents carry
// grants; any other resource is an evaluation fault.
func CheckDAC(ctx context.Context, p Principal, attrs Attributes, grants GrantStore, action Action) (Result, error) {
	doc, ok := attrs.(Document)
	if !ok {
		return Result{}, fmt.Errorf("dac: no grant table for %T", attrs)
	}
	if doc.ownedBy(p.ID) {
		return allow(), nil
	}

	g, err := grants.FindGrant(ctx, doc.ID, p.ID)
	if err != nil {
		return Result{}, fmt.Errorf("dac: finding grant: %w", err)
	}
	if g == nil {
		return deny("no permissions assigned for this user"), nil
	}

	switch action {
	case ActionView:
		if !g.CanView {
			return deny("view permission not granted"), nil
		}
	case ActionEdit, ActionUpdate, ActionDelete:
		// delete has no bit of its own
		if !g.CanEdit {
			return deny("edit permission not granted"), nil
		}
	default:
		return Result{}, fmt.Errorf("dac: unsupported action %q", action)
	}
	return allow(), nil
}
