// Package visibility decides which owned records a user may see.  The
// tier precedence (all > hierarchy > self) is enforced here and nowhere
// else; repositories only apply the resulting Scope.
package visibility

import (
	"context"
	"strings"

	"github.com/iliyamo/sales-tenancy/internal/hierarchy"
	"github.com/iliyamo/sales-tenancy/internal/metrics"
	"github.com/iliyamo/sales-tenancy/internal/model"
)

// Tier is the visibility level a scope grants.
type Tier string

const (
	TierNone      Tier = "none"
	TierAll       Tier = "all"
	TierHierarchy Tier = "hierarchy"
	TierSelf      Tier = "self"
)

// Scope restricts a query to the rows one user may see.  TenantID always
// applies.  OwnerIDs is ignored for TierAll and holds the allowed owners
// for TierHierarchy and TierSelf.
type Scope struct {
	Tier     Tier
	TenantID uint64
	OwnerIDs []uint64
}

// Where renders the scope as a SQL predicate over the given columns.  A
// TierNone scope matches nothing.
func (s Scope) Where(tenantCol, ownerCol string) (string, []any) {
	switch s.Tier {
	case TierAll:
		return tenantCol + " = ?", []any{s.TenantID}
	case TierHierarchy, TierSelf:
		if len(s.OwnerIDs) == 0 {
			return "1=0", nil
		}
		args := make([]any, 0, len(s.OwnerIDs)+1)
		args = append(args, s.TenantID)
		for _, id := range s.OwnerIDs {
			args = append(args, id)
		}
		ph := strings.TrimSuffix(strings.Repeat("?,", len(s.OwnerIDs)), ",")
		return tenantCol + " = ? AND " + ownerCol + " IN (" + ph + ")", args
	default:
		return "1=0", nil
	}
}

// Allows applies the scope to a single record.
func (s Scope) Allows(r model.Owned) bool {
	if s.Tier == TierNone || r == nil {
		return false
	}
	t := r.Tenant()
	if t == nil || *t != s.TenantID {
		return false
	}
	if s.Tier == TierAll {
		return true
	}
	o := r.Owner()
	if o == nil {
		return false
	}
	for _, id := range s.OwnerIDs {
		if id == *o {
			return true
		}
	}
	return false
}

// Subordinates is the part of the hierarchy engine the filter needs.
type Subordinates interface {
	SubordinateIDs(ctx context.Context, userID uint64, useCache bool) (hierarchy.IDSet, error)
}

// Filter turns a user into a Scope.
type Filter struct {
	subs     Subordinates
	useCache bool
}

// NewFilter returns a Filter reading subordinate sets from subs.
func NewFilter(subs Subordinates, useCache bool) *Filter {
	return &Filter{subs: subs, useCache: useCache}
}

// Scope computes the visibility scope of user for records of kind.  The
// first matching rule wins:
//
//  1. no tenant: nothing is visible
//  2. the user's tenant always bounds the result
//  3. ViewAllData: the whole tenant
//  4. ViewHierarchyData: records owned by the user or anyone below them
//  5. otherwise: records owned by the user
//
// A user without a role falls through to rule 5.
func (f *Filter) Scope(ctx context.Context, user *model.User, kind model.EntityKind) (Scope, error) {
	s, err := f.scope(ctx, user)
	if err != nil {
		return Scope{Tier: TierNone}, err
	}
	metrics.VisibilityScopeCounter.WithLabelValues(kind.Name, string(s.Tier)).Inc()
	return s, nil
}

func (f *Filter) scope(ctx context.Context, user *model.User) (Scope, error) {
	if user == nil || user.TenantID == nil {
		return Scope{Tier: TierNone}, nil
	}
	caps := user.Capabilities()
	s := Scope{TenantID: *user.TenantID}
	switch {
	case caps.ViewAllData:
		s.Tier = TierAll
	case caps.ViewHierarchyData:
		ids, err := f.subs.SubordinateIDs(ctx, user.ID, f.useCache)
		if err != nil {
			return Scope{}, err
		}
		ids[user.ID] = struct{}{}
		s.Tier = TierHierarchy
		s.OwnerIDs = ids.Sorted()
	default:
		s.Tier = TierSelf
		s.OwnerIDs = []uint64{user.ID}
	}
	return s, nil
}

// CanView is the single-record form of Scope.
func (f *Filter) CanView(ctx context.Context, user *model.User, r model.Owned) (bool, error) {
	s, err := f.scope(ctx, user)
	if err != nil {
		return false, err
	}
	return s.Allows(r), nil
}
