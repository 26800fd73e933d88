// Package service coordinates writes to the reporting structure: it
// validates them against the hierarchy engine, persists them, keeps the
// subordinate cache coherent and publishes the resulting events.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/sales-tenancy/internal/hierarchy"
	"github.com/iliyamo/sales-tenancy/internal/logger"
	"github.com/iliyamo/sales-tenancy/internal/metrics"
	"github.com/iliyamo/sales-tenancy/internal/model"
	"github.com/iliyamo/sales-tenancy/internal/queue"
	"github.com/iliyamo/sales-tenancy/internal/repository"
)

// ErrForbidden is returned when the actor may not change the target.
var ErrForbidden = errors.New("forbidden")

// UserStore is the persistence the org service needs.
type UserStore interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	ListByTenant(ctx context.Context, tenantID uint64) ([]model.User, error)
	SetManager(ctx context.Context, userID uint64, managerID *uint64) (*uint64, error)
	SetActive(ctx context.Context, userID uint64, active bool) error
}

// Hierarchy is the part of the hierarchy engine the org service needs.
type Hierarchy interface {
	ReportsTo(ctx context.Context, userID, managerID uint64) (bool, error)
	ValidateManager(ctx context.Context, userID, managerID uint64) error
	ManagerChanged(ctx context.Context, userID uint64, oldManager, newManager *uint64) error
}

// OrgService changes and reports on the reporting structure of a tenant.
type OrgService struct {
	users UserStore
	hier  Hierarchy
	pub   Publisher
	now   func() time.Time
}

func NewOrgService(users UserStore, hier Hierarchy, pub Publisher) *OrgService {
	if pub == nil {
		pub = NoopPublisher{}
	}
	return &OrgService{users: users, hier: hier, pub: pub, now: func() time.Time { return time.Now().UTC() }}
}

// target loads userID and checks that actor may restructure it.  Users of
// other tenants are reported as missing.  An actor without tenant-wide
// visibility may only touch users below them.
func (s *OrgService) target(ctx context.Context, actor *model.User, userID uint64) (*model.User, error) {
	if actor == nil || actor.TenantID == nil {
		return nil, ErrForbidden
	}
	u, err := s.member(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	if actor.Capabilities().ViewAllData {
		return u, nil
	}
	below, err := s.hier.ReportsTo(ctx, userID, actor.ID)
	if err != nil {
		return nil, err
	}
	if !below {
		return nil, ErrForbidden
	}
	return u, nil
}

// member loads id as a user of actor's tenant.  A user of another tenant
// is reported exactly like a missing one.
func (s *OrgService) member(ctx context.Context, actor *model.User, id uint64) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.SameTenant(u) {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

// ReassignManager makes managerID the manager of userID, or detaches
// userID when managerID is nil.  A manager outside the actor's tenant
// reads as missing.  The new edge is then validated against
// self-management and cycles.  After the
// write, every cached subordinate set on the old and new chains is
// dropped and a ManagerChangedEvent is published for other instances.
func (s *OrgService) ReassignManager(ctx context.Context, actor *model.User, userID uint64, managerID *uint64) error {
	u, err := s.target(ctx, actor, userID)
	if err != nil {
		return err
	}
	if managerID != nil {
		if _, err := s.member(ctx, actor, *managerID); err != nil {
			return err
		}
	}
	if !actor.Capabilities().ViewAllData {
		// Without tenant-wide reach the new manager must be the actor or
		// someone below them, and users cannot be detached to the top.
		if managerID == nil {
			return ErrForbidden
		}
		if *managerID != actor.ID {
			below, err := s.hier.ReportsTo(ctx, *managerID, actor.ID)
			if err != nil {
				return err
			}
			if !below {
				return ErrForbidden
			}
		}
	}
	if managerID != nil {
		if err := s.hier.ValidateManager(ctx, userID, *managerID); err != nil {
			return err
		}
	}

	old, err := s.users.SetManager(ctx, userID, managerID)
	if err != nil {
		return fmt.Errorf("set manager: %w", err)
	}
	log := logger.FromContext(ctx).With(zap.Uint64("user_id", userID))
	log.Info("manager changed", zap.Uint64p("old_manager_id", old), zap.Uint64p("new_manager_id", managerID))
	s.invalidate(ctx, log, userID, old, managerID)

	ev := queue.ManagerChangedEvent{
		UserID:       userID,
		TenantID:     *u.TenantID,
		OldManagerID: old,
		NewManagerID: managerID,
		ChangedBy:    actor.ID,
		ChangedAt:    s.now(),
	}
	if err := s.pub.PublishManagerChanged(ctx, ev); err != nil {
		log.Warn("publish manager change failed, other instances keep stale entries until TTL", zap.Error(err))
	}
	return nil
}

// SetActive changes whether userID counts as an active member of its
// tenant.  Inactive users drop out of every subordinate set, so the
// user's manager chain is invalidated like a manager change in place.
func (s *OrgService) SetActive(ctx context.Context, actor *model.User, userID uint64, active bool) error {
	u, err := s.target(ctx, actor, userID)
	if err != nil {
		return err
	}
	if err := s.users.SetActive(ctx, userID, active); err != nil {
		return err
	}
	log := logger.FromContext(ctx).With(zap.Uint64("user_id", userID))
	log.Info("membership changed", zap.Bool("active", active))
	s.invalidate(ctx, log, userID, u.ManagerID, u.ManagerID)

	ev := queue.ManagerChangedEvent{
		UserID:       userID,
		TenantID:     *u.TenantID,
		OldManagerID: u.ManagerID,
		NewManagerID: u.ManagerID,
		ChangedBy:    actor.ID,
		ChangedAt:    s.now(),
	}
	if err := s.pub.PublishManagerChanged(ctx, ev); err != nil {
		log.Warn("publish membership change failed", zap.Error(err))
	}
	return nil
}

func (s *OrgService) invalidate(ctx context.Context, log *zap.Logger, userID uint64, old, neu *uint64) {
	if err := s.hier.ManagerChanged(ctx, userID, old, neu); err != nil {
		log.Error("invalidate subordinate cache", zap.Error(err))
	}
}

// ChartNode is one user in the org chart with their direct reports.
type ChartNode struct {
	ID      uint64      `json:"id"`
	Email   string      `json:"email"`
	Role    string      `json:"role,omitempty"`
	Active  bool        `json:"active"`
	Reports []ChartNode `json:"reports,omitempty"`
}

// OrgChart is the tenant's reporting forest.  Detached counts users that
// are not reachable from any root, which only happens on a manager
// cycle.
type OrgChart struct {
	Roots    []ChartNode `json:"roots"`
	Users    int         `json:"users"`
	Detached int         `json:"detached"`
}

// OrgChart builds the reporting forest of the actor's tenant from a
// single query.
func (s *OrgService) OrgChart(ctx context.Context, actor *model.User) (OrgChart, error) {
	if actor == nil || actor.TenantID == nil {
		return OrgChart{}, ErrForbidden
	}
	users, err := s.users.ListByTenant(ctx, *actor.TenantID)
	if err != nil {
		return OrgChart{}, err
	}
	forest := hierarchy.NewForest(users)
	byID := make(map[uint64]model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	chart := OrgChart{Users: forest.Len()}
	seen := make(map[uint64]bool, len(users))
	for _, root := range forest.Roots() {
		chart.Roots = append(chart.Roots, build(forest, byID, root, seen))
	}
	chart.Detached = len(users) - len(seen)
	if chart.Detached > 0 {
		metrics.IntegrityFaultCounter.Inc()
		logger.FromContext(ctx).Error("org chart has users outside every tree",
			zap.Uint64("tenant_id", *actor.TenantID), zap.Int("detached", chart.Detached))
	}
	return chart, nil
}

// build materializes the subtree under id breadth first, then links the
// nodes bottom up, so deep chains never recurse.
func build(f *hierarchy.Forest, byID map[uint64]model.User, id uint64, seen map[uint64]bool) ChartNode {
	node := func(id uint64) ChartNode {
		u := byID[id]
		n := ChartNode{ID: id, Email: u.Email, Active: u.IsActiveInTenant}
		if u.Role != nil {
			n.Role = u.Role.Name
		}
		return n
	}
	order := []uint64{id}
	seen[id] = true
	for i := 0; i < len(order); i++ {
		for _, c := range f.Children(order[i]) {
			if !seen[c] {
				seen[c] = true
				order = append(order, c)
			}
		}
	}
	done := make(map[uint64]ChartNode, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		n := node(order[i])
		for _, c := range f.Children(n.ID) {
			if child, ok := done[c]; ok {
				n.Reports = append(n.Reports, child)
				delete(done, c)
			}
		}
		done[n.ID] = n
	}
	return done[id]
}
