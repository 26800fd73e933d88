// Package hierarchy answers reporting-tree questions over the manager
// forest: who reports (transitively) to a user, how deep a user sits
// and whether one user manages another.
package hierarchy

import (
	"context"
	"errors"
	"sort"

	"github.com/iliyamo/sales-tenancy/internal/model"
)

var (
	// ErrCycle marks a corrupted manager chain.  It is a data-integrity
	// fault and is never returned for an empty tree.
	ErrCycle = errors.New("hierarchy: manager cycle detected")
	// ErrUserNotFound is returned when a referenced user does not exist.
	ErrUserNotFound = errors.New("hierarchy: user not found")
	// ErrCrossTenant is returned when a manager would live in another tenant.
	ErrCrossTenant = errors.New("hierarchy: manager belongs to another tenant")
)

// Node is the slice of a user the hierarchy needs.
type Node struct {
	ID               uint64
	TenantID         *uint64
	ManagerID        *uint64
	IsActiveInTenant bool
}

// Graph is the read port over the manager forest.  ActiveSubordinates
// returns the direct reports of userID that are active in their tenant.
// Lookup returns ErrUserNotFound for unknown ids.
type Graph interface {
	ActiveSubordinates(ctx context.Context, userID uint64) ([]uint64, error)
	Lookup(ctx context.Context, userID uint64) (Node, error)
}

// Forest is an in-memory adjacency view of one tenant's users: an arena
// of nodes plus a manager index.  It implements Graph without issuing a
// query per node.
type Forest struct {
	nodes    map[uint64]Node
	children map[uint64][]uint64
}

// NewForest indexes users by id and by manager.
func NewForest(users []model.User) *Forest {
	f := &Forest{
		nodes:    make(map[uint64]Node, len(users)),
		children: make(map[uint64][]uint64),
	}
	for _, u := range users {
		f.nodes[u.ID] = Node{
			ID:               u.ID,
			TenantID:         u.TenantID,
			ManagerID:        u.ManagerID,
			IsActiveInTenant: u.IsActiveInTenant,
		}
		if u.ManagerID != nil {
			f.children[*u.ManagerID] = append(f.children[*u.ManagerID], u.ID)
		}
	}
	for k := range f.children {
		ids := f.children[k]
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return f
}

func (f *Forest) ActiveSubordinates(_ context.Context, userID uint64) ([]uint64, error) {
	var out []uint64
	for _, id := range f.children[userID] {
		if f.nodes[id].IsActiveInTenant {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *Forest) Lookup(_ context.Context, userID uint64) (Node, error) {
	n, ok := f.nodes[userID]
	if !ok {
		return Node{}, ErrUserNotFound
	}
	return n, nil
}

// Roots returns the ids of users without a manager, or whose manager is
// not part of the forest, in ascending order.
func (f *Forest) Roots() []uint64 {
	var out []uint64
	for id, n := range f.nodes {
		if n.ManagerID == nil {
			out = append(out, id)
			continue
		}
		if _, ok := f.nodes[*n.ManagerID]; !ok {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Children returns every direct report of userID, active or not.
func (f *Forest) Children(userID uint64) []uint64 {
	return f.children[userID]
}

// Len is the number of users in the forest.
func (f *Forest) Len() int { return len(f.nodes) }
