package hierarchy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/sales-tenancy/internal/cache"
	"github.com/iliyamo/sales-tenancy/internal/model"
)

func ptr(v uint64) *uint64 { return &v }

const (
	owner    = uint64(1)
	manager  = uint64(2)
	contribA = uint64(3)
	contribB = uint64(4)
)

// threeLevel builds Owner -> Manager -> {C1, C2} in tenant 100.
func threeLevel() []model.User {
	t := ptr(100)
	return []model.User{
		{ID: owner, TenantID: t, IsActiveInTenant: true},
		{ID: manager, TenantID: t, ManagerID: ptr(owner), IsActiveInTenant: true},
		{ID: contribA, TenantID: t, ManagerID: ptr(manager), IsActiveInTenant: true},
		{ID: contribB, TenantID: t, ManagerID: ptr(manager), IsActiveInTenant: true},
	}
}

type countingGraph struct {
	Graph
	calls int
}

func (g *countingGraph) ActiveSubordinates(ctx context.Context, id uint64) ([]uint64, error) {
	g.calls++
	return g.Graph.ActiveSubordinates(ctx, id)
}

func TestSubordinatesOfThreeLevels(t *testing.T) {
	ctx := context.Background()
	e := New(NewForest(threeLevel()), nil)

	tests := []struct {
		name        string
		user        uint64
		includeSelf bool
		want        []uint64
	}{
		{"owner", owner, false, []uint64{manager, contribA, contribB}},
		{"manager", manager, false, []uint64{contribA, contribB}},
		{"leaf", contribA, false, []uint64{}},
		{"leaf with self", contribA, true, []uint64{contribA}},
		{"manager with self", manager, true, []uint64{manager, contribA, contribB}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.SubordinatesOf(ctx, tt.user, tt.includeSelf)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubordinatesOfSkipsInactive(t *testing.T) {
	users := threeLevel()
	users[1].IsActiveInTenant = false
	e := New(NewForest(users), nil)

	got, err := e.SubordinatesOf(context.Background(), owner, false)
	require.NoError(t, err)
	assert.Empty(t, got, "an inactive manager hides their whole subtree")
}

func TestSubordinatesOfDeepChainIsIterative(t *testing.T) {
	const depth = 10000
	t100 := ptr(100)
	users := make([]model.User, depth)
	for i := range users {
		users[i] = model.User{ID: uint64(i + 1), TenantID: t100, IsActiveInTenant: true}
		if i > 0 {
			users[i].ManagerID = ptr(uint64(i))
		}
	}
	e := New(NewForest(users), nil, WithMaxDepth(depth+1))

	got, err := e.SubordinatesOf(context.Background(), 1, false)
	require.NoError(t, err)
	assert.Len(t, got, depth-1)

	level, err := e.HierarchyLevel(context.Background(), depth)
	require.NoError(t, err)
	assert.Equal(t, depth-1, level)
}

func cyclic() []model.User {
	t := ptr(100)
	return []model.User{
		{ID: 10, TenantID: t, ManagerID: ptr(11), IsActiveInTenant: true},
		{ID: 11, TenantID: t, ManagerID: ptr(10), IsActiveInTenant: true},
	}
}

func TestCycleIsIntegrityFault(t *testing.T) {
	ctx := context.Background()
	e := New(NewForest(cyclic()), nil)

	_, err := e.SubordinatesOf(ctx, 10, false)
	assert.ErrorIs(t, err, ErrCycle)

	_, err = e.HierarchyLevel(ctx, 10)
	assert.ErrorIs(t, err, ErrCycle)
	assert.False(t, errors.Is(err, ErrUserNotFound))
}

func TestHierarchyLevel(t *testing.T) {
	ctx := context.Background()
	e := New(NewForest(threeLevel()), nil)

	for id, want := range map[uint64]int{owner: 0, manager: 1, contribA: 2, contribB: 2} {
		got, err := e.HierarchyLevel(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got, "user %d", id)
	}

	_, err := e.HierarchyLevel(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestHierarchyLevelDepthSentinel(t *testing.T) {
	e := New(NewForest(threeLevel()), nil, WithMaxDepth(1))
	_, err := e.HierarchyLevel(context.Background(), contribA)
	assert.ErrorIs(t, err, ErrCycle)
}

func TestIsManagerOf(t *testing.T) {
	ctx := context.Background()
	e := New(NewForest(threeLevel()), nil)

	cases := []struct {
		a, b uint64
		want bool
	}{
		{owner, contribA, true},
		{manager, contribB, true},
		{contribA, manager, false},
		{contribA, contribB, false},
		{manager, manager, false},
	}
	for _, c := range cases {
		got, err := e.IsManagerOf(ctx, c.a, c.b)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "%d manages %d", c.a, c.b)
	}
}

func TestSubordinateIDsUsesCache(t *testing.T) {
	ctx := context.Background()
	g := &countingGraph{Graph: NewForest(threeLevel())}
	mem := cache.NewMemory()
	e := New(g, mem, WithTTL(time.Minute))

	first, err := e.SubordinateIDs(ctx, manager, true)
	require.NoError(t, err)
	assert.Equal(t, []uint64{manager, contribA, contribB}, first.Sorted())
	calls := g.calls

	second, err := e.SubordinateIDs(ctx, manager, true)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, calls, g.calls, "second read is served from cache")

	_, err = e.SubordinateIDs(ctx, manager, false)
	require.NoError(t, err)
	assert.Greater(t, g.calls, calls, "useCache=false always recomputes")
}

func TestManagerChangedInvalidatesBothChains(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory()
	e := New(NewForest(threeLevel()), mem)

	for _, id := range []uint64{owner, manager, contribA, contribB} {
		_, err := e.SubordinateIDs(ctx, id, true)
		require.NoError(t, err)
	}
	require.Equal(t, 4, mem.Len())

	// C1 moves from Manager to Owner.
	require.NoError(t, e.ManagerChanged(ctx, contribA, ptr(manager), ptr(owner)))

	for _, id := range []uint64{owner, manager, contribA} {
		_, ok, _ := mem.Get(ctx, CacheKey(id))
		assert.False(t, ok, "entry for %d must be gone", id)
	}
	_, ok, _ := mem.Get(ctx, CacheKey(contribB))
	assert.True(t, ok, "unrelated sibling stays cached")
}

func TestValidateManager(t *testing.T) {
	ctx := context.Background()
	users := append(threeLevel(), model.User{ID: 50, TenantID: ptr(200), IsActiveInTenant: true})
	e := New(NewForest(users), nil)

	assert.NoError(t, e.ValidateManager(ctx, contribA, owner))
	assert.ErrorIs(t, e.ValidateManager(ctx, owner, owner), ErrCycle)
	assert.ErrorIs(t, e.ValidateManager(ctx, owner, contribA), ErrCycle)
	assert.ErrorIs(t, e.ValidateManager(ctx, contribA, 50), ErrCrossTenant)
	assert.ErrorIs(t, e.ValidateManager(ctx, contribA, 999), ErrUserNotFound)
}

func TestForestRoots(t *testing.T) {
	f := NewForest(threeLevel())
	assert.Equal(t, []uint64{owner}, f.Roots())
	assert.Equal(t, []uint64{contribA, contribB}, f.Children(manager))
	assert.Equal(t, 4, f.Len())
}

func TestReportsToIgnoresMembership(t *testing.T) {
	ctx := context.Background()
	users := threeLevel()
	users[1].IsActiveInTenant = false
	e := New(NewForest(users), nil)

	ok, err := e.ReportsTo(ctx, contribA, owner)
	require.NoError(t, err)
	assert.True(t, ok, "an inactive manager still sits on the chain")

	ok, err = e.IsManagerOf(ctx, owner, contribA)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.ReportsTo(ctx, owner, contribA)
	require.NoError(t, err)
	assert.False(t, ok)
}
