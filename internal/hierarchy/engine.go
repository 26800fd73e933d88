package hierarchy

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/sales-tenancy/internal/cache"
	"github.com/iliyamo/sales-tenancy/internal/logger"
	"github.com/iliyamo/sales-tenancy/internal/metrics"
)

const (
	// DefaultCacheTTL bounds how long a subordinate set may be served stale.
	DefaultCacheTTL = time.Hour
	// DefaultMaxDepth is the longest manager chain accepted before the
	// chain is reported as corrupted.
	DefaultMaxDepth = 256

	cacheKeyPrefix = "hierarchy:subordinates:"
)

// IDSet is a set of user ids.
type IDSet map[uint64]struct{}

// Contains reports whether id is in the set.
func (s IDSet) Contains(id uint64) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in ascending order.
func (s IDSet) Sorted() []uint64 {
	out := make([]uint64, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Engine computes reachability over a Graph and caches subordinate sets.
type Engine struct {
	graph    Graph
	cache    cache.Cache
	ttl      time.Duration
	maxDepth int
}

// Option customises an Engine.
type Option func(*Engine)

// WithTTL sets the subordinate cache TTL.
func WithTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithMaxDepth sets the manager chain depth sentinel.
func WithMaxDepth(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

// New returns an Engine over g.  A nil cache disables caching.
func New(g Graph, c cache.Cache, opts ...Option) *Engine {
	if c == nil {
		c = cache.Noop{}
	}
	e := &Engine{graph: g, cache: c, ttl: DefaultCacheTTL, maxDepth: DefaultMaxDepth}
	for _, o := range opts {
		o(e)
	}
	return e
}

// CacheKey is the cache key of userID's subordinate set.
func CacheKey(userID uint64) string {
	return cacheKeyPrefix + strconv.FormatUint(userID, 10)
}

// SubordinatesOf walks the reporting tree under userID breadth first and
// returns every active transitive report in ascending order.  The
// traversal is iterative so tree depth never grows the stack.  Reaching
// a user twice can only happen through a manager cycle and yields
// ErrCycle.
func (e *Engine) SubordinatesOf(ctx context.Context, userID uint64, includeSelf bool) ([]uint64, error) {
	visited := IDSet{userID: {}}
	queue := []uint64{userID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		subs, err := e.graph.ActiveSubordinates(ctx, cur)
		if err != nil {
			return nil, fmt.Errorf("subordinates of %d: %w", cur, err)
		}
		for _, id := range subs {
			if visited.Contains(id) {
				metrics.IntegrityFaultCounter.Inc()
				return nil, fmt.Errorf("%w: user %d reached twice below %d", ErrCycle, id, userID)
			}
			visited[id] = struct{}{}
			queue = append(queue, id)
		}
	}
	if !includeSelf {
		delete(visited, userID)
	}
	return visited.Sorted(), nil
}

// HierarchyLevel returns 0 for a user without a manager and otherwise one
// more than the manager's level.  Chains longer than the depth sentinel
// or revisiting a user are reported as ErrCycle.
func (e *Engine) HierarchyLevel(ctx context.Context, userID uint64) (int, error) {
	chain, err := e.ancestors(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(chain), nil
}

// ancestors returns the manager chain above userID, nearest first.
func (e *Engine) ancestors(ctx context.Context, userID uint64) ([]uint64, error) {
	n, err := e.graph.Lookup(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup %d: %w", userID, err)
	}
	seen := IDSet{userID: {}}
	var chain []uint64
	for n.ManagerID != nil {
		mid := *n.ManagerID
		if seen.Contains(mid) || len(chain) >= e.maxDepth {
			metrics.IntegrityFaultCounter.Inc()
			return nil, fmt.Errorf("%w: manager chain of %d loops at %d", ErrCycle, userID, mid)
		}
		seen[mid] = struct{}{}
		chain = append(chain, mid)
		if n, err = e.graph.Lookup(ctx, mid); err != nil {
			return nil, fmt.Errorf("lookup manager %d: %w", mid, err)
		}
	}
	return chain, nil
}

// SubordinateIDs returns userID and every transitive active report.
// With useCache the set is read through the cache; cache failures fall
// back to computing the set and are never fatal.
func (e *Engine) SubordinateIDs(ctx context.Context, userID uint64, useCache bool) (IDSet, error) {
	log := logger.FromContext(ctx)
	key := CacheKey(userID)
	if useCache {
		raw, ok, err := e.cache.Get(ctx, key)
		switch {
		case err != nil:
			metrics.HierarchyCacheCounter.WithLabelValues("error").Inc()
			log.Warn("subordinate cache read failed", zap.Uint64("user_id", userID), zap.Error(err))
		case ok:
			var ids []uint64
			if err := json.Unmarshal([]byte(raw), &ids); err == nil {
				metrics.HierarchyCacheCounter.WithLabelValues("hit").Inc()
				return toSet(ids), nil
			}
			log.Warn("subordinate cache entry corrupt", zap.Uint64("user_id", userID))
		default:
			metrics.HierarchyCacheCounter.WithLabelValues("miss").Inc()
		}
	} else {
		metrics.HierarchyCacheCounter.WithLabelValues("bypass").Inc()
	}

	ids, err := e.SubordinatesOf(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	if useCache {
		if raw, err := json.Marshal(ids); err == nil {
			if err := e.cache.Set(ctx, key, string(raw), e.ttl); err != nil {
				log.Warn("subordinate cache write failed", zap.Uint64("user_id", userID), zap.Error(err))
			}
		}
	}
	return toSet(ids), nil
}

// IsManagerOf reports whether b reports to a, directly or transitively.
func (e *Engine) IsManagerOf(ctx context.Context, a, b uint64) (bool, error) {
	if a == b {
		return false, nil
	}
	ids, err := e.SubordinatesOf(ctx, a, false)
	if err != nil {
		return false, err
	}
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= b })
	return i < len(ids) && ids[i] == b, nil
}

// ReportsTo reports whether managerID sits anywhere on the manager
// chain above userID.  Unlike IsManagerOf it follows the stored edges
// regardless of membership, so inactive users still report to their
// managers.
func (e *Engine) ReportsTo(ctx context.Context, userID, managerID uint64) (bool, error) {
	chain, err := e.ancestors(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, id := range chain {
		if id == managerID {
			return true, nil
		}
	}
	return false, nil
}

// ValidateManager checks that userID may report to managerID: not
// itself, same tenant, and managerID is not already below userID.
func (e *Engine) ValidateManager(ctx context.Context, userID, managerID uint64) error {
	if userID == managerID {
		return fmt.Errorf("%w: user %d cannot manage itself", ErrCycle, userID)
	}
	u, err := e.graph.Lookup(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup %d: %w", userID, err)
	}
	m, err := e.graph.Lookup(ctx, managerID)
	if err != nil {
		return fmt.Errorf("lookup manager %d: %w", managerID, err)
	}
	if u.TenantID == nil || m.TenantID == nil || *u.TenantID != *m.TenantID {
		return ErrCrossTenant
	}
	chain, err := e.ancestors(ctx, managerID)
	if err != nil {
		return err
	}
	for _, id := range chain {
		if id == userID {
			return fmt.Errorf("%w: %d is above %d", ErrCycle, userID, managerID)
		}
	}
	return nil
}

// ManagerChanged invalidates every cached subordinate set a manager edit
// can affect: the user itself and every ancestor on both the old and the
// new manager chains.  Ancestors whose chain cannot be walked are still
// cleared up to the point of failure and the error is returned.
func (e *Engine) ManagerChanged(ctx context.Context, userID uint64, oldManager, newManager *uint64) error {
	keys := []string{CacheKey(userID)}
	var firstErr error
	for _, m := range []*uint64{oldManager, newManager} {
		if m == nil {
			continue
		}
		keys = append(keys, CacheKey(*m))
		chain, err := e.ancestors(ctx, *m)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		for _, id := range chain {
			keys = append(keys, CacheKey(id))
		}
	}
	if err := e.Invalidate(ctx, keys...); err != nil {
		return err
	}
	return firstErr
}

// Invalidate removes the given cache keys.
func (e *Engine) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := e.cache.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("invalidate subordinate cache: %w", err)
	}
	metrics.HierarchyInvalidationCounter.Add(float64(len(keys)))
	logger.FromContext(ctx).Debug("subordinate cache invalidated", zap.Strings("keys", keys))
	return nil
}

func toSet(ids []uint64) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}
