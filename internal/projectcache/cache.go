// Package projectcache serves project budgets from a read-through cache
// backed by a durable store and the time-tracking API.
package projectcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Tiliavir/billr/internal/metrics"
	"github.com/Tiliavir/billr/internal/model"
	"github.com/Tiliavir/billr/internal/retry"
	"github.com/Tiliavir/billr/internal/storage"
)

// StoreKey names the blob holding the cached project list.
const StoreKey = "projects.json"

// ErrProjectNotFound is returned for ids absent from the fetched project set.
var ErrProjectNotFound = errors.New("project not found")

// Fetcher loads the full project list upstream.
type Fetcher interface {
	Projects(ctx context.Context) ([]model.Project, error)
}

// Cache resolves project budgets, loading the project list at most once until
// invalidated.
type Cache struct {
	store   storage.Store
	fetcher Fetcher
	policy  retry.Policy
	metrics *metrics.Metrics
	log     *zap.Logger

	mu       sync.Mutex
	projects map[int64]model.Project
	order    []int64
}

// New returns an empty cache. metrics may be nil.
func New(store storage.Store, fetcher Fetcher, policy retry.Policy, m *metrics.Metrics, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{store: store, fetcher: fetcher, policy: policy, metrics: m, log: log}
}

// BudgetHours returns the normalised budget of projectID.
func (c *Cache) BudgetHours(ctx context.Context, projectID int64) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(ctx); err != nil {
		return 0, err
	}
	p, ok := c.projects[projectID]
	if !ok {
		return 0, fmt.Errorf("project %d: %w", projectID, ErrProjectNotFound)
	}
	return p.BudgetHours, nil
}

// Projects returns every cached project in upstream order.
func (c *Cache) Projects(ctx context.Context) ([]model.Project, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Project, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.projects[id])
	}
	return out, nil
}

// Invalidate drops the in-memory set and clears the stored blob, so the next
// lookup fetches from upstream.
func (c *Cache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.projects = nil
	c.order = nil
	if err := c.store.Clear(ctx, StoreKey); err != nil {
		return fmt.Errorf("clearing project cache: %w", err)
	}
	return nil
}

func (c *Cache) loadLocked(ctx context.Context) error {
	if c.projects != nil {
		c.observe("memory")
		return nil
	}

	if list, ok := c.readStore(ctx); ok {
		c.observe("store")
		c.setLocked(list)
		return nil
	}

	fetched, err := retry.Do(ctx, c.policy, c.fetcher.Projects)
	if err != nil {
		return fmt.Errorf("fetching projects: %w", err)
	}
	c.observe("upstream")
	list := make([]model.Project, len(fetched))
	for i, p := range fetched {
		p.BudgetHours = max(p.BudgetHours, 0)
		list[i] = p
	}
	c.setLocked(list)
	c.writeStore(ctx, list)
	return nil
}

// readStore treats every read or decode failure as a miss.
func (c *Cache) readStore(ctx context.Context) ([]model.Project, bool) {
	data, err := c.store.Get(ctx, StoreKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.log.Warn("project cache unreadable, refetching", zap.Error(err))
		}
		return nil, false
	}
	var list []model.Project
	if err := json.Unmarshal(data, &list); err != nil {
		c.log.Warn("project cache undecodable, refetching", zap.Error(err))
		return nil, false
	}
	return list, true
}

func (c *Cache) writeStore(ctx context.Context, list []model.Project) {
	data, err := json.Marshal(list)
	if err == nil {
		err = c.store.Set(ctx, StoreKey, data)
	}
	if err != nil {
		c.log.Warn("project cache not persisted", zap.Error(err))
	}
}

func (c *Cache) setLocked(list []model.Project) {
	c.projects = make(map[int64]model.Project, len(list))
	c.order = c.order[:0]
	for _, p := range list {
		if _, dup := c.projects[p.ID]; !dup {
			c.order = append(c.order, p.ID)
		}
		c.projects[p.ID] = p
	}
	c.log.Debug("project cache loaded", zap.Int("projects", len(c.projects)))
}

func (c *Cache) observe(source string) {
	if c.metrics != nil {
		c.metrics.CacheLookups.WithLabelValues(source).Inc()
	}
}
