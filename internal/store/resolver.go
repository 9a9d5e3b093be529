package store

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/bwservicing/certtrack/internal/models"
	srvErrors "github.com/bwservicing/certtrack/pkg/errors"
)

// Catalog reports which tables exist. Every Driver is a Catalog.
type Catalog interface {
	Tables(ctx context.Context, candidates []string) ([]string, error)
}

// TableResolver decides which physical table backs a logical entity.
// Results are cached for the life of the process; catalog failures are not.
type TableResolver struct {
	catalog Catalog
	mu      sync.Mutex
	cache   map[string]models.ResolvedTable
	gen     uint64 // bumped by Invalidate
	log     *zap.SugaredLogger
}

func NewTableResolver(catalog Catalog) *TableResolver {
	return &TableResolver{
		catalog: catalog,
		cache:   make(map[string]models.ResolvedTable),
		log:     zap.S().Named("table_resolver"),
	}
}

// Resolve returns the table backing entity, or a ResolvedTable with no name
// when none of the candidates exist or the catalog cannot be read. The only
// error is AmbiguousSchemaError.
func (r *TableResolver) Resolve(ctx context.Context, entity models.LogicalEntity) (models.ResolvedTable, error) {
	r.mu.Lock()
	cached, ok := r.cache[entity.LogicalName]
	gen := r.gen
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	// the catalog is read without the lock; concurrent misses may both ask
	existing, err := r.catalog.Tables(ctx, entity.Candidates)
	if err != nil {
		r.log.Warnw("catalog lookup failed, treating entity as absent", "entity", entity.LogicalName, "error", err)
		return models.ResolvedTable{}, nil
	}

	resolved, err := pick(entity, existing)
	if err != nil {
		return models.ResolvedTable{}, err
	}

	r.log.Debugw("resolved entity", "entity", entity.LogicalName, "table", resolved.PhysicalName)
	r.mu.Lock()
	if r.gen == gen {
		r.cache[entity.LogicalName] = resolved
	}
	r.mu.Unlock()
	return resolved, nil
}

// Invalidate drops every cached resolution. Lookups already in flight do not
// repopulate the cache.
func (r *TableResolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]models.ResolvedTable)
	r.gen++
}

func pick(entity models.LogicalEntity, existing []string) (models.ResolvedTable, error) {
	// keep only names that are actually candidates, in candidate order
	var matches []string
	for _, c := range entity.Candidates {
		for _, e := range existing {
			if c == e {
				matches = append(matches, c)
				break
			}
		}
	}

	switch len(matches) {
	case 0:
		return models.ResolvedTable{}, nil
	case 1:
		return models.ResolvedTable{PhysicalName: matches[0]}, nil
	}

	for _, m := range matches {
		if m == entity.Preferred {
			return models.ResolvedTable{PhysicalName: m}, nil
		}
	}
	sort.Strings(matches)
	return models.ResolvedTable{}, srvErrors.NewAmbiguousSchemaError(entity.LogicalName, matches)
}
