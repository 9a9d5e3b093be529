package store

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/bwservicing/certtrack/internal/models"
)

// SequenceGenerator issues certificate-style numbers: a prefix followed by an
// integer one above the most recently inserted number of the namespace.
//
// Next reads the last number and returns the following one; the caller
// inserts it later. Two callers that both read before either inserts get the
// same number. Claim closes that window by taking the namespace lock inside
// the caller's transaction, so read, compute and insert happen under one lock
// that is released at commit.
type SequenceGenerator struct {
	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

func NewSequenceGenerator() *SequenceGenerator {
	return &SequenceGenerator{patterns: make(map[string]*regexp.Regexp)}
}

// Next returns the number following the last one inserted in ns. It is not
// safe against concurrent writers; use Claim for numbers that get persisted.
func (g *SequenceGenerator) Next(ctx context.Context, a *Adapter, ns Namespace) (string, error) {
	last, err := a.QueryOne(ctx, models.QueryDescriptor{
		Table:   ns.Entity,
		Columns: []string{ns.Column},
		Order:   []models.OrderBy{{Column: "created_at", Direction: models.SortDesc}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to read last %s number: %w", ns.Name, err)
	}

	n := ns.Floor
	if last != nil {
		if v, ok := g.parse(ns, last.String(ns.Column)); ok {
			n = v + 1
		} else {
			zap.S().Named("sequence").Warnw("last number does not match namespace pattern, restarting at floor",
				"namespace", ns.Name, "value", last[ns.Column])
		}
	}
	if n < ns.Floor {
		n = ns.Floor
	}
	return Format(ns, n), nil
}

// Claim is Next run under the namespace lock of the transaction a is bound
// to. The caller must insert the number before committing.
func (g *SequenceGenerator) Claim(ctx context.Context, a *Adapter, ns Namespace) (string, error) {
	if !a.InTx() {
		return "", fmt.Errorf("claiming a %s number requires a transaction", ns.Name)
	}
	if err := a.Lock(ctx, "sequence:"+ns.Name); err != nil {
		return "", fmt.Errorf("failed to lock %s sequence: %w", ns.Name, err)
	}
	return g.Next(ctx, a, ns)
}

// Format renders n in the namespace format.
func Format(ns Namespace, n int64) string {
	return ns.Prefix + strconv.FormatInt(n, 10)
}

// parse extracts the numeric suffix of value, which must be the namespace
// prefix followed by digits only.
func (g *SequenceGenerator) parse(ns Namespace, value string) (int64, bool) {
	m := g.pattern(ns).FindStringSubmatch(value)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (g *SequenceGenerator) pattern(ns Namespace) *regexp.Regexp {
	g.mu.Lock()
	defer g.mu.Unlock()
	re, ok := g.patterns[ns.Prefix]
	if !ok {
		re = regexp.MustCompile(`^` + regexp.QuoteMeta(ns.Prefix) + `(\d+)$`)
		g.patterns[ns.Prefix] = re
	}
	return re
}
