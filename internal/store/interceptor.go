package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// QueryInterceptor logs every statement at debug level before handing it to
// the pool or transaction underneath.
type QueryInterceptor struct {
	q   sqlx.QueryerContext
	log *zap.SugaredLogger
}

func (i QueryInterceptor) QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	start := time.Now()
	rows, err := i.q.QueryxContext(ctx, query, args...)
	if err != nil {
		i.log.Debugw("query failed", "sql", query, "args", len(args), "error", err)
		return nil, err
	}
	i.log.Debugw("query", "sql", query, "args", len(args), "duration", time.Since(start))
	return rows, nil
}
