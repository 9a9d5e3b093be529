package sqltext

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/bwservicing/certtrack/internal/models"
	srvErrors "github.com/bwservicing/certtrack/pkg/errors"
)

// Executor is the CRUD surface statements are lowered onto.
type Executor interface {
	Query(ctx context.Context, q models.QueryDescriptor) ([]models.Row, error)
	Insert(ctx context.Context, table string, fields models.Row) (models.Row, error)
	Update(ctx context.Context, table string, fields models.Row, filters models.Filters) (models.Row, error)
	Delete(ctx context.Context, table string, filters models.Filters) (models.Row, error)
}

// Call is a statement with its parameters bound: exactly one Executor call.
type Call struct {
	Kind    Kind
	Query   models.QueryDescriptor
	Table   string
	Fields  models.Row
	Filters models.Filters
}

// Lower binds params into stmt. The number of params must match the highest
// placeholder exactly.
func Lower(stmt *Statement, params []any) (Call, error) {
	if len(params) != stmt.Params {
		return Call{}, srvErrors.NewParseError("parameters", 0,
			fmt.Sprintf("statement uses %d parameters but %d were given", stmt.Params, len(params)))
	}
	bind := func(v Value) any {
		if v.Param > 0 {
			return params[v.Param-1]
		}
		return v.Literal
	}
	filters := func() models.Filters {
		f := make(models.Filters, len(stmt.Where))
		for _, c := range stmt.Where {
			f[c.Column] = bind(c.Value)
		}
		return f
	}
	fields := func() models.Row {
		r := make(models.Row, len(stmt.Set))
		for _, a := range stmt.Set {
			r[a.Column] = bind(a.Value)
		}
		return r
	}

	call := Call{Kind: stmt.Kind, Table: stmt.Table}
	switch stmt.Kind {
	case KindSelect:
		q := models.QueryDescriptor{Table: stmt.Table, Columns: stmt.Columns, Order: stmt.Order}
		if len(stmt.Where) > 0 {
			q.Filters = filters()
		}
		var err error
		if stmt.Limit != nil {
			if q.Limit, err = count("LIMIT", bind(*stmt.Limit)); err != nil {
				return Call{}, err
			}
		}
		if stmt.Offset != nil {
			if q.Offset, err = count("OFFSET", bind(*stmt.Offset)); err != nil {
				return Call{}, err
			}
		}
		call.Query = q
	case KindInsert:
		call.Fields = fields()
	case KindUpdate:
		call.Fields = fields()
		call.Filters = filters()
	case KindDelete:
		call.Filters = filters()
	}
	return call, nil
}

// count converts a LIMIT or OFFSET argument to a row count.
func count(clause string, v any) (uint64, error) {
	switch n := v.(type) {
	case int:
		if n >= 0 {
			return uint64(n), nil
		}
	case int64:
		if n >= 0 {
			return uint64(n), nil
		}
	case uint64:
		return n, nil
	case float64:
		if n >= 0 && n == math.Trunc(n) {
			return uint64(n), nil
		}
	}
	return 0, srvErrors.NewValidationError(clause, fmt.Sprintf("must be a non-negative integer, got %v", v))
}

// Interpreter runs SQL text for callers that only speak SQL.
type Interpreter struct {
	exec Executor
	log  *zap.SugaredLogger
}

func NewInterpreter(exec Executor) *Interpreter {
	return &Interpreter{exec: exec, log: zap.S().Named("sqltext")}
}

// Execute parses sql, binds params and makes one Executor call. Writes return
// the affected row, or no rows when nothing matched.
func (i *Interpreter) Execute(ctx context.Context, sql string, params []any) ([]models.Row, error) {
	stmt, err := Parse(sql)
	if err != nil {
		i.log.Debugw("rejected statement", "sql", sql, "error", err)
		return nil, err
	}
	call, err := Lower(stmt, params)
	if err != nil {
		return nil, err
	}
	return i.Run(ctx, call)
}

// Run performs a lowered call.
func (i *Interpreter) Run(ctx context.Context, call Call) ([]models.Row, error) {
	var (
		row models.Row
		err error
	)
	switch call.Kind {
	case KindSelect:
		return i.exec.Query(ctx, call.Query)
	case KindInsert:
		row, err = i.exec.Insert(ctx, call.Table, call.Fields)
	case KindUpdate:
		row, err = i.exec.Update(ctx, call.Table, call.Fields, call.Filters)
	case KindDelete:
		row, err = i.exec.Delete(ctx, call.Table, call.Filters)
	default:
		return nil, fmt.Errorf("unknown statement kind %q", call.Kind)
	}
	if err != nil {
		return nil, err
	}
	if row == nil {
		return []models.Row{}, nil
	}
	return []models.Row{row}, nil
}
