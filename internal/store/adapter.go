package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bwservicing/certtrack/internal/models"
	"github.com/bwservicing/certtrack/internal/policy"
	"github.com/bwservicing/certtrack/internal/sqltext"
	srvErrors "github.com/bwservicing/certtrack/pkg/errors"
)

// Clock hands out timestamps. Now never returns the same instant twice, so
// created_at gives a total insertion order.
type Clock interface {
	Now() time.Time
}

type monotonicClock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewClock wraps now (time.Now when nil) into a strictly increasing clock with
// microsecond resolution, the finest every backend stores.
func NewClock(now func() time.Time) Clock {
	if now == nil {
		now = time.Now
	}
	return &monotonicClock{now: now}
}

func (c *monotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

// Adapter is the single entry point the application uses to reach storage.
// It validates every name against the allow-list, resolves logical entities,
// fills server-side fields and applies the certificate policy before
// delegating to the active driver.
type Adapter struct {
	driver   Driver
	exec     Executor
	tx       Tx
	resolver *TableResolver
	clock    Clock
	metrics  *Metrics
	timeout  time.Duration
	log      *zap.SugaredLogger
}

type AdapterOption func(*Adapter)

func WithClock(c Clock) AdapterOption {
	return func(a *Adapter) { a.clock = c }
}

func WithMetrics(m *Metrics) AdapterOption {
	return func(a *Adapter) { a.metrics = m }
}

// WithTimeout bounds each statement run outside a transaction. Inside one the
// caller's context governs the whole unit.
func WithTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) { a.timeout = d }
}

func NewAdapter(driver Driver, resolver *TableResolver, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		driver:   driver,
		exec:     driver,
		resolver: resolver,
		clock:    NewClock(nil),
		log:      zap.S().Named("adapter"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// WithTx returns a copy of the adapter whose statements run inside tx.
func (a *Adapter) WithTx(tx Tx) *Adapter {
	c := *a
	c.exec = tx
	c.tx = tx
	return &c
}

func (a *Adapter) InTx() bool {
	return a.tx != nil
}

// Lock takes a named lock held until the surrounding transaction ends.
func (a *Adapter) Lock(ctx context.Context, key string) error {
	if a.tx == nil {
		return errors.New("lock requires a transaction")
	}
	return a.tx.Lock(ctx, key)
}

func (a *Adapter) Clock() Clock {
	return a.clock
}

// Query returns the rows matching q, possibly none. When q.Single is set at
// most one row is returned.
func (a *Adapter) Query(ctx context.Context, q models.QueryDescriptor) (rows []models.Row, err error) {
	defer a.observe("query", time.Now(), &err)
	ctx, cancel := a.bound(ctx)
	defer cancel()

	def, ok, err := a.table(ctx, q.Table, false)
	if err != nil || !ok {
		return []models.Row{}, err
	}
	if err := validateColumns(def, q.Columns); err != nil {
		return nil, err
	}
	if err := validateColumns(def, keys(q.Filters)); err != nil {
		return nil, err
	}
	for _, o := range q.Order {
		if err := validateColumns(def, []string{o.Column}); err != nil {
			return nil, err
		}
		if _, ok := models.ParseSortDirection(string(o.Direction)); !ok {
			return nil, srvErrors.NewValidationError(o.Column, "sort direction must be asc or desc")
		}
	}

	q.Table = def.Name
	rows, err = a.exec.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	if q.Single && len(rows) > 1 {
		rows = rows[:1]
	}
	for _, r := range rows {
		a.decorate(def, r)
	}
	return rows, nil
}

// QueryOne is Query with the single-row flag set. It returns nil when no row matches.
func (a *Adapter) QueryOne(ctx context.Context, q models.QueryDescriptor) (models.Row, error) {
	q.Single = true
	rows, err := a.Query(ctx, q)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Insert writes fields plus the server-generated id and timestamps and
// returns the stored row. An id sent by the caller is replaced.
func (a *Adapter) Insert(ctx context.Context, table string, fields models.Row) (row models.Row, err error) {
	defer a.observe("insert", time.Now(), &err)
	ctx, cancel := a.bound(ctx)
	defer cancel()

	def, _, err := a.table(ctx, table, true)
	if err != nil {
		return nil, err
	}
	if err := validateColumns(def, keys(fields)); err != nil {
		return nil, err
	}

	values := fields.Clone()
	values["id"] = uuid.NewString()
	now := a.clock.Now()
	values["created_at"] = now
	values["updated_at"] = now

	if def.Certificate {
		if err := a.applyCertificatePolicy(values); err != nil {
			return nil, err
		}
	}
	for _, col := range def.Required {
		if isBlank(values[col]) {
			return nil, srvErrors.NewMissingFieldError(def.Name, col)
		}
	}

	row, err = a.exec.Insert(ctx, def.Name, values)
	if err != nil {
		return nil, err
	}
	a.decorate(def, row)
	return row, nil
}

// Update applies fields to the rows matching filters and returns the first
// updated row, or nil when nothing matched. An empty filter set is rejected.
func (a *Adapter) Update(ctx context.Context, table string, fields models.Row, filters models.Filters) (row models.Row, err error) {
	defer a.observe("update", time.Now(), &err)
	ctx, cancel := a.bound(ctx)
	defer cancel()

	if len(filters) == 0 {
		return nil, srvErrors.NewMissingFilterError("update")
	}
	def, _, err := a.table(ctx, table, true)
	if err != nil {
		return nil, err
	}
	if err := validateColumns(def, keys(fields)); err != nil {
		return nil, err
	}
	if err := validateColumns(def, keys(filters)); err != nil {
		return nil, err
	}

	values := fields.Clone()
	delete(values, "id")
	delete(values, "created_at")
	values["updated_at"] = a.clock.Now()

	if def.Certificate {
		if err := a.applyCertificatePolicy(values); err != nil {
			return nil, err
		}
	}
	for _, col := range def.Required {
		if v, ok := values[col]; ok && isBlank(v) {
			return nil, srvErrors.NewMissingFieldError(def.Name, col)
		}
	}

	rows, err := a.exec.Update(ctx, def.Name, values, filters)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	a.decorate(def, rows[0])
	return rows[0], nil
}

// Delete removes the rows matching filters and returns the first of them.
// Deleting a row that does not exist succeeds with a nil row.
func (a *Adapter) Delete(ctx context.Context, table string, filters models.Filters) (row models.Row, err error) {
	defer a.observe("delete", time.Now(), &err)
	ctx, cancel := a.bound(ctx)
	defer cancel()

	if len(filters) == 0 {
		return nil, srvErrors.NewMissingFilterError("delete")
	}
	def, _, err := a.table(ctx, table, true)
	if err != nil {
		return nil, err
	}
	if err := validateColumns(def, keys(filters)); err != nil {
		return nil, err
	}

	rows, err := a.exec.Delete(ctx, def.Name, filters)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	a.decorate(def, rows[0])
	return rows[0], nil
}

// RawQuery runs one statement of the restricted SQL grammar, lowered onto a
// single adapter call. params bind $1, $2, ... in order.
func (a *Adapter) RawQuery(ctx context.Context, sql string, params []any) ([]models.Row, error) {
	return sqltext.NewInterpreter(a).Execute(ctx, sql, params)
}

// table maps name to an allow-listed table. Logical entities are resolved;
// when nothing backs one, reads get ok=false and writes get NotFoundError.
// A physical name that is a candidate of an entity goes through the same
// resolution, so every caller reads and writes the table the resolver picks.
func (a *Adapter) table(ctx context.Context, name string, write bool) (TableDef, bool, error) {
	entity, ok := LookupEntity(name)
	if !ok {
		entity, ok = EntityOfTable(name)
	}
	if !ok {
		return TableDef{}, false, srvErrors.NewValidationError("table", fmt.Sprintf("unknown table %q", name))
	}

	resolved, err := a.resolver.Resolve(ctx, entity)
	if err != nil {
		return TableDef{}, false, err
	}
	if resolved.None() {
		if write {
			return TableDef{}, false, srvErrors.NewTableNotFoundError(name)
		}
		return TableDef{}, false, nil
	}
	def, ok := LookupTable(resolved.PhysicalName)
	if !ok {
		return TableDef{}, false, fmt.Errorf("resolved table %s is not allow-listed", resolved.PhysicalName)
	}
	if def.Name != name && entity.LogicalName != name {
		a.log.Debugw("table routed through entity", "table", name, "entity", entity.LogicalName, "resolved", def.Name)
	}
	return def, true, nil
}

// applyCertificatePolicy recomputes retest_date and status from service_date.
// Client-supplied values for either are discarded.
func (a *Adapter) applyCertificatePolicy(values models.Row) error {
	override, hasOverride := policy.ParseDate(values["retest_date"])
	delete(values, "retest_date")
	delete(values, "status")

	raw, ok := values["service_date"]
	if !ok {
		return nil
	}
	service, ok := policy.ParseDate(raw)
	if !ok {
		return srvErrors.NewValidationError("service_date", "must be a date")
	}

	var retestOverride *time.Time
	if hasOverride {
		retestOverride = &override
	}
	derived := policy.DeriveStatus(service, retestOverride, a.clock.Now())
	// dates are written as text so every engine stores the day unchanged
	values["service_date"] = policy.Day(service).Format(time.DateOnly)
	values["retest_date"] = derived.RetestDate.Format(time.DateOnly)
	values["status"] = string(derived.Status)
	return nil
}

// decorate applies read-side policy to a row returned to a caller.
func (a *Adapter) decorate(def TableDef, row models.Row) {
	if !def.Certificate {
		return
	}
	service, ok := policy.ParseDate(row["service_date"])
	if !ok {
		return
	}
	derived := policy.DeriveStatus(service, nil, a.clock.Now())
	row["service_date"] = policy.Day(service)
	row["retest_date"] = derived.RetestDate
	row["status"] = string(derived.Status)
}

func (a *Adapter) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 || a.tx != nil {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}

func (a *Adapter) observe(op string, start time.Time, err *error) {
	a.metrics.observe(a.driver.Name(), op, start, *err)
}

func validateColumns(def TableDef, cols []string) error {
	for _, c := range cols {
		if !def.HasColumn(c) {
			return srvErrors.NewValidationError(c, "unknown column on "+def.Name)
		}
	}
	return nil
}

func keys[M ~map[string]any](m M) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	}
	return false
}
