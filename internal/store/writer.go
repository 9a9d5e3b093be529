package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bwservicing/certtrack/internal/models"
	srvErrors "github.com/bwservicing/certtrack/pkg/errors"
)

// WriteError is the single error returned by a failed composite write. Step
// names where it failed: "begin", "parent", "child[i]", "item", "recompute"
// or "commit".
type WriteError struct {
	Op   string
	Step string
	Err  error
}

// Error reports the step and the kind of failure. Driver messages stay in Err
// for logs and are not part of the text.
func (e *WriteError) Error() string {
	var (
		validation *srvErrors.ValidationError
		notFound   *srvErrors.NotFoundError
		msg        string
	)
	switch {
	case errors.As(e.Err, &validation):
		msg = validation.Error()
	case errors.As(e.Err, &notFound):
		msg = notFound.Error()
	case errors.Is(e.Err, context.Canceled), errors.Is(e.Err, context.DeadlineExceeded):
		msg = "cancelled"
	default:
		msg = srvErrors.Kind(e.Err)
	}
	return fmt.Sprintf("%s failed at step %s: %s", e.Op, e.Step, msg)
}

func (e *WriteError) Unwrap() error { return e.Err }

func stepError(op, step string, err error) error {
	var we *WriteError
	if errors.As(err, &we) {
		return err
	}
	return &WriteError{Op: op, Step: step, Err: err}
}

// RecordWriter performs composite writes (a work order and its line items, or
// a numbered certificate) as one transaction. Aggregates are always
// recomputed from the persisted children inside that transaction.
type RecordWriter struct {
	driver      Driver
	adapter     *Adapter
	sequences   *SequenceGenerator
	defaultVAT  decimal.Decimal
	maxAttempts uint
	namespaces  map[string]Namespace
	log         *zap.SugaredLogger
}

type WriterOption func(*RecordWriter)

// WithDefaultVATRate sets the rate used when a work order carries none.
func WithDefaultVATRate(rate float64) WriterOption {
	return func(w *RecordWriter) { w.defaultVAT = decimal.NewFromFloat(rate) }
}

// WithMaxAttempts bounds how often a write that hit a conflict is retried.
func WithMaxAttempts(n uint) WriterOption {
	return func(w *RecordWriter) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

// WithNamespace overrides a sequence namespace, e.g. to change its prefix.
func WithNamespace(ns Namespace) WriterOption {
	return func(w *RecordWriter) { w.namespaces[ns.Name] = ns }
}

func NewRecordWriter(driver Driver, adapter *Adapter, sequences *SequenceGenerator, opts ...WriterOption) *RecordWriter {
	w := &RecordWriter{
		driver:      driver,
		adapter:     adapter,
		sequences:   sequences,
		defaultVAT:  decimal.NewFromInt(20),
		maxAttempts: 3,
		namespaces: map[string]Namespace{
			CertificateNamespace.Name: CertificateNamespace,
			WorkOrderNamespace.Name:   WorkOrderNamespace,
		},
		log: zap.S().Named("record_writer"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Namespace returns the configured namespace called name.
func (w *RecordWriter) Namespace(name string) Namespace {
	return w.namespaces[name]
}

// CreateComposite inserts a work order and its line items, then sets total
// and vat from the persisted items. Client-supplied number, total and vat are
// ignored.
func (w *RecordWriter) CreateComposite(ctx context.Context, parent models.Row, children []models.Row) (*models.CompositeRecord, error) {
	const op = "create work order"
	return inTx(ctx, w, op, func(ctx context.Context, a *Adapter) (*models.CompositeRecord, error) {
		ns := w.namespaces[WorkOrderNamespace.Name]
		number, err := w.sequences.Claim(ctx, a, ns)
		if err != nil {
			return nil, stepError(op, "parent", err)
		}

		fields := parent.Clone()
		delete(fields, "id")
		fields[ns.Column] = number
		fields["total"] = 0.0
		fields["vat"] = 0.0
		if isBlank(fields["vat_rate"]) {
			fields["vat_rate"] = w.defaultVAT.InexactFloat64()
		}
		if fields["status"] == nil {
			fields["status"] = "open"
		}

		row, err := a.Insert(ctx, EntityWorkOrder, fields)
		if err != nil {
			return nil, stepError(op, "parent", err)
		}

		for i, child := range children {
			if err := w.insertItem(ctx, a, row.ID(), child); err != nil {
				return nil, stepError(op, fmt.Sprintf("child[%d]", i), err)
			}
		}

		return w.recompute(ctx, a, op, row.ID())
	})
}

// AddItems appends line items to an existing work order.
func (w *RecordWriter) AddItems(ctx context.Context, parentID string, items []models.Row) (*models.CompositeRecord, error) {
	const op = "add work order items"
	return inTx(ctx, w, op, func(ctx context.Context, a *Adapter) (*models.CompositeRecord, error) {
		if err := w.requireParent(ctx, a, parentID); err != nil {
			return nil, stepError(op, "parent", err)
		}
		for i, item := range items {
			if err := w.insertItem(ctx, a, parentID, item); err != nil {
				return nil, stepError(op, fmt.Sprintf("child[%d]", i), err)
			}
		}
		return w.recompute(ctx, a, op, parentID)
	})
}

// RemoveItem deletes one line item of a work order. Removing an item that is
// already gone is not an error.
func (w *RecordWriter) RemoveItem(ctx context.Context, parentID, itemID string) (*models.CompositeRecord, error) {
	const op = "remove work order item"
	return inTx(ctx, w, op, func(ctx context.Context, a *Adapter) (*models.CompositeRecord, error) {
		if err := w.requireParent(ctx, a, parentID); err != nil {
			return nil, stepError(op, "parent", err)
		}
		if _, err := a.Delete(ctx, EntityWorkOrderItem, models.Filters{"id": itemID, "work_order_id": parentID}); err != nil {
			return nil, stepError(op, "item", err)
		}
		return w.recompute(ctx, a, op, parentID)
	})
}

// CreateNumbered inserts a row into entity with the next number of ns claimed
// inside the same transaction.
func (w *RecordWriter) CreateNumbered(ctx context.Context, entity string, ns Namespace, fields models.Row) (models.Row, error) {
	op := "create " + entity
	return inTx(ctx, w, op, func(ctx context.Context, a *Adapter) (models.Row, error) {
		number, err := w.sequences.Claim(ctx, a, ns)
		if err != nil {
			return nil, stepError(op, "sequence", err)
		}
		values := fields.Clone()
		values[ns.Column] = number
		row, err := a.Insert(ctx, entity, values)
		if err != nil {
			return nil, stepError(op, "parent", err)
		}
		return row, nil
	})
}

// Get returns a work order with its items, or NotFoundError.
func (w *RecordWriter) Get(ctx context.Context, parentID string) (*models.CompositeRecord, error) {
	parent, err := w.adapter.QueryOne(ctx, models.QueryDescriptor{
		Table:   EntityWorkOrder,
		Filters: models.Filters{"id": parentID},
	})
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, srvErrors.NewNotFoundError("work order", parentID)
	}
	items, err := w.items(ctx, w.adapter, parentID)
	if err != nil {
		return nil, err
	}
	return &models.CompositeRecord{Parent: parent, Children: items}, nil
}

func (w *RecordWriter) requireParent(ctx context.Context, a *Adapter, parentID string) error {
	parent, err := a.QueryOne(ctx, models.QueryDescriptor{
		Table:   EntityWorkOrder,
		Columns: []string{"id"},
		Filters: models.Filters{"id": parentID},
	})
	if err != nil {
		return err
	}
	if parent == nil {
		return srvErrors.NewNotFoundError("work order", parentID)
	}
	return nil
}

func (w *RecordWriter) insertItem(ctx context.Context, a *Adapter, parentID string, item models.Row) error {
	fields := item.Clone()
	delete(fields, "id")
	fields["work_order_id"] = parentID

	if isBlank(fields["unit_price"]) {
		return srvErrors.NewMissingFieldError("work order item", "unit_price")
	}
	price, err := toDecimal(fields["unit_price"])
	if err != nil {
		return srvErrors.NewValidationError("unit_price", err.Error())
	}
	quantity := decimal.NewFromInt(1)
	if !isBlank(fields["quantity"]) {
		if quantity, err = toDecimal(fields["quantity"]); err != nil {
			return srvErrors.NewValidationError("quantity", err.Error())
		}
	}
	if quantity.IsNegative() {
		return srvErrors.NewValidationError("quantity", "must not be negative")
	}

	fields["unit_price"] = price.InexactFloat64()
	fields["quantity"] = quantity.InexactFloat64()
	fields["subtotal"] = quantity.Mul(price).Round(2).InexactFloat64()

	_, err = a.Insert(ctx, EntityWorkOrderItem, fields)
	return err
}

// recompute re-reads the persisted items of the work order and writes total
// and vat back onto it.
func (w *RecordWriter) recompute(ctx context.Context, a *Adapter, op, parentID string) (*models.CompositeRecord, error) {
	parent, err := a.QueryOne(ctx, models.QueryDescriptor{
		Table:   EntityWorkOrder,
		Filters: models.Filters{"id": parentID},
	})
	if err != nil {
		return nil, stepError(op, "recompute", err)
	}
	if parent == nil {
		return nil, stepError(op, "recompute", srvErrors.NewNotFoundError("work order", parentID))
	}

	items, err := w.items(ctx, a, parentID)
	if err != nil {
		return nil, stepError(op, "recompute", err)
	}

	total := decimal.Zero
	for _, item := range items {
		subtotal, err := toDecimal(item["subtotal"])
		if err != nil {
			return nil, stepError(op, "recompute", err)
		}
		total = total.Add(subtotal)
	}
	rate, err := toDecimal(parent["vat_rate"])
	if err != nil {
		return nil, stepError(op, "recompute", err)
	}
	total = total.Round(2)
	vat := total.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)

	updated, err := a.Update(ctx, EntityWorkOrder, models.Row{
		"total": total.InexactFloat64(),
		"vat":   vat.InexactFloat64(),
	}, models.Filters{"id": parentID})
	if err != nil {
		return nil, stepError(op, "recompute", err)
	}
	if updated == nil {
		return nil, stepError(op, "recompute", srvErrors.NewNotFoundError("work order", parentID))
	}
	return &models.CompositeRecord{Parent: updated, Children: items}, nil
}

func (w *RecordWriter) items(ctx context.Context, a *Adapter, parentID string) ([]models.Row, error) {
	return a.Query(ctx, models.QueryDescriptor{
		Table:   EntityWorkOrderItem,
		Filters: models.Filters{"work_order_id": parentID},
		Order:   []models.OrderBy{{Column: "created_at", Direction: models.SortAsc}},
	})
}

// inTx runs fn in a fresh transaction, committing on success and rolling back
// on any error or cancellation. Conflicts restart the whole transaction.
func inTx[T any](ctx context.Context, w *RecordWriter, op string, fn func(ctx context.Context, a *Adapter) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond

	return backoff.Retry(ctx, func() (T, error) {
		res, err := once(ctx, w, op, fn)
		if err != nil && !srvErrors.IsConflictError(err) {
			return res, backoff.Permanent(err)
		}
		if err != nil {
			w.log.Infow("write conflict, retrying", "op", op, "error", err)
		}
		return res, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(w.maxAttempts))
}

func once[T any](ctx context.Context, w *RecordWriter, op string, fn func(ctx context.Context, a *Adapter) (T, error)) (res T, err error) {
	var zero T

	tx, err := w.driver.Begin(ctx)
	if err != nil {
		return zero, stepError(op, "begin", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			w.log.Errorw("rollback failed", "op", op, "error", rbErr)
			err = joinRollback(err, rbErr)
		}
	}()

	res, err = fn(ctx, w.adapter.WithTx(tx))
	if err != nil {
		return zero, stepError(op, "unknown", err)
	}
	if err := ctx.Err(); err != nil {
		return zero, stepError(op, "commit", err)
	}
	if err := tx.Commit(); err != nil {
		return zero, stepError(op, "commit", err)
	}
	committed = true
	return res, nil
}

func joinRollback(err, rbErr error) error {
	var we *WriteError
	if errors.As(err, &we) {
		return &WriteError{Op: we.Op, Step: we.Step, Err: errors.Join(we.Err, fmt.Errorf("rollback: %w", rbErr))}
	}
	return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case float32:
		return decimal.NewFromFloat32(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int32:
		return decimal.NewFromInt32(t), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case string:
		return decimal.NewFromString(t)
	case []byte:
		return decimal.NewFromString(string(t))
	case decimal.Decimal:
		return t, nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported numeric value %T", v)
	}
}
