package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/bwservicing/certtrack/internal/models"
	srvErrors "github.com/bwservicing/certtrack/pkg/errors"
)

const restBackendName = "rest"

type RESTConfig struct {
	// URL is the REST root, e.g. https://project.example.co/rest/v1
	URL     string
	APIKey  string
	Timeout time.Duration
	// MaxRetries bounds retries of idempotent reads on transport errors.
	MaxRetries uint
}

// RESTDriver translates descriptors into the PostgREST query dialect used by
// hosted BaaS providers: col=eq.value filters, order=col.desc, limit and offset.
type RESTDriver struct {
	base       *url.URL
	apiKey     string
	client     *http.Client
	maxRetries uint
	locks      *keyedLocks
	log        *zap.SugaredLogger
}

func NewRESTDriver(cfg RESTConfig) (*RESTDriver, error) {
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rest url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("rest url %q must be absolute", cfg.URL)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = 3
	}
	return &RESTDriver{
		base:       base,
		apiKey:     cfg.APIKey,
		client:     &http.Client{Timeout: timeout},
		maxRetries: retries,
		locks:      newKeyedLocks(),
		log:        zap.S().Named("rest"),
	}, nil
}

func (d *RESTDriver) Name() string { return restBackendName }

func (d *RESTDriver) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

func (d *RESTDriver) Select(ctx context.Context, q models.QueryDescriptor) ([]models.Row, error) {
	params := filterParams(q.Filters)
	if len(q.Columns) > 0 {
		params.Set("select", strings.Join(q.Columns, ","))
	}
	if len(q.Order) > 0 {
		parts := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			dir := "asc"
			if o.Desc() {
				dir = "desc"
			}
			parts = append(parts, o.Column+"."+dir)
		}
		params.Set("order", strings.Join(parts, ","))
	}
	limit := q.Limit
	if q.Single {
		limit = 1
	}
	if limit > 0 {
		params.Set("limit", strconv.FormatUint(limit, 10))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.FormatUint(q.Offset, 10))
	}

	return d.retryRead(ctx, func() ([]models.Row, error) {
		return d.do(ctx, http.MethodGet, q.Table, params, nil)
	})
}

func (d *RESTDriver) Insert(ctx context.Context, table string, fields models.Row) (models.Row, error) {
	rows, err := d.do(ctx, http.MethodPost, table, nil, fields)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert into %s returned no row", table)
	}
	return rows[0], nil
}

func (d *RESTDriver) Update(ctx context.Context, table string, fields models.Row, filters models.Filters) ([]models.Row, error) {
	return d.do(ctx, http.MethodPatch, table, filterParams(filters), fields)
}

func (d *RESTDriver) Delete(ctx context.Context, table string, filters models.Filters) ([]models.Row, error) {
	return d.do(ctx, http.MethodDelete, table, filterParams(filters), nil)
}

// Tables reads the OpenAPI document served at the REST root, which lists one
// path per exposed table.
func (d *RESTDriver) Tables(ctx context.Context, candidates []string) ([]string, error) {
	doc, err := backoff.Retry(ctx, func() (map[string]json.RawMessage, error) {
		var doc struct {
			Paths map[string]json.RawMessage `json:"paths"`
		}
		body, err := d.request(ctx, http.MethodGet, d.base.String()+"/", nil)
		if err != nil {
			return nil, retryable(err)
		}
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to decode rest catalog: %w", err))
		}
		return doc.Paths, nil
	}, d.retryOptions()...)
	if err != nil {
		return nil, err
	}

	var found []string
	for _, c := range candidates {
		if _, ok := doc["/"+c]; ok {
			found = append(found, c)
		}
	}
	return found, nil
}

func (d *RESTDriver) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &restTx{driver: d, undoCtx: context.WithoutCancel(ctx)}, nil
}

func (d *RESTDriver) retryRead(ctx context.Context, op func() ([]models.Row, error)) ([]models.Row, error) {
	return backoff.Retry(ctx, func() ([]models.Row, error) {
		rows, err := op()
		if err != nil {
			return nil, retryable(err)
		}
		return rows, nil
	}, d.retryOptions()...)
}

func (d *RESTDriver) retryOptions() []backoff.RetryOption {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return []backoff.RetryOption{backoff.WithBackOff(b), backoff.WithMaxTries(d.maxRetries)}
}

// retryable marks everything except transport failures as permanent.
func retryable(err error) error {
	if srvErrors.IsBackendUnavailableError(err) {
		return err
	}
	return backoff.Permanent(err)
}

func (d *RESTDriver) do(ctx context.Context, method, table string, params url.Values, body models.Row) ([]models.Row, error) {
	endpoint := d.base.String() + "/" + url.PathEscape(table)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", table, err)
		}
	}

	data, err := d.request(ctx, method, endpoint, payload)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []models.Row{}, nil
	}

	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", table, err)
	}
	result := make([]models.Row, 0, len(rows))
	for _, r := range rows {
		result = append(result, models.Row(r))
	}
	return result, nil
}

func (d *RESTDriver) request(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}
	if d.apiKey != "" {
		req.Header.Set("apikey", d.apiKey)
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	d.log.Debugw("request", "method", method, "url", endpoint)

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, srvErrors.NewBackendUnavailableError(restBackendName, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, srvErrors.NewBackendUnavailableError(restBackendName, err)
	}
	if resp.StatusCode >= 300 {
		return nil, restError(resp.StatusCode, data)
	}
	return data, nil
}

type restErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func restError(status int, data []byte) error {
	var body restErrorBody
	_ = json.Unmarshal(data, &body)
	cause := fmt.Errorf("rest status %d: %s %s", status, body.Code, body.Message)

	switch {
	case body.Code == "23505" || status == http.StatusConflict:
		return srvErrors.NewConflictError("unique constraint", cause)
	case body.Code == "42P01" || status == http.StatusNotFound:
		return srvErrors.NewNotFoundError("table", body.Message)
	case body.Code == "23502":
		return srvErrors.NewValidationError("", body.Message)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return srvErrors.NewValidationError("", body.Message)
	case status >= 500 || status == http.StatusUnauthorized || status == http.StatusForbidden:
		return srvErrors.NewBackendUnavailableError(restBackendName, cause)
	default:
		return cause
	}
}

func filterParams(filters models.Filters) url.Values {
	params := url.Values{}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := filters[k]
		if v == nil {
			params.Add(k, "is.null")
			continue
		}
		params.Add(k, "eq."+FormatRESTValue(v))
	}
	return params
}

// FormatRESTValue renders a filter value the way it appears in JSON bodies,
// so filters match what was written.
func FormatRESTValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// restTx emulates a transaction with compensating writes: each successful
// write records its inverse, and Rollback replays them newest first. Readers
// can observe intermediate state until the transaction ends.
type restTx struct {
	driver   *RESTDriver
	undoCtx  context.Context
	undo     []func(ctx context.Context) error
	releases []func()
	closed   bool
}

func (t *restTx) Select(ctx context.Context, q models.QueryDescriptor) ([]models.Row, error) {
	return t.driver.Select(ctx, q)
}

func (t *restTx) Insert(ctx context.Context, table string, fields models.Row) (models.Row, error) {
	row, err := t.driver.Insert(ctx, table, fields)
	if err != nil {
		return nil, err
	}
	id := row["id"]
	t.undo = append(t.undo, func(ctx context.Context) error {
		_, err := t.driver.Delete(ctx, table, models.Filters{"id": id})
		return err
	})
	return row, nil
}

func (t *restTx) Update(ctx context.Context, table string, fields models.Row, filters models.Filters) ([]models.Row, error) {
	before, err := t.driver.Select(ctx, models.QueryDescriptor{Table: table, Filters: filters})
	if err != nil {
		return nil, err
	}
	rows, err := t.driver.Update(ctx, table, fields, filters)
	if err != nil {
		return nil, err
	}
	for _, prev := range before {
		restore := models.Row{}
		for col := range fields {
			restore[col] = prev[col]
		}
		id := prev["id"]
		t.undo = append(t.undo, func(ctx context.Context) error {
			_, err := t.driver.Update(ctx, table, restore, models.Filters{"id": id})
			return err
		})
	}
	return rows, nil
}

func (t *restTx) Delete(ctx context.Context, table string, filters models.Filters) ([]models.Row, error) {
	rows, err := t.driver.Delete(ctx, table, filters)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		deleted := r
		t.undo = append(t.undo, func(ctx context.Context) error {
			_, err := t.driver.Insert(ctx, table, deleted)
			return err
		})
	}
	return rows, nil
}

// Lock is process-local: the REST backend offers no lock that outlives a request.
func (t *restTx) Lock(ctx context.Context, key string) error {
	release, err := t.driver.locks.acquire(ctx, key)
	if err != nil {
		return err
	}
	t.releases = append(t.releases, release)
	return nil
}

func (t *restTx) Commit() error {
	if t.closed {
		return nil
	}
	t.undo = nil
	t.release()
	return nil
}

func (t *restTx) Rollback() error {
	if t.closed {
		return nil
	}
	defer t.release()

	var errs []error
	for i := len(t.undo) - 1; i >= 0; i-- {
		if err := t.undo[i](t.undoCtx); err != nil {
			errs = append(errs, err)
		}
	}
	t.undo = nil
	if len(errs) > 0 {
		t.driver.log.Errorw("compensation failed", "errors", len(errs))
	}
	return errors.Join(errs...)
}

func (t *restTx) release() {
	t.closed = true
	for i := len(t.releases) - 1; i >= 0; i-- {
		t.releases[i]()
	}
	t.releases = nil
}
