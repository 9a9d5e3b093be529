package test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FakePostgREST is an in-memory server speaking the subset of the PostgREST
// protocol the REST driver uses: eq and is.null filters, select, order,
// limit, offset and Prefer: return=representation.
type FakePostgREST struct {
	server *httptest.Server

	mu       sync.Mutex
	tables   map[string][]map[string]any
	unique   map[string][]string
	failures []*failure
	requests int
}

type failure struct {
	method string
	table  string
	status int
	code   string
	times  int
}

// NewFakePostgREST starts a server exposing the given tables, all empty.
func NewFakePostgREST(tables ...string) *FakePostgREST {
	f := &FakePostgREST{
		tables: make(map[string][]map[string]any),
		unique: make(map[string][]string),
	}
	for _, t := range tables {
		f.tables[t] = nil
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	return f
}

func (f *FakePostgREST) URL() string {
	return f.server.URL
}

func (f *FakePostgREST) Close() {
	f.server.Close()
}

// Unique declares a unique column; duplicate writes get 409 with code 23505.
func (f *FakePostgREST) Unique(table, column string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unique[table] = append(f.unique[table], column)
}

// FailNext makes the next times requests matching method and table fail with
// status and a PostgREST error code. An empty table matches every table.
func (f *FakePostgREST) FailNext(method, table string, status int, code string, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, &failure{method: method, table: table, status: status, code: code, times: times})
}

// Rows returns a copy of the rows currently stored in table.
func (f *FakePostgREST) Rows(table string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.tables[table]))
	for _, r := range f.tables[table] {
		out = append(out, clone(r))
	}
	return out
}

// Requests returns how many requests the server has answered.
func (f *FakePostgREST) Requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func (f *FakePostgREST) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++

	table := strings.Trim(r.URL.Path, "/")
	if fail := f.takeFailure(r.Method, table); fail != nil {
		writeError(w, fail.status, fail.code, "injected failure")
		return
	}

	if table == "" {
		f.catalog(w)
		return
	}
	if _, ok := f.tables[table]; !ok {
		writeError(w, http.StatusNotFound, "42P01", fmt.Sprintf("relation %q does not exist", table))
		return
	}

	query := r.URL.Query()
	switch r.Method {
	case http.MethodGet:
		f.get(w, table, query)
	case http.MethodPost:
		f.post(w, r, table)
	case http.MethodPatch:
		f.patch(w, r, table, query)
	case http.MethodDelete:
		f.delete(w, table, query)
	default:
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
	}
}

func (f *FakePostgREST) takeFailure(method, table string) *failure {
	for i, fl := range f.failures {
		if fl.method != method || (fl.table != "" && fl.table != table) {
			continue
		}
		fl.times--
		if fl.times <= 0 {
			f.failures = append(f.failures[:i], f.failures[i+1:]...)
		}
		return fl
	}
	return nil
}

func (f *FakePostgREST) catalog(w http.ResponseWriter) {
	paths := map[string]any{"/": map[string]any{}}
	for t := range f.tables {
		paths["/"+t] = map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"swagger": "2.0", "paths": paths})
}

func (f *FakePostgREST) get(w http.ResponseWriter, table string, query map[string][]string) {
	rows := f.match(table, query)

	if order := first(query, "order"); order != "" {
		sortRows(rows, order)
	}

	offset, _ := strconv.Atoi(first(query, "offset"))
	if offset > len(rows) {
		offset = len(rows)
	}
	rows = rows[offset:]
	if limit, err := strconv.Atoi(first(query, "limit")); err == nil && limit < len(rows) {
		rows = rows[:limit]
	}

	if sel := first(query, "select"); sel != "" && sel != "*" {
		cols := strings.Split(sel, ",")
		for i, row := range rows {
			projected := make(map[string]any, len(cols))
			for _, c := range cols {
				projected[c] = row[c]
			}
			rows[i] = projected
		}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (f *FakePostgREST) post(w http.ResponseWriter, r *http.Request, table string) {
	body, err := decodeBody(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "PGRST102", err.Error())
		return
	}
	if col, ok := f.violates(table, body, nil); ok {
		writeError(w, http.StatusConflict, "23505", "duplicate key value violates unique constraint on "+col)
		return
	}
	f.tables[table] = append(f.tables[table], body)
	writeJSON(w, http.StatusCreated, []map[string]any{clone(body)})
}

func (f *FakePostgREST) patch(w http.ResponseWriter, r *http.Request, table string, query map[string][]string) {
	body, err := decodeBody(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "PGRST102", err.Error())
		return
	}
	var updated []map[string]any
	for _, row := range f.tables[table] {
		if !matches(row, query) {
			continue
		}
		if col, ok := f.violates(table, body, row); ok {
			writeError(w, http.StatusConflict, "23505", "duplicate key value violates unique constraint on "+col)
			return
		}
		for k, v := range body {
			row[k] = v
		}
		updated = append(updated, clone(row))
	}
	writeJSON(w, http.StatusOK, nonNil(updated))
}

func (f *FakePostgREST) delete(w http.ResponseWriter, table string, query map[string][]string) {
	var kept, deleted []map[string]any
	for _, row := range f.tables[table] {
		if matches(row, query) {
			deleted = append(deleted, row)
		} else {
			kept = append(kept, row)
		}
	}
	f.tables[table] = kept
	writeJSON(w, http.StatusOK, nonNil(deleted))
}

func (f *FakePostgREST) match(table string, query map[string][]string) []map[string]any {
	var out []map[string]any
	for _, row := range f.tables[table] {
		if matches(row, query) {
			out = append(out, clone(row))
		}
	}
	return nonNil(out)
}

// violates reports the first unique column whose value in body is already
// held by a row other than self.
func (f *FakePostgREST) violates(table string, body, self map[string]any) (string, bool) {
	for _, col := range f.unique[table] {
		v, ok := body[col]
		if !ok || v == nil {
			continue
		}
		for _, row := range f.tables[table] {
			if self != nil && row["id"] == self["id"] {
				continue
			}
			if format(row[col]) == format(v) {
				return col, true
			}
		}
	}
	return "", false
}

var reserved = map[string]bool{"select": true, "order": true, "limit": true, "offset": true}

func matches(row map[string]any, query map[string][]string) bool {
	for col, values := range query {
		if reserved[col] {
			continue
		}
		for _, cond := range values {
			switch {
			case cond == "is.null":
				if row[col] != nil {
					return false
				}
			case strings.HasPrefix(cond, "eq."):
				if row[col] == nil || format(row[col]) != strings.TrimPrefix(cond, "eq.") {
					return false
				}
			default:
				return false
			}
		}
	}
	return true
}

func sortRows(rows []map[string]any, order string) {
	type key struct {
		col  string
		desc bool
	}
	var keys []key
	for _, part := range strings.Split(order, ",") {
		col, dir, _ := strings.Cut(part, ".")
		keys = append(keys, key{col: col, desc: dir == "desc"})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			c := compare(rows[i][k.col], rows[j][k.col])
			if c == 0 {
				continue
			}
			if k.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// compare orders nulls last, then timestamps, numbers and strings by value.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	if fa, ok := a.(float64); ok {
		if fb, ok := b.(float64); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	sa, sb := format(a), format(b)
	if ta, err := time.Parse(time.RFC3339Nano, sa); err == nil {
		if tb, err := time.Parse(time.RFC3339Nano, sb); err == nil {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(sa, sb)
}

func format(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func decodeBody(r io.Reader) (map[string]any, error) {
	var body map[string]any
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid json body: %w", err)
	}
	return body, nil
}

func first(query map[string][]string, key string) string {
	if v := query[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func clone(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func nonNil(rows []map[string]any) []map[string]any {
	if rows == nil {
		return []map[string]any{}
	}
	return rows
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"code": code, "message": msg})
}
