// Package store implements the data access layer.
//
// Callers speak in backend-agnostic QueryDescriptors and Rows. A Driver turns
// them into SQL or PostgREST calls; exactly one Driver is chosen when the
// store is opened.
//
// # Architecture Overview
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                         Store (facade)                          │
//	├─────────────────────────────────────────────────────────────────┤
//	│  RecordWriter      composite and numbered writes in one tx      │
//	│  SequenceGenerator BWS-n / WO-n, Next (racy) and Claim (locked) │
//	├─────────────────────────────────────────────────────────────────┤
//	│  Adapter           allow-list, server fields, certificate       │
//	│                    policy, metrics                              │
//	│  TableResolver     logical entity ──► physical table (cached)   │
//	├────────────────────────────────┬────────────────────────────────┤
//	│  SQLDriver                     │  RESTDriver                    │
//	│  squirrel + sqlx               │  PostgREST over net/http       │
//	│  duckdb │ postgres │ sqlite    │  compensating transactions     │
//	└────────────────────────────────┴────────────────────────────────┘
//
// # Tables and Entities
//
// Only tables listed in schema.go are ever named in a statement, and only
// with the columns listed there. Values are always bound parameters.
//
// Some entities are backed by different tables depending on how far an
// installation got through old renames:
//
//	┌───────────────────┬────────────────────────────────────────┬──────────────────────┐
//	│  Entity           │  Candidates                            │  Preferred           │
//	├───────────────────┼────────────────────────────────────────┼──────────────────────┤
//	│  compressor_record│  compressor_records, compressors_records│  compressors_records│
//	│  work_order       │  work_orders, workorders               │  work_orders         │
//	│  work_order_item  │  work_order_items, work_order_line_items│  work_order_items   │
//	└───────────────────┴────────────────────────────────────────┴──────────────────────┘
//
// Resolution asks the driver's catalog which candidates exist. None is not
// an error: reads return no rows and writes fail with NotFoundError. Two or
// more without a preferred table fail with AmbiguousSchemaError.
//
// # Transactions
//
// RecordWriter runs each operation in one transaction:
//
//	BEGIN ─► claim number ─► insert parent ─► insert items ─► re-read items
//	      ─► total = Σ subtotal, vat = total × rate / 100 ─► update parent ─► COMMIT
//
// Any failure rolls back and returns a *WriteError naming the step. Conflicts
// are retried with exponential backoff; everything else fails at once.
//
// On the REST backend there is no server-side transaction. Writes are applied
// immediately and undone in reverse order on rollback.
//
// # QueryInterceptor
//
// Every statement run by the SQL driver goes through a QueryInterceptor that
// logs it at debug level with its arguments and duration.
package store
