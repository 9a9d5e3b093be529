// Package services implements the business logic between the HTTP handlers
// and the store.
//
// # Service Dependency Graph
//
//	Handlers (HTTP endpoints, CLI)
//	    │
//	    ▼
//	Services Layer
//	    ├── RecordService ──────► Store (Adapter)
//	    ├── CertificateService ─► Store (Adapter, RecordWriter.CreateNumbered)
//	    ├── WorkOrderService ───► Store (RecordWriter), Scheduler
//	    ├── ExportService ──────► CertificateService
//	    └── SQLService ─────────► Store (Adapter.RawQuery)
//
// # RecordService
//
// Generic CRUD for companies, contacts, equipment and compressor records.
// Lists accept equality filters, a sort given as "field:dir" terms and
// limit/offset pagination. The total is counted without pagination.
//
// # CertificateService
//
// Certificates are numbered BWS-n at creation. The number is claimed in the
// same transaction that inserts the row, so concurrent creations never share
// a number. Retest date and status are derived by the certificate policy on
// every write and every read; a status filter on List is therefore applied
// after the rows are read.
//
// # WorkOrderService
//
// Work order writes touch a parent and several items and must be atomic.
// They run through the scheduler:
//
//	Create ──► scheduler.Run ──► RecordWriter.CreateComposite ──► tx
//	   ▲                                                          │
//	   └────────────── WorkOrder (total, vat recomputed) ◄────────┘
//
// When the caller's context ends, the scheduler stops the work and the
// transaction is rolled back before the call returns.
//
// # ExportService
//
// Writes the certificate register as an xlsx workbook with one sheet.
package services
