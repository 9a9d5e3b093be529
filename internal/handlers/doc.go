// Package handlers implements the HTTP API layer.
//
// Handlers parse and validate requests, call the services layer and map
// results and errors to HTTP responses. All handlers are methods on a single
// Handler struct and are mounted under /api/v1 by Register.
//
// # API Endpoints
//
//	┌────────┬───────────────────────────────────┬──────────────────────────────────────┐
//	│ Method │ Endpoint                          │ Description                          │
//	├────────┼───────────────────────────────────┼──────────────────────────────────────┤
//	│ GET    │ /records/{collection}             │ List companies, contacts, equipment, │
//	│        │                                   │ compressor-records                   │
//	│ POST   │ /records/{collection}             │ Create a record                      │
//	│ GET    │ /records/{collection}/{id}        │ Get a record                         │
//	│ PATCH  │ /records/{collection}/{id}        │ Update a record                      │
//	│ DELETE │ /records/{collection}/{id}        │ Delete a record                      │
//	│ GET    │ /certificates                     │ List with derived status filter      │
//	│ POST   │ /certificates                     │ Create, numbered BWS-n               │
//	│ GET    │ /certificates/export              │ xlsx register                        │
//	│ GET    │ /certificates/{id}                │ Get a certificate                    │
//	│ PATCH  │ /certificates/{id}                │ Update a certificate                 │
//	│ DELETE │ /certificates/{id}                │ Delete a certificate                 │
//	│ GET    │ /work-orders                      │ List work orders                     │
//	│ POST   │ /work-orders                      │ Create with items                    │
//	│ GET    │ /work-orders/{id}                 │ Get with items                       │
//	│ POST   │ /work-orders/{id}/items           │ Add items                            │
//	│ DELETE │ /work-orders/{id}/items/{itemId}  │ Remove an item                       │
//	│ POST   │ /sql                              │ Restricted SQL statement             │
//	└────────┴───────────────────────────────────┴──────────────────────────────────────┘
//
// # Pagination
//
// List endpoints accept page (1-based, default 1) and pageSize (default 20,
// capped at 100) and answer with page, pageCount and total.
//
// # Error Handling
//
//	┌──────────────────────────────┬────────┐
//	│ Error                        │ Status │
//	├──────────────────────────────┼────────┤
//	│ NotFoundError                │ 404    │
//	│ ValidationError, ParseError  │ 400    │
//	│ ConflictError                │ 409    │
//	│ BackendUnavailableError      │ 503    │
//	│ anything else                │ 500    │
//	└──────────────────────────────┴────────┘
//
// Bodies of 5xx answers carry only the operation and the error kind; the
// full error is logged.
package handlers
