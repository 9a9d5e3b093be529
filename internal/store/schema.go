package store

import (
	"sort"

	"github.com/bwservicing/certtrack/internal/models"
	"github.com/bwservicing/certtrack/internal/util"
)

// TableDef is the allow-list entry for one physical table. Only names listed
// here are ever interpolated into a statement.
type TableDef struct {
	Name     string
	Columns  []string
	Required []string
	// Certificate marks tables whose rows carry service_date, retest_date and
	// status and therefore go through the certificate policy.
	Certificate bool
}

func (t TableDef) HasColumn(col string) bool {
	return util.Contains(t.Columns, col)
}

var (
	companyColumns = []string{"id", "name", "address", "email", "phone", "vat_number", "created_at", "updated_at"}
	contactColumns = []string{"id", "company_id", "name", "email", "phone", "role", "created_at", "updated_at"}

	equipmentColumns = []string{"id", "company_id", "name", "serial_number", "manufacturer", "model", "created_at", "updated_at"}

	compressorColumns = []string{
		"id", "company_id", "equipment_id", "serial_number", "certificate_number",
		"service_date", "retest_date", "status", "engineer", "notes", "created_at", "updated_at",
	}
	certificateColumns = []string{
		"id", "certificate_number", "company_id", "equipment_id",
		"service_date", "retest_date", "status", "notes", "created_at", "updated_at",
	}
	workOrderColumns = []string{
		"id", "work_order_number", "company_id", "status", "vat_rate", "total", "vat", "notes", "created_at", "updated_at",
	}
	workOrderItemColumns = []string{
		"id", "work_order_id", "description", "quantity", "unit_price", "subtotal", "created_at", "updated_at",
	}
)

var tables = map[string]TableDef{
	"companies": {Name: "companies", Columns: companyColumns, Required: []string{"name"}},
	"contacts":  {Name: "contacts", Columns: contactColumns, Required: []string{"company_id", "name"}},
	"equipment": {Name: "equipment", Columns: equipmentColumns, Required: []string{"company_id", "name"}},
	"compressor_records": {
		Name: "compressor_records", Columns: compressorColumns,
		Required: []string{"company_id", "service_date"}, Certificate: true,
	},
	"compressors_records": {
		Name: "compressors_records", Columns: compressorColumns,
		Required: []string{"company_id", "service_date"}, Certificate: true,
	},
	"certificates": {
		Name: "certificates", Columns: certificateColumns,
		Required: []string{"certificate_number", "company_id", "service_date"}, Certificate: true,
	},
	"work_orders": {Name: "work_orders", Columns: workOrderColumns, Required: []string{"work_order_number", "company_id", "vat_rate"}},
	"workorders":  {Name: "workorders", Columns: workOrderColumns, Required: []string{"work_order_number", "company_id", "vat_rate"}},
	"work_order_items": {
		Name: "work_order_items", Columns: workOrderItemColumns,
		Required: []string{"work_order_id", "description", "unit_price", "subtotal"},
	},
	"work_order_line_items": {
		Name: "work_order_line_items", Columns: workOrderItemColumns,
		Required: []string{"work_order_id", "description", "unit_price", "subtotal"},
	},
}

// Logical entity names.
const (
	EntityCompany          = "company"
	EntityContact          = "contact"
	EntityEquipment        = "equipment"
	EntityCompressorRecord = "compressor_record"
	EntityCertificate      = "certificate"
	EntityWorkOrder        = "work_order"
	EntityWorkOrderItem    = "work_order_item"
)

// entities maps each logical entity to the physical tables that have backed
// it over time. Preferred must be set whenever more than one candidate can
// exist at once, otherwise resolution fails with AmbiguousSchemaError.
var entities = map[string]models.LogicalEntity{
	EntityCompany:   {LogicalName: EntityCompany, Candidates: []string{"companies"}},
	EntityContact:   {LogicalName: EntityContact, Candidates: []string{"contacts"}},
	EntityEquipment: {LogicalName: EntityEquipment, Candidates: []string{"equipment"}},
	// The plural rename was never finished; both tables exist on older installs
	// and the plural one is authoritative.
	EntityCompressorRecord: {
		LogicalName: EntityCompressorRecord,
		Candidates:  []string{"compressor_records", "compressors_records"},
		Preferred:   "compressors_records",
	},
	EntityCertificate: {LogicalName: EntityCertificate, Candidates: []string{"certificates"}},
	EntityWorkOrder: {
		LogicalName: EntityWorkOrder,
		Candidates:  []string{"work_orders", "workorders"},
		Preferred:   "work_orders",
	},
	EntityWorkOrderItem: {
		LogicalName: EntityWorkOrderItem,
		Candidates:  []string{"work_order_items", "work_order_line_items"},
		Preferred:   "work_order_items",
	},
}

// LookupTable returns the allow-list entry of a physical table.
func LookupTable(name string) (TableDef, bool) {
	t, ok := tables[name]
	return t, ok
}

// LookupEntity returns the registered logical entity with the given name.
func LookupEntity(name string) (models.LogicalEntity, bool) {
	e, ok := entities[name]
	return e, ok
}

// EntityOfTable returns the logical entity that lists table among its
// candidates.
func EntityOfTable(table string) (models.LogicalEntity, bool) {
	for _, e := range entities {
		for _, c := range e.Candidates {
			if c == table {
				return e, true
			}
		}
	}
	return models.LogicalEntity{}, false
}

// Entities returns the registered logical entity names, sorted.
func Entities() []string {
	names := make([]string, 0, len(entities))
	for n := range entities {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Namespace is a certificate-number sequence: numbers are Prefix followed by
// digits, starting at Floor.
type Namespace struct {
	Name   string
	Entity string
	Column string
	Prefix string
	Floor  int64
}

var (
	CertificateNamespace = Namespace{
		Name:   "certificate",
		Entity: EntityCertificate,
		Column: "certificate_number",
		Prefix: "BWS-",
		Floor:  1000,
	}
	WorkOrderNamespace = Namespace{
		Name:   "work_order",
		Entity: EntityWorkOrder,
		Column: "work_order_number",
		Prefix: "WO-",
		Floor:  1000,
	}
)
