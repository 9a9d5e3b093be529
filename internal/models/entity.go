package models

// LogicalEntity is a business object that may be stored under one of several
// physical table names left behind by incremental schema migrations.
type LogicalEntity struct {
	LogicalName string
	// Candidates are checked in order. Preferred breaks ties when more than one exists.
	Candidates []string
	Preferred  string
}

// ResolvedTable is the outcome of resolving a LogicalEntity. An empty
// PhysicalName means the entity has no backing table.
type ResolvedTable struct {
	PhysicalName string
}

func (r ResolvedTable) None() bool {
	return r.PhysicalName == ""
}
