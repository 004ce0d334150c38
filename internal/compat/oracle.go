// Package compat decides donor-to-recipient blood group eligibility.
//
// The oracle is a pure lookup over an injected, immutable table, so
// deployments (and tests) can swap the chart without touching callers.
package compat

import (
	id "bloodlink/pkg/domain"
)

// Table maps a donor blood group to every recipient group that donor can
// safely supply. It is directional: Table["A+"] lists who an A+ donor can
// give to, not who an A+ patient can receive from.
type Table map[id.BloodType][]id.BloodType

// DefaultTable returns the canonical donor → eligible-recipients chart.
// Source: Canadian Blood Services donor compatibility reference.
func DefaultTable() Table {
	return Table{
		id.BloodAPos:  {id.BloodAPos, id.BloodABPos},
		id.BloodANeg:  {id.BloodAPos, id.BloodANeg, id.BloodABPos, id.BloodABNeg},
		id.BloodBPos:  {id.BloodBPos, id.BloodABPos},
		id.BloodBNeg:  {id.BloodBPos, id.BloodBNeg, id.BloodABPos, id.BloodABNeg},
		id.BloodABPos: {id.BloodABPos},
		id.BloodABNeg: {id.BloodABPos, id.BloodABNeg},
		id.BloodOPos:  {id.BloodOPos, id.BloodAPos, id.BloodBPos, id.BloodABPos},
		id.BloodONeg: {id.BloodONeg, id.BloodOPos, id.BloodANeg, id.BloodAPos,
			id.BloodBNeg, id.BloodBPos, id.BloodABNeg, id.BloodABPos},
	}
}

// Oracle answers donor → recipient compatibility questions against a fixed
// table. Safe for concurrent use; the table is never mutated after New.
type Oracle struct {
	givesTo    map[id.BloodType]map[id.BloodType]bool
	donorsFor  map[id.BloodType][]id.BloodType
	tableOrder Table
}

// New builds an Oracle from the given table. The table is copied, so later
// mutation of the argument does not affect the oracle.
func New(table Table) *Oracle {
	o := &Oracle{
		givesTo:    make(map[id.BloodType]map[id.BloodType]bool, len(table)),
		donorsFor:  make(map[id.BloodType][]id.BloodType),
		tableOrder: make(Table, len(table)),
	}
	for donor, recipients := range table {
		set := make(map[id.BloodType]bool, len(recipients))
		copied := make([]id.BloodType, len(recipients))
		copy(copied, recipients)
		for _, r := range recipients {
			set[r] = true
		}
		o.givesTo[donor] = set
		o.tableOrder[donor] = copied
	}
	// Invert once so directory queries can filter by donor type.
	for _, donor := range id.BloodTypes() {
		for _, recipient := range id.BloodTypes() {
			if o.givesTo[donor][recipient] {
				o.donorsFor[recipient] = append(o.donorsFor[recipient], donor)
			}
		}
	}
	return o
}

// Default builds an Oracle over DefaultTable.
func Default() *Oracle {
	return New(DefaultTable())
}

// IsCompatible reports whether donor blood can be given to recipient blood.
// Unrecognized donor types are compatible with nothing.
func (o *Oracle) IsCompatible(donor, recipient id.BloodType) bool {
	return o.givesTo[donor][recipient]
}

// CompatibleDonorTypes returns every donor group that can serve the given
// recipient group, in canonical display order. Empty for unknown types.
func (o *Oracle) CompatibleDonorTypes(recipient id.BloodType) []id.BloodType {
	donors := o.donorsFor[recipient]
	out := make([]id.BloodType, len(donors))
	copy(out, donors)
	return out
}

// RecipientsOf returns every recipient group the given donor group can
// supply, as listed in the table. Empty for unknown types.
func (o *Oracle) RecipientsOf(donor id.BloodType) []id.BloodType {
	recipients := o.tableOrder[donor]
	out := make([]id.BloodType, len(recipients))
	copy(out, recipients)
	return out
}

// Chart exposes a copy of the underlying table for presentation (the manual
// checker page renders it client side).
func (o *Oracle) Chart() Table {
	out := make(Table, len(o.tableOrder))
	for donor, recipients := range o.tableOrder {
		copied := make([]id.BloodType, len(recipients))
		copy(copied, recipients)
		out[donor] = copied
	}
	return out
}
