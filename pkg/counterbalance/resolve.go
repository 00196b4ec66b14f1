package counterbalance

import (
	"strconv"
	"strings"
)

// OrderSeparator joins trial durations in a formatted order.
const OrderSeparator = " → "

// Assignment is the outcome of looking a participant up in a Table.
// The zero value is a NotFound assignment.
type Assignment struct {
	id    CanonicalID
	order [3]int
	found bool
}

// Found returns an assignment carrying the given trial order.
func Found(id CanonicalID, order [3]int) Assignment {
	return Assignment{id: id, order: order, found: true}
}

// NotFound returns an assignment for an ID absent from the table.
func NotFound(id CanonicalID) Assignment {
	return Assignment{id: id}
}

// Resolve looks id up in table. A missing participant, or a nil table, yields
// a NotFound assignment; Resolve never fails. The trial order is returned
// exactly as stored, never re-sorted.
func Resolve(table *Table, id CanonicalID) Assignment {
	entry, ok := table.Lookup(id)
	if !ok {
		return NotFound(id)
	}
	return Found(entry.ID, entry.Order())
}

// ID returns the canonical ID that was looked up.
func (a Assignment) ID() CanonicalID {
	return a.id
}

// Found reports whether the participant had an entry.
func (a Assignment) Found() bool {
	return a.found
}

// Order returns the prescribed trial sequence. It is all zeros when not found.
func (a Assignment) Order() [3]int {
	return a.order
}

// Format renders the order as "45 → 55 → 30". It returns "" when not found.
func (a Assignment) Format() string {
	if !a.found {
		return ""
	}
	return FormatOrder(a.order)
}

// FormatOrder joins trial durations with OrderSeparator.
func FormatOrder(order [3]int) string {
	parts := make([]string, len(order))
	for i, v := range order {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, OrderSeparator)
}
