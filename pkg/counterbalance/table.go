package counterbalance

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrNoSource indicates no table source was supplied.
	ErrNoSource = errors.New("no table source")
	// ErrEmptyTable indicates the source has no header row.
	ErrEmptyTable = errors.New("table has no header row")
	// ErrMissingIDColumn indicates no header matched an ID alias.
	ErrMissingIDColumn = errors.New("missing id column")
	// ErrMissingTrialColumns indicates at least one of the three trial columns is absent.
	ErrMissingTrialColumns = errors.New("missing trial columns")
	// ErrInvalidTrial indicates a trial cell is not an integer.
	ErrInvalidTrial = errors.New("trial value is not an integer")
	// ErrShortRow indicates a row has fewer cells than the columns it must supply.
	ErrShortRow = errors.New("row is missing cells")
	// ErrDuplicateID indicates two rows canonicalize to the same participant.
	ErrDuplicateID = errors.New("duplicate participant id")
)

// TableError describes a schema or data problem in a counterbalancing table.
// Row is the 1-based line of the source (the header is row 1); zero means the
// error is not tied to a row.
type TableError struct {
	Row    int
	Column string
	Err    error
}

func (e *TableError) Error() string {
	switch {
	case e.Row > 0 && e.Column != "":
		return fmt.Sprintf("counterbalance table: row %d, column %s: %v", e.Row, e.Column, e.Err)
	case e.Row > 0:
		return fmt.Sprintf("counterbalance table: row %d: %v", e.Row, e.Err)
	default:
		return fmt.Sprintf("counterbalance table: %v", e.Err)
	}
}

func (e *TableError) Unwrap() error {
	return e.Err
}

// DuplicatePolicy decides what happens when two rows share a CanonicalID.
type DuplicatePolicy string

const (
	// DuplicateReject fails the load on the second occurrence.
	DuplicateReject DuplicatePolicy = "reject"
	// DuplicateFirstWins keeps the first occurrence and ignores later ones.
	DuplicateFirstWins DuplicatePolicy = "first"
)

// Valid reports whether p is a known policy.
func (p DuplicatePolicy) Valid() bool {
	return p == DuplicateReject || p == DuplicateFirstWins
}

// Entry is one participant's prescribed trial sequence.
type Entry struct {
	ID     CanonicalID `json:"id" yaml:"id"`
	Trial1 int         `json:"trial1" yaml:"trial1"`
	Trial2 int         `json:"trial2" yaml:"trial2"`
	Trial3 int         `json:"trial3" yaml:"trial3"`
}

// Order returns the trials in table order.
func (e Entry) Order() [3]int {
	return [3]int{e.Trial1, e.Trial2, e.Trial3}
}

// Columns records which source headers were matched to each canonical column.
type Columns struct {
	ID     string
	Trial1 string
	Trial2 string
	Trial3 string
}

// Table is an immutable mapping from CanonicalID to Entry.
// A Table is safe for concurrent reads.
type Table struct {
	entries map[CanonicalID]Entry
	order   []CanonicalID
	columns Columns
	skipped int
}

// NewTable builds a Table from entries already carrying canonical IDs.
// Duplicates are handled according to policy; an empty policy means DuplicateReject.
func NewTable(entries []Entry, policy DuplicatePolicy) (*Table, error) {
	b := newTableBuilder(policy)
	for i, e := range entries {
		if canon, err := Canonicalize(string(e.ID)); err != nil || canon != e.ID {
			return nil, &TableError{Row: i + 1, Column: "ID", Err: fmt.Errorf("%w: %q is not canonical", ErrInvalidID, e.ID)}
		}
		if err := b.add(e, i+1); err != nil {
			return nil, err
		}
	}
	return b.build(Columns{ID: "ID", Trial1: "Trial1", Trial2: "Trial2", Trial3: "Trial3"}), nil
}

// Len returns the number of participants in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Lookup returns the entry for id.
func (t *Table) Lookup(id CanonicalID) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	e, ok := t.entries[id]
	return e, ok
}

// IDs returns all participant IDs in ascending order.
func (t *Table) IDs() []CanonicalID {
	if t == nil {
		return nil
	}
	ids := make([]CanonicalID, len(t.order))
	copy(ids, t.order)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Entries returns all entries in source order.
func (t *Table) Entries() []Entry {
	if t == nil {
		return nil
	}
	out := make([]Entry, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.entries[id])
	}
	return out
}

// Columns returns the source header names matched to each canonical column.
func (t *Table) Columns() Columns {
	if t == nil {
		return Columns{}
	}
	return t.columns
}

// Skipped returns how many duplicate rows were dropped under DuplicateFirstWins.
func (t *Table) Skipped() int {
	if t == nil {
		return 0
	}
	return t.skipped
}

// tableBuilder accumulates entries and enforces the duplicate policy.
type tableBuilder struct {
	policy  DuplicatePolicy
	entries map[CanonicalID]Entry
	rows    map[CanonicalID]int
	order   []CanonicalID
	skipped int
}

func newTableBuilder(policy DuplicatePolicy) *tableBuilder {
	if policy == "" {
		policy = DuplicateReject
	}
	return &tableBuilder{
		policy:  policy,
		entries: make(map[CanonicalID]Entry),
		rows:    make(map[CanonicalID]int),
	}
}

func (b *tableBuilder) add(e Entry, row int) error {
	if first, exists := b.rows[e.ID]; exists {
		if b.policy == DuplicateFirstWins {
			b.skipped++
			return nil
		}
		return &TableError{
			Row:    row,
			Column: "ID",
			Err:    fmt.Errorf("%w %s (first seen on row %d)", ErrDuplicateID, e.ID, first),
		}
	}
	b.entries[e.ID] = e
	b.rows[e.ID] = row
	b.order = append(b.order, e.ID)
	return nil
}

func (b *tableBuilder) build(columns Columns) *Table {
	return &Table{
		entries: b.entries,
		order:   b.order,
		columns: columns,
		skipped: b.skipped,
	}
}
