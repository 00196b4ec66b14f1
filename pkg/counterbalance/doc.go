// Package counterbalance assigns each participant the trial order prescribed for
// them by a pre-built counterbalancing table.
//
// # Overview
//
// A counterbalancing table lists, for every participant, a fixed ordering of the
// three heartbeat counting task (HCT) trial durations. The ordering is decided
// when the table is built, not at runtime, so looking a participant up must be
// deterministic: the same raw ID against the same table always yields the same
// sequence.
//
// # Core Concepts
//
// CanonicalID is the fixed-width (three digit, zero padded) form of a participant
// identifier. Canonicalize extracts the first run of ASCII digits from whatever
// the experimenter typed ("P7", "id 042 extra") and pads it ("007", "042").
//
// Table is the immutable, validated form of the counterbalancing source, keyed
// by CanonicalID. Load builds one from CSV-like text, tolerating byte-order marks,
// UTF-16 exports, header aliases and case differences.
//
// Assignment is the result of a lookup. A participant missing from the table is
// a normal outcome (Found returns false), not an error.
//
// Provider holds a lazily loaded Table that can be reloaded while lookups are in
// flight.
//
// # Usage Example
//
//	table, err := counterbalance.Load(file)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	id, err := counterbalance.Canonicalize("P1")
//	if err != nil {
//		log.Fatal(err) // counterbalance.ErrInvalidID
//	}
//
//	assignment := counterbalance.Resolve(table, id)
//	if !assignment.Found() {
//		fmt.Printf("participant %s is not in the table\n", id)
//		return
//	}
//	fmt.Println(assignment.Format()) // "30 → 45 → 55"
//
// # Table Format
//
// A header row is required. Column names are matched case-insensitively after
// trimming whitespace and any byte-order mark:
//
//	ID:     id, subject_id, participant, participant_id
//	Trial1: trial1, t1
//	Trial2: trial2, t2
//	Trial3: trial3, t3
//
// Column order does not matter and unknown columns are ignored.
package counterbalance
