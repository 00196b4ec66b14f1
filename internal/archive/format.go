package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
	"unicode/utf8"
)

// FormatTable writes entries as an aligned table. Times are shown in loc.
// Returns the number of entries formatted.
func FormatTable(w io.Writer, entries []*Entry, loc *time.Location) int {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No sessions found")
		return 0
	}
	if loc == nil {
		loc = time.Local
	}

	fmt.Fprintf(w, "%-8s  %-5s  %-14s  %-5s  %-18s  %s\n",
		"SESSION", "ID", "HCT ORDER", "LAB", "EXPERIMENTER", "GENERATED")
	fmt.Fprintf(w, "%-8s  %-5s  %-14s  %-5s  %-18s  %s\n",
		"--------", "-----", "--------------", "-----", "------------------", "----------------")

	for _, e := range entries {
		fmt.Fprintf(w, "%-8s  %-5s  %s  %s  %s  %s\n",
			formatID(e.SessionID),
			e.ParticipantID,
			pad(e.HCTOrder, 14),
			pad(orDash(truncate(e.LabNumber, 5)), 5),
			pad(orDash(truncate(e.Experimenter, 18)), 18),
			formatTimestamp(e.GeneratedAtMs, loc),
		)
	}

	noun := "session"
	if len(entries) != 1 {
		noun = "sessions"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(entries), noun)
	return len(entries)
}

// FormatJSONL writes entries as line-delimited JSON for jq and friends.
func FormatJSONL(w io.Writer, entries []*Entry) error {
	for _, e := range entries {
		if err := FormatJSON(w, e); err != nil {
			return err
		}
	}
	return nil
}

// FormatJSON writes a single entry as one compact JSON line.
func FormatJSON(w io.Writer, e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal session to JSON: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write JSONL output: %w", err)
	}
	return nil
}

// formatID truncates a session ID to its first 8 characters.
func formatID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTimestamp(ms int64, loc *time.Location) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).In(loc).Format("2006-01-02 15:04")
}

// pad right-pads by rune count; the order separator is multi-byte.
func pad(s string, width int) string {
	n := utf8.RuneCountInString(s)
	for ; n < width; n++ {
		s += " "
	}
	return s
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	r := []rune(s)
	return string(r[:width-1]) + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
