// Package resolver turns the short session ID prefixes shown by
// 'hctorder history' back into full session IDs.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dyluth/hctorder/internal/archive"
)

// MinShortIDLength is the shortest prefix accepted by ResolveSessionID.
const MinShortIDLength = 6

// maxListedMatches bounds the IDs shown by FormatAmbiguousError.
const maxListedMatches = 10

// ErrShortIDTooShort is returned for prefixes under MinShortIDLength.
var ErrShortIDTooShort = fmt.Errorf("short ID must be at least %d characters", MinShortIDLength)

// ResolveSessionID returns the one recorded session ID that id names.
//
// A complete UUID, in any form uuid.Parse accepts, is looked up directly.
// Anything else is a case-insensitive prefix matched against every
// recorded session.
func ResolveSessionID(ctx context.Context, a archive.Archive, id string) (string, error) {
	if full, err := uuid.Parse(id); err == nil {
		sessionID := full.String()
		if _, err := a.Get(ctx, sessionID); err != nil {
			if errors.Is(err, archive.ErrNotFound) {
				return "", &NotFoundError{ShortID: id}
			}
			return "", fmt.Errorf("failed to verify session existence: %w", err)
		}
		return sessionID, nil
	}

	if len(id) < MinShortIDLength {
		return "", fmt.Errorf("%w (got %d)", ErrShortIDTooShort, len(id))
	}

	entries, err := a.List(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to search for session: %w", err)
	}
	prefix := strings.ToLower(id)
	var matches []string
	for _, e := range entries {
		if strings.HasPrefix(e.SessionID, prefix) {
			matches = append(matches, e.SessionID)
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: id}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: id, Matches: matches}
	}
}

// NotFoundError means no recorded session matches ShortID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no sessions found matching '%s'", e.ShortID)
}

// AmbiguousError means several recorded sessions share the ShortID prefix.
// Matches is in archive order, oldest first.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d sessions", e.ShortID, len(e.Matches))
}

// FormatAmbiguousError lists the matching IDs for display, truncated after
// the first ten.
func FormatAmbiguousError(err *AmbiguousError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Short ID '%s' matches %d sessions:\n", err.ShortID, len(err.Matches))

	for _, id := range err.Matches[:min(len(err.Matches), maxListedMatches)] {
		fmt.Fprintf(&b, "  %s\n", id)
	}
	if extra := len(err.Matches) - maxListedMatches; extra > 0 {
		fmt.Fprintf(&b, "  ...and %d more\n", extra)
	}

	b.WriteString("\nUse a longer prefix to uniquely identify the session.")
	return b.String()
}

// IsNotFoundError reports whether err is or wraps a *NotFoundError.
func IsNotFoundError(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsAmbiguousError reports whether err is or wraps an *AmbiguousError.
func IsAmbiguousError(err error) bool {
	var amb *AmbiguousError
	return errors.As(err, &amb)
}
