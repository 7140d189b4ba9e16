// Package resolver expands short session-id prefixes typed at the CLI.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
const MinShortIDLength = 6

// SessionLister is the slice of the store the resolver needs.
type SessionLister interface {
	SessionExists(ctx context.Context, sessionID string) (bool, error)
	ScanSessions(ctx context.Context, prefix string) ([]string, error)
}

// ResolveSessionID resolves id to a stored session id.
//
// An id that names an existing session is returned unchanged. Otherwise an id
// of at least MinShortIDLength characters is treated as a prefix and must
// match exactly one session.
func ResolveSessionID(ctx context.Context, store SessionLister, id string) (string, error) {
	if id == "" {
		return "", errors.New("session id is required")
	}

	exists, err := store.SessionExists(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to verify session existence: %w", err)
	}
	if exists {
		return id, nil
	}

	if len(id) < MinShortIDLength {
		return "", &NotFoundError{ShortID: id}
	}

	matches, err := store.ScanSessions(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to search for session: %w", err)
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

// NotFoundError indicates no session matched.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no sessions found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple sessions matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d sessions", e.ShortID, len(e.Matches))
}

// FormatAmbiguousError lists the matching ids (up to 10, then "...and N more").
func FormatAmbiguousError(err *AmbiguousError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ambiguous short ID '%s' matches %d sessions:\n", err.ShortID, len(err.Matches))

	displayCount := min(len(err.Matches), 10)
	for i := 0; i < displayCount; i++ {
		fmt.Fprintf(&b, "  %s\n", err.Matches[i])
	}
	if len(err.Matches) > 10 {
		fmt.Fprintf(&b, "  ...and %d more\n", len(err.Matches)-10)
	}

	b.WriteString("\nUse a longer prefix to uniquely identify the session.")
	return b.String()
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	var target *AmbiguousError
	return errors.As(err, &target)
}
