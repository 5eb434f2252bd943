package conversation

import (
	"errors"
	"fmt"
	"strings"
)

// Latest selects the most recently updated conversation in FindByPrefix.
const Latest = "latest"

const minPrefixLen = 4

// ErrNotFound is returned by FindByPrefix when nothing matches.
var ErrNotFound = errors.New("conversation not found")

// AmbiguousIDError is returned when multiple conversations match a prefix
type AmbiguousIDError struct {
	Prefix  string
	Matches []Summary
}

func (e *AmbiguousIDError) Error() string {
	var lines []string
	lines = append(lines, fmt.Sprintf("Ambiguous conversation ID %q. Multiple matches found:", e.Prefix))
	for _, match := range e.Matches {
		lines = append(lines, fmt.Sprintf("- %s (%s, %s, %d messages)",
			ShortID(match.ID),
			match.DisplayTitle(),
			match.CreatedAt.Format("2006-01-02"),
			match.MessageCount))
	}
	lines = append(lines, "")
	lines = append(lines, "Please use a longer prefix or run 'llmnote conversations list'.")
	return strings.Join(lines, "\n")
}

// ShortID returns the random tail of an identifier, which is what users type.
func ShortID(id string) string {
	if i := strings.LastIndexByte(id, '-'); i >= 0 && i < len(id)-1 {
		return id[i+1:]
	}
	return id
}

// FindByPrefix picks one conversation out of list, which must be ordered most
// recently updated first as ListConversationsByUser returns it.
// The prefix is matched against both the full ID and its ShortID.
func FindByPrefix(list []Summary, prefix string) (Summary, error) {
	if prefix == Latest {
		if len(list) == 0 {
			return Summary{}, fmt.Errorf("%w: no conversations yet", ErrNotFound)
		}
		return list[0], nil
	}

	for _, s := range list {
		if s.ID == prefix {
			return s, nil
		}
	}

	if len(prefix) < minPrefixLen {
		return Summary{}, fmt.Errorf("conversation ID prefix must be at least %d characters (got %d)", minPrefixLen, len(prefix))
	}

	var matches []Summary
	for _, s := range list {
		if strings.HasPrefix(s.ID, prefix) || strings.HasPrefix(ShortID(s.ID), prefix) {
			matches = append(matches, s)
		}
	}

	switch len(matches) {
	case 0:
		return Summary{}, fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return matches[0], nil
	default:
		return Summary{}, &AmbiguousIDError{Prefix: prefix, Matches: matches}
	}
}
