// Recipient name resolution.
//
// Matching rules: names compare case-insensitively; exact matches beat
// substring matches; a unique winner in the stronger class resolves even
// when weaker matches exist. Two or more winners of the same class is an
// ambiguity the caller must surface to the user.
package shard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/voicepay/go-voicepay-backend/internal/domain"
)

// ErrNoMatch is returned when a name query matches no recipient at all.
var ErrNoMatch = errors.New("no matching recipient")

// MatchKind reports how a name query matched a recipient.
type MatchKind string

const (
	// MatchExact means the query equals the recipient name (case folded).
	MatchExact MatchKind = "exact"
	// MatchPartialUnique means the query is a substring of exactly one name.
	MatchPartialUnique MatchKind = "partial_unique"
)

// Resolution is the successful outcome of ResolveByName.
type Resolution struct {
	Match *domain.Recipient
	Kind  MatchKind
}

// AmbiguousError is returned when a name query matches two or more
// recipients of the winning class. Options carries the candidates so the
// caller can ask the user to disambiguate.
type AmbiguousError struct {
	Query   string
	Options []domain.Recipient
}

// Error implements the error interface.
func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("recipient name %q is ambiguous (%d matches)", e.Query, len(e.Options))
}

// foldLower lower-cases a name for comparison using Unicode case folding.
var foldLower = cases.Lower(language.Und)

// ResolveByName resolves a spoken recipient name against the shard's address
// book. It returns:
//   - a Resolution with MatchExact when exactly one name equals the query;
//   - a Resolution with MatchPartialUnique when no exact match exists and
//     exactly one name contains the query;
//   - *AmbiguousError when the winning class has two or more candidates;
//   - repo.ErrNotFound (via the zero matches path) when nothing matches.
func (s *Shard) ResolveByName(ctx context.Context, query string) (*Resolution, error) {
	recipients, err := s.Recipients(ctx)
	if err != nil {
		return nil, err
	}

	q := foldLower.String(strings.TrimSpace(query))
	if q == "" {
		return nil, ErrNoMatch
	}

	var exact, partial []domain.Recipient
	for _, r := range recipients {
		name := foldLower.String(r.Name)
		switch {
		case name == q:
			exact = append(exact, r)
		case strings.Contains(name, q):
			partial = append(partial, r)
		}
	}

	// Exact matches take priority regardless of how many partials exist.
	if len(exact) == 1 {
		return &Resolution{Match: &exact[0], Kind: MatchExact}, nil
	}
	if len(exact) > 1 {
		return nil, &AmbiguousError{Query: query, Options: exact}
	}
	if len(partial) == 1 {
		return &Resolution{Match: &partial[0], Kind: MatchPartialUnique}, nil
	}
	if len(partial) > 1 {
		return nil, &AmbiguousError{Query: query, Options: partial}
	}
	return nil, ErrNoMatch
}
