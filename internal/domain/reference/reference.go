package reference

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Placeholder is displayed for any reference that cannot be resolved.
const Placeholder = "–"

// IDLength is the length of a record identifier in hex characters.
const IDLength = 24

// ErrUnknownKind is returned when an entity kind name is not recognised.
var ErrUnknownKind = errors.New("unknown entity kind")

// Kind names one of the five entity collections.
type Kind string

// Entity kinds.
const (
	KindCourse      Kind = "courses"
	KindInstructor  Kind = "instructors"
	KindParticipant Kind = "participants"
	KindRoom        Kind = "rooms"
	KindEnrollment  Kind = "enrollments"
)

// Kinds lists every entity kind in display order.
var Kinds = []Kind{KindCourse, KindInstructor, KindParticipant, KindRoom, KindEnrollment}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind converts a kind name into a Kind.
// PRE: none
// POST: Returns the kind or ErrUnknownKind
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Ref is a tagged reference to a record of a specific kind.
type Ref struct {
	Kind Kind
	ID   string
}

// String renders the reference as kind/id.
func (r Ref) String() string {
	return string(r.Kind) + "/" + r.ID
}

// NewRef builds a reference, returning nil when id is not a record identifier.
func NewRef(kind Kind, id string) *Ref {
	if !IsID(id) {
		return nil
	}
	return &Ref{Kind: kind, ID: id}
}

// RefID returns the identifier of ref, or "" for a nil reference.
func RefID(ref *Ref) string {
	if ref == nil {
		return ""
	}
	return ref.ID
}

var trailingID = regexp.MustCompile(`(?i)([a-f0-9]{24})$`)

var exactID = regexp.MustCompile(`(?i)^[a-f0-9]{24}$`)

// IsID reports whether s is exactly one record identifier.
func IsID(s string) bool {
	return exactID.MatchString(s)
}

// ExtractID returns the trailing 24-hex identifier of a reference URL.
// PRE: none
// POST: Returns "" when url is empty or carries no identifier
func ExtractID(url string) string {
	m := trailingID.FindStringSubmatch(strings.TrimSpace(url))
	if m == nil {
		return ""
	}
	return m[1]
}

// FromURL decodes a reference URL into a tagged reference of the given kind.
// Returns nil when the URL carries no identifier.
func FromURL(kind Kind, url string) *Ref {
	return NewRef(kind, ExtractID(url))
}

// Find looks up the record with the given identifier in candidates.
// Identifiers compare case-insensitively.
func Find[T any](id string, candidates []T, idOf func(T) string) (T, bool) {
	var zero T
	if id == "" {
		return zero, false
	}
	for _, c := range candidates {
		if strings.EqualFold(idOf(c), id) {
			return c, true
		}
	}
	return zero, false
}

// Resolve returns the label of the record ref points to, or Placeholder.
// PRE: candidates is the loaded list of ref's kind
// POST: Never fails; a nil, unmatched or blank-labelled reference yields Placeholder
func Resolve[T any](ref *Ref, candidates []T, idOf func(T) string, label func(T) string) string {
	if ref == nil {
		return Placeholder
	}
	return resolveID(ref.ID, candidates, idOf, label)
}

// ResolveURL is Resolve over a raw reference URL.
func ResolveURL[T any](url string, candidates []T, idOf func(T) string, label func(T) string) string {
	return resolveID(ExtractID(url), candidates, idOf, label)
}

func resolveID[T any](id string, candidates []T, idOf func(T) string, label func(T) string) string {
	c, ok := Find(id, candidates, idOf)
	if !ok {
		return Placeholder
	}
	if l := strings.TrimSpace(label(c)); l != "" {
		return l
	}
	return Placeholder
}
