package access

import "sort"

// IDScope is either unrestricted ("everything") or a concrete, possibly
// empty, set of IDs. The two cases are explicit so an empty set can never
// be confused with unlimited access.
type IDScope struct {
	unrestricted bool
	ids          map[string]struct{}
}

// UnrestrictedScope returns the scope matching every ID.
func UnrestrictedScope() IDScope {
	return IDScope{unrestricted: true}
}

// RestrictedScope returns a scope matching exactly the given IDs.
// Duplicates are collapsed; an empty list yields a scope matching nothing.
func RestrictedScope(ids ...string) IDScope {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return IDScope{ids: set}
}

// Unrestricted reports whether the scope matches everything.
func (s IDScope) Unrestricted() bool {
	return s.unrestricted
}

// Contains reports whether id is inside the scope.
func (s IDScope) Contains(id string) bool {
	if s.unrestricted {
		return true
	}
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of IDs in a restricted scope, 0 for unrestricted.
func (s IDScope) Len() int {
	return len(s.ids)
}

// IDs returns the scope's IDs sorted for stable output. Nil for an
// unrestricted scope, so JSON callers can distinguish "all" (null) from
// "none" (empty array).
func (s IDScope) IDs() []string {
	if s.unrestricted {
		return nil
	}
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
