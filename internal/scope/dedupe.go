package scope

import (
	"regexp"
	"strings"

	"procurement-backend/internal/models"
)

// disambiguatorPrefix matches a leading bracketed tag like "[MIGRATED]" or
// "(2)" used to tell apart duplicate onboardings of the same tenant.
var disambiguatorPrefix = regexp.MustCompile(`^[\[(][^\])]*[\])]\s*`)

// dedupeCompanies collapses company rows representing the same physical
// tenant. Rows match when they share both external-system bindings, or
// when their normalized names are equal. Each group keeps one
// representative: a name without a disambiguating prefix beats one with,
// then the shortest name wins, then the earliest row. Output order follows
// the first appearance of each group, so the selector is stable across
// refreshes.
func dedupeCompanies(in []models.Company) []models.Company {
	type group struct {
		best    models.Company
		bestIdx int
	}

	order := make([]string, 0, len(in))
	groups := make(map[string]*group, len(in))

	for i, c := range in {
		key := groupKey(c)
		g, ok := groups[key]
		if !ok {
			groups[key] = &group{best: c, bestIdx: i}
			order = append(order, key)
			continue
		}
		if betterRepresentative(c, g.best) {
			g.best = c
			g.bestIdx = i
		}
	}

	out := make([]models.Company, 0, len(order))
	for _, key := range order {
		out = append(out, groups[key].best)
	}
	return out
}

func groupKey(c models.Company) string {
	loc := strValue(c.BindLocationID)
	pl := strValue(c.BindPriceListID)
	if loc != "" && pl != "" {
		return "bind:" + loc + "|" + pl
	}
	return "name:" + normalizeName(c.Name)
}

// normalizeName strips a disambiguating prefix, lowercases, and collapses
// whitespace so "Acme  Corp" and "[OLD] acme corp" compare equal.
func normalizeName(name string) string {
	s := disambiguatorPrefix.ReplaceAllString(strings.TrimSpace(name), "")
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

func betterRepresentative(candidate, current models.Company) bool {
	candTagged := disambiguatorPrefix.MatchString(strings.TrimSpace(candidate.Name))
	currTagged := disambiguatorPrefix.MatchString(strings.TrimSpace(current.Name))
	if candTagged != currTagged {
		return !candTagged
	}
	// Shorter trimmed name wins; ties keep the earlier row.
	return len(strings.TrimSpace(candidate.Name)) < len(strings.TrimSpace(current.Name))
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
