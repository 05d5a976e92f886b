package articles

import "time"

// SelectActive returns the articles whose publication window contains now,
// in catalog order. Both window bounds are inclusive.
func SelectActive(catalog []Article, now time.Time) []Article {
	var active []Article
	for _, a := range catalog {
		if !a.StartDate.After(now) && !a.EndDate.Before(now) {
			active = append(active, a)
		}
	}
	return active
}

// SelectByRange filters the catalog by an optional date range.
//
// With both bounds set the predicate is interval overlap, not containment:
// an article matches when any part of its window falls inside the query
// range. With only a start bound, articles starting no earlier than it
// match; with only an end bound, articles ending no later than it. The
// three branches are intentionally asymmetric and must stay that way for
// behavioral compatibility.
func SelectByRange(catalog []Article, r DateRange) []Article {
	if r.IsZero() {
		return catalog
	}

	var matched []Article
	for _, a := range catalog {
		if matchesRange(a, r) {
			matched = append(matched, a)
		}
	}
	return matched
}

func matchesRange(a Article, r DateRange) bool {
	switch {
	case r.Start != nil && r.End != nil:
		return !a.StartDate.After(*r.End) && !a.EndDate.Before(*r.Start)
	case r.Start != nil:
		return !a.StartDate.Before(*r.Start)
	default:
		return !a.EndDate.After(*r.End)
	}
}
