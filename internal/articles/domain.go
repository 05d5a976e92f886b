// Package articles implements the publishing core: the article catalog, the
// publication-window visibility filters and the authorization policy gating
// every mutation.
package articles

import "time"

// Article represents a single publishable post. The publication window
// [StartDate, EndDate] is inclusive on both ends. StartDate <= EndDate is
// deliberately not enforced; an inverted window simply never matches the
// active filter.
type Article struct {
	ID         int64
	Title      string
	Body       string
	OwnerEmail string
	AuthorName string
	CreatedAt  time.Time
	StartDate  time.Time
	EndDate    time.Time
	UpdatedAt  time.Time
}

// DateRange narrows a listing request. Either bound may be absent.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// IsZero reports whether neither bound is set.
func (r DateRange) IsZero() bool {
	return r.Start == nil && r.End == nil
}
